// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package constants

import (
	"time"
)

const (
	DefaultPerms755    = 0o755
	WriteReadReadPerms = 0o644

	BaseDirName   = ".clawlet"
	StateFileName = "state.json"

	DefaultHTTPPort = 3000

	DemoModeEnvVar = "DEMO_MODE"
	PortEnvVar     = "PORT"
	DataDirEnvVar  = "CLAWLET_DATA_DIR"

	// USDC uses six decimals on every chain we support.
	USDCDecimals = 6

	// Maximum number of ledger entries returned by a single list call.
	MaxTransactionListLimit = 200

	PaymentSessionSweepInterval = 60 * time.Second

	UpstreamRequestTimeout = 2 * time.Minute
	RPCRequestTimeout      = 30 * time.Second
)

// x402 wire protocol headers. Servers in the wild disagree on spelling,
// so the broker sends both payment headers and accepts either receipt
// header. All lookups are case-insensitive.
const (
	PaymentRequiredHeader  = "Payment-Required"
	PaymentSignatureHeader = "PAYMENT-SIGNATURE"
	XPaymentHeader         = "X-PAYMENT"
	PaymentResponseHeader  = "Payment-Response"
	XPaymentRespHeader     = "X-Payment-Response"

	AgentIDHeader       = "X-AGENT-ID"
	AgentRegistryHeader = "X-AGENT-REGISTRY"
	AgentNameHeader     = "X-AGENT-NAME"
)
