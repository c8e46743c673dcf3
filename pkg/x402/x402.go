// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package x402 holds the wire types of the "402 Payment Required"
// protocol: the payment-required document a server answers 402 with, the
// signed payment envelope the client retries with, and the settlement
// receipt the server attaches to the retry response.
package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/luxfi/clawlet/pkg/constants"
)

var ErrMalformedDocument = errors.New("malformed payment-required document")

// PaymentRequirements is one payment option out of a 402 response's
// accepts list.
type PaymentRequirements struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	Asset             string         `json:"asset"`
	Amount            string         `json:"amount"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int64          `json:"maxTimeoutSeconds"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// PaymentRequiredDoc is the machine-readable offer carried on a 402
// response, either base64-encoded in the Payment-Required header or as
// the plain JSON body.
type PaymentRequiredDoc struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Resource    string                `json:"resource,omitempty"`
}

// Authorization is the ERC-3009 TransferWithAuthorization message with
// every integer field stringified for the wire.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// PaymentPayload couples the signature with the authorization it covers.
type PaymentPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// PaymentEnvelope is the base64-encoded value of the PAYMENT-SIGNATURE
// and X-PAYMENT retry headers.
type PaymentEnvelope struct {
	X402Version int                 `json:"x402Version"`
	Resource    string              `json:"resource,omitempty"`
	Accepted    PaymentRequirements `json:"accepted"`
	Payload     PaymentPayload      `json:"payload"`
}

// settlementReceipt is the decoded payment-response header. Facilitators
// disagree on the hash field name, so both are accepted.
type settlementReceipt struct {
	Transaction string `json:"transaction"`
	TxHash      string `json:"txHash"`
}

// ParsePaymentRequired extracts the payment-required document from a 402
// response, preferring the header over the body.
func ParsePaymentRequired(headers http.Header, body []byte) (PaymentRequiredDoc, error) {
	raw := body
	if encoded := headers.Get(constants.PaymentRequiredHeader); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return PaymentRequiredDoc{}, fmt.Errorf("%w: bad base64 in %s header: %v",
				ErrMalformedDocument, constants.PaymentRequiredHeader, err)
		}
		raw = decoded
	}

	var doc PaymentRequiredDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return PaymentRequiredDoc{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if len(doc.Accepts) == 0 {
		return PaymentRequiredDoc{}, fmt.Errorf("%w: empty accepts list", ErrMalformedDocument)
	}
	return doc, nil
}

// EncodeEnvelope serializes the payment envelope to its header value.
func EncodeEnvelope(env PaymentEnvelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ExtractReceiptHash reads the settlement receipt off a retry response
// and returns the on-chain transaction hash, or nil when the receipt is
// absent or unparseable. Receipt failures are deliberately non-fatal: a
// 2xx without a readable receipt still settles, just without a hash.
func ExtractReceiptHash(headers http.Header) *string {
	encoded := headers.Get(constants.PaymentResponseHeader)
	if encoded == "" {
		encoded = headers.Get(constants.XPaymentRespHeader)
	}
	if encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil
	}
	var receipt settlementReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil
	}
	hash := receipt.Transaction
	if hash == "" {
		hash = receipt.TxHash
	}
	if hash == "" {
		return nil
	}
	return &hash
}
