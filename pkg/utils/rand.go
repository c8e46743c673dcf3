// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// RandomHex returns n random bytes hex-encoded (2n characters).
func RandomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; nothing sensible can continue past that.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// RandomBytes returns n random bytes.
func RandomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// NowTimestamp returns the current UTC time as an ISO-8601 string. The
// YYYY-MM-DD prefix of these timestamps is what the daily-cap window
// keys on.
func NowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
