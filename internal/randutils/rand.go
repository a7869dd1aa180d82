// Package randutils provides random-token generation shared across the msrp
// packages.
package randutils

import (
	"crypto/rand"
	"encoding/hex"
)

// SessionID returns a random lower-case hex token derived from 80 random
// bits, the width RFC 4975 uses for MSRP URI session identifiers.
func SessionID() string {
	buf := make([]byte, 10) // 80 bits
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
