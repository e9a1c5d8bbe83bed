// Package keygen generates license key tokens.
package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// New returns a fresh token of the form PREFIX-XXXXXXXX-XXXXXXXX. The
// random halves carry 64 bits of entropy, enough that callers may treat
// tokens as globally unique.
func New(prefix string) string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("keygen: reading randomness: %v", err))
	}
	return fmt.Sprintf("%s-%s-%s",
		prefix,
		strings.ToUpper(hex.EncodeToString(b[:4])),
		strings.ToUpper(hex.EncodeToString(b[4:])),
	)
}

// Batch returns n fresh tokens.
func Batch(prefix string, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = New(prefix)
	}
	return keys
}
