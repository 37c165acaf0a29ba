// Package util hosts small helpers shared by the facade, the workers and the notifier.
package util //nolint:revive // package name util hosts shared helpers

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	mrand "math/rand/v2"
)

const hexAlphabet = "0123456789abcdef"

// randomSource is swapped in tests to exercise the fallback path.
var randomSource io.Reader = rand.Reader

// GenerateUniqueID returns a lowercase hex string of exactly length characters.
// Secure randomness is used when available; otherwise characters are drawn
// uniformly from [0-9a-f] with a non-cryptographic generator.
func GenerateUniqueID(length int) string {
	if length <= 0 {
		return ""
	}

	buf := make([]byte, (length+1)/2)
	if _, err := io.ReadFull(randomSource, buf); err == nil {
		return hex.EncodeToString(buf)[:length]
	}

	out := make([]byte, length)
	for i := range out {
		out[i] = hexAlphabet[mrand.IntN(len(hexAlphabet))]
	}
	return string(out)
}
