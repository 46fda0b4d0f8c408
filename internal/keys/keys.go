// Package keys generates and checks the shared access key that guards the
// relay endpoint.
package keys

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
)

// randomBytes is the entropy in a generated key. The relay's default
// certificate is derived from the key, so it has to withstand an offline
// search.
const randomBytes = 16

// GeneratedLength is the length of a key returned by Generate.
const GeneratedLength = 26

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generate returns a fresh key: unpadded lowercase base32 of 16 random bytes.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("key generation: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(buf)), nil
}

// Valid reports whether presented equals expected. The comparison runs in
// constant time for equal-length inputs.
func Valid(expected, presented string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
