// Package editkey mints the short tokens that let a respondent reopen
// their own submission.
package editkey

import (
	"crypto/rand"
	"io"
	"strings"
)

const (
	// Alphabet leaves out 0, O, 1 and I so keys survive being read aloud or retyped.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	Length   = 6
)

// Generate returns a random key using crypto/rand
func Generate() (string, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom draws a key from r. len(Alphabet) divides 256, so taking
// each byte modulo the alphabet size is uniform.
func GenerateFrom(r io.Reader) (string, error) {
	b := make([]byte, Length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	key := make([]byte, Length)
	for i := range key {
		key[i] = Alphabet[int(b[i])%len(Alphabet)]
	}
	return string(key), nil
}

// Canonicalize trims and upper-cases a key as typed by a user
func Canonicalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Valid reports whether key, once canonicalized, could have been minted here
func Valid(key string) bool {
	key = Canonicalize(key)
	if len(key) != Length {
		return false
	}
	for i := 0; i < len(key); i++ {
		if strings.IndexByte(Alphabet, key[i]) < 0 {
			return false
		}
	}
	return true
}
