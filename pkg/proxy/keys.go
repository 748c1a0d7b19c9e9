package proxy

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Tenant keys are the wts_ prefix plus 40 alphanumerics.
const (
	keyPrefix = "wts_"
	keyLength = 40
)

var keyPattern = regexp.MustCompile(`^wts_[A-Za-z0-9]{40}$`)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateKey returns a fresh tenant API key from crypto/rand. Bytes are
// rejection-sampled so every alphabet character is equally likely.
func GenerateKey() (string, error) {
	// 62 * 4 = 248; bytes at or above that would skew the distribution.
	const limit = byte(len(keyAlphabet) * (256 / len(keyAlphabet)))

	key := make([]byte, 0, len(keyPrefix)+keyLength)
	key = append(key, keyPrefix...)

	buf := make([]byte, keyLength)
	for len(key) < cap(key) {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			key = append(key, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(key) == cap(key) {
				break
			}
		}
	}
	return string(key), nil
}

// ValidKeyFormat reports whether raw is shaped like a tenant key. It says
// nothing about whether the key exists.
func ValidKeyFormat(raw string) bool {
	return keyPattern.MatchString(raw)
}
