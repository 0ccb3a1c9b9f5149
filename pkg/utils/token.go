package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewOpaqueToken returns a URL-safe random token with n bytes of entropy.
// Invite and resume tokens use 32 bytes (256 bits).
func NewOpaqueToken(n int) (string, error) {
	if n < 16 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewOTP returns a zero-padded numeric one-time code of the given length.
func NewOTP(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}
	buf := make([]byte, digits)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	code := make([]byte, digits)
	for i, b := range buf {
		code[i] = '0' + b%10
	}
	return string(code), nil
}
