package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateRandByteArray returns size bytes read from crypto/rand.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeToken renders a token as lowercase hex for transport.
func EncodeToken(token []byte) string {
	return hex.EncodeToString(token)
}

// DecodeToken parses a hex token and checks it has TokenSize bytes.
func DecodeToken(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrorUnauthorized, err)
	}
	if len(b) != TokenSize {
		return nil, fmt.Errorf("%w: token must be %d bytes", ErrorUnauthorized, TokenSize)
	}
	return b, nil
}
