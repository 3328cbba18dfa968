package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// GenerateAccountNumber generates a cryptographically random numeric string
// of the given width. Leading zeros are allowed, so the identifier space is
// exactly 10^length. Uniqueness is not guaranteed here; callers rely on the
// store's unique-key constraint and retry on collision.
func GenerateAccountNumber(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("account number length must be positive")
	}

	space := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, space)
	if err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	digits := n.String()
	if pad := length - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return digits, nil
}
