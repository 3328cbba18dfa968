package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PIN hashing schemes. SHA-256 matches the historical passbook data format
// and is explicitly demonstration-grade; bcrypt is the salted, slow option
// recommended for anything real.
const (
	PINSchemeSHA256 = "sha256"
	PINSchemeBcrypt = "bcrypt"
)

// PINHasher produces and verifies one-way PIN digests. The hashing scheme
// used for new digests is fixed at construction; verification dispatches on
// the stored digest's format, so changing the scheme never locks out
// accounts created under the old one.
type PINHasher struct {
	scheme string
}

// NewPINHasher creates a PINHasher for the given scheme.
func NewPINHasher(scheme string) (*PINHasher, error) {
	switch scheme {
	case PINSchemeSHA256, PINSchemeBcrypt:
		return &PINHasher{scheme: scheme}, nil
	default:
		return nil, fmt.Errorf("unknown PIN hash scheme %q", scheme)
	}
}

// Hash digests a plaintext PIN under the configured scheme.
func (h *PINHasher) Hash(pin string) (string, error) {
	switch h.scheme {
	case PINSchemeBcrypt:
		digest, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("failed to hash PIN: %w", err)
		}
		return string(digest), nil
	default:
		digest := sha256.Sum256([]byte(pin))
		return hex.EncodeToString(digest[:]), nil
	}
}

// Verify compares a plaintext PIN against a stored digest.
func (h *PINHasher) Verify(pin, storedHash string) bool {
	if strings.HasPrefix(storedHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(pin)) == nil
	}
	digest := sha256.Sum256([]byte(pin))
	computed := hex.EncodeToString(digest[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
