// Package security provides device and operator token hashing/comparison,
// kept deliberately small: SHA-256 for device tokens, bcrypt for operator
// tokens, constant-time verification.
package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashDeviceToken derives the stored hash for a device's plaintext token.
// Device tokens are checked on every upload, so we use a fast, unsalted
// SHA-256 digest rather than bcrypt's deliberately slow KDF — bcrypt is
// reserved below for the lower-volume admin/internal bearer tokens.
func HashDeviceToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// VerifyDeviceToken reports whether plain hashes to want, in constant time.
func VerifyDeviceToken(plain, want string) bool {
	got := HashDeviceToken(plain)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// HashOperatorToken hashes the admin/internal bearer token for at-rest
// storage when those tokens are distributed via config management rather
// than compared directly from an environment variable.
func HashOperatorToken(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyOperatorToken reports whether plain matches the bcrypt hash.
func VerifyOperatorToken(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// VerifyBearer does a constant-time comparison of a plaintext bearer token
// (ADMIN_TOKEN / INTERNAL_TOKEN) against the configured value, for the
// simple case where the operator token is itself the secret, not a hash.
func VerifyBearer(presented, configured string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
