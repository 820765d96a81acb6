// Package token implements the external bearer-token format: parsing,
// secret generation, and the prefix/hash pair stored for each token.
//
// The wire format is three underscore-joined components:
//
//	zg_<16-char account alias>_<random secret>
//
// The account alias is an opaque random identifier, not the account name.
// The stored lookup prefix is the first characters of the secret and is not
// itself secret; it only narrows the storage query before the expensive
// hash verification.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// FixedPrefix is the literal first component of every bearer token.
	FixedPrefix = "zg"

	// AliasLength is the exact length of the account alias component.
	AliasLength = 16

	// SecretLength is the length of newly generated secrets.
	SecretLength = 64

	// MinSecretLength and MaxSecretLength bound the secret component on
	// parse. The range is wider than SecretLength to tolerate format
	// evolution in existing client integrations.
	MinSecretLength = 32
	MaxSecretLength = 128

	// PrefixLength is the length of the stored lookup prefix.
	PrefixLength = 8

	separator = "_"
	alphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	bcryptCost = 12
)

// ErrMalformedToken indicates a bearer string that does not match the
// expected three-part format. Callers must collapse this to the same
// outward response as an unknown secret.
var ErrMalformedToken = errors.New("token: malformed bearer token")

// Parse splits a raw bearer string into its account alias and secret.
// It never panics on malformed input; any deviation from the expected
// shape returns ErrMalformedToken without detail about which part failed.
func Parse(raw string) (alias, secret string, err error) {
	parts := strings.Split(raw, separator)
	if len(parts) != 3 {
		return "", "", ErrMalformedToken
	}
	if parts[0] != FixedPrefix {
		return "", "", ErrMalformedToken
	}
	alias, secret = parts[1], parts[2]
	if len(alias) != AliasLength || !isAlphanumeric(alias) {
		return "", "", ErrMalformedToken
	}
	if len(secret) < MinSecretLength || len(secret) > MaxSecretLength || !isAlphanumeric(secret) {
		return "", "", ErrMalformedToken
	}
	return alias, secret, nil
}

// Format assembles the external bearer string from an alias and secret.
func Format(alias, secret string) string {
	return FixedPrefix + separator + alias + separator + secret
}

// LookupPrefix returns the non-secret slice of a secret used to narrow
// storage lookups. Deterministic and pure.
func LookupPrefix(secret string) string {
	if len(secret) < PrefixLength {
		return secret
	}
	return secret[:PrefixLength]
}

// Hash derives the stored one-way hash of a secret.
//
// The secret is pre-digested with SHA-256 before bcrypt because bcrypt
// truncates input beyond 72 bytes and accepted secrets may be up to 128
// characters. Verify applies the same pre-digest, so the two always agree.
func Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(preDigest(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("token: failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether secret matches a hash produced by Hash.
// Constant-time comparison is provided by bcrypt itself.
func Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), preDigest(secret)) == nil
}

// GenerateSecret returns a new cryptographically random secret of
// SecretLength alphanumeric characters (well over 256 bits of entropy).
func GenerateSecret() (string, error) {
	return randomString(SecretLength)
}

// NewAccountAlias returns a new random account alias. Aliases are opaque
// so that bearer tokens never reveal account names.
func NewAccountAlias() (string, error) {
	return randomString(AliasLength)
}

// preDigest maps a secret of any accepted length to a fixed-size bcrypt
// input. Hex encoding keeps the input printable ASCII (64 bytes).
func preDigest(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("token: failed to generate random secret: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

func isAlphanumeric(s string) bool {
	for _, c := range s {
		isLower := c >= 'a' && c <= 'z'
		isUpper := c >= 'A' && c <= 'Z'
		isDigit := c >= '0' && c <= '9'
		if !isLower && !isUpper && !isDigit {
			return false
		}
	}
	return s != ""
}
