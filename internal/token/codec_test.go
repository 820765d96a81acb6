package token

import (
	"errors"
	"strings"
	"testing"
)

// TestParse_Valid tests that a well-formed bearer string round-trips
// through Format and Parse.
func TestParse_Valid(t *testing.T) {
	t.Parallel()

	alias := strings.Repeat("a", AliasLength)
	secret := strings.Repeat("Z", SecretLength)

	gotAlias, gotSecret, err := Parse(Format(alias, secret))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if gotAlias != alias {
		t.Errorf("alias = %q, want %q", gotAlias, alias)
	}
	if gotSecret != secret {
		t.Errorf("secret = %q, want %q", gotSecret, secret)
	}
}

// TestParse_SecretLengthBounds tests the accepted secret length range.
func TestParse_SecretLengthBounds(t *testing.T) {
	t.Parallel()

	alias := strings.Repeat("b", AliasLength)

	testCases := []struct {
		name      string
		secretLen int
		wantErr   bool
	}{
		{"below minimum", MinSecretLength - 1, true},
		{"at minimum", MinSecretLength, false},
		{"default length", SecretLength, false},
		{"at maximum", MaxSecretLength, false},
		{"above maximum", MaxSecretLength + 1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw := Format(alias, strings.Repeat("x", tc.secretLen))
			_, _, err := Parse(raw)
			if tc.wantErr && !errors.Is(err, ErrMalformedToken) {
				t.Errorf("expected ErrMalformedToken, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestParse_Malformed tests that malformed inputs fail with the typed error
// and never panic.
func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	alias := strings.Repeat("c", AliasLength)
	secret := strings.Repeat("d", SecretLength)

	testCases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"one part", "zg"},
		{"two parts", "zg_" + alias},
		{"four parts", "zg_" + alias + "_" + secret + "_extra"},
		{"wrong literal prefix", "xx_" + alias + "_" + secret},
		{"short alias", "zg_short_" + secret},
		{"alias with symbols", "zg_" + strings.Repeat("!", AliasLength) + "_" + secret},
		{"secret with symbols", "zg_" + alias + "_" + strings.Repeat("$", SecretLength)},
		{"secret with separator character", "zg_" + alias + "_" + strings.Repeat("e", SecretLength-1) + "_"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tc.raw)
			if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("Parse(%q) = %v, want ErrMalformedToken", tc.raw, err)
			}
		})
	}
}

// TestLookupPrefix_Deterministic tests that the prefix is a pure function
// of the secret.
func TestLookupPrefix_Deterministic(t *testing.T) {
	t.Parallel()

	secret := strings.Repeat("f", SecretLength)
	first := LookupPrefix(secret)
	if len(first) != PrefixLength {
		t.Fatalf("prefix length = %d, want %d", len(first), PrefixLength)
	}
	for i := 0; i < 10; i++ {
		if got := LookupPrefix(secret); got != first {
			t.Fatalf("LookupPrefix not stable: %q vs %q", got, first)
		}
	}
	if !strings.HasPrefix(secret, first) {
		t.Errorf("prefix %q is not a prefix of the secret", first)
	}
}

// TestHashVerify_RoundTrip tests Verify(s, Hash(s)) for generated secrets
// and cross-secret rejection.
func TestHashVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	s1, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	s2, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if s1 == s2 {
		t.Fatalf("two generated secrets are identical")
	}

	h1, err := Hash(s1)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if !Verify(s1, h1) {
		t.Errorf("Verify(s1, Hash(s1)) = false, want true")
	}
	if Verify(s2, h1) {
		t.Errorf("Verify(s2, Hash(s1)) = true, want false")
	}
}

// TestHashVerify_LongSecret tests that secrets past bcrypt's 72-byte input
// cap still verify, which only works if hashing and verification share the
// same pre-digest.
func TestHashVerify_LongSecret(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("g", MaxSecretLength)
	h, err := Hash(long)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !Verify(long, h) {
		t.Errorf("long secret failed to verify against its own hash")
	}

	// A secret sharing the first 72 bytes must still be distinguishable.
	other := strings.Repeat("g", MaxSecretLength-1) + "h"
	if Verify(other, h) {
		t.Errorf("secret differing only past the bcrypt input cap verified")
	}
}

// TestGenerateSecret_Shape tests length and alphabet of generated secrets.
func TestGenerateSecret_Shape(t *testing.T) {
	t.Parallel()

	s, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if len(s) != SecretLength {
		t.Errorf("secret length = %d, want %d", len(s), SecretLength)
	}
	if !isAlphanumeric(s) {
		t.Errorf("secret contains characters outside the alphabet: %q", s)
	}
}

// TestNewAccountAlias_Shape tests length and alphabet of account aliases.
func TestNewAccountAlias_Shape(t *testing.T) {
	t.Parallel()

	a, err := NewAccountAlias()
	if err != nil {
		t.Fatalf("NewAccountAlias failed: %v", err)
	}
	if len(a) != AliasLength {
		t.Errorf("alias length = %d, want %d", len(a), AliasLength)
	}
	if !isAlphanumeric(a) {
		t.Errorf("alias contains characters outside the alphabet: %q", a)
	}
}
