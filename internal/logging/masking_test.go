package logging

import (
	"strings"
	"testing"
)

func TestMaskHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"authorization shows last 4", "Authorization", "Bearer zg_aaaa_secretab3f", "****ab3f"},
		{"admin key shows last 4", "X-Admin-Key", "adminkey1234", "****1234"},
		{"short value fully masked", "Authorization", "ab", "****"},
		{"password fully redacted", "X-Password", "hunter2", "[REDACTED]"},
		{"secret fully redacted", "X-Client-Secret", "topsecret", "[REDACTED]"},
		{"plain header unchanged", "Content-Type", "application/json", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskHeader(tt.header, tt.value); got != tt.want {
				t.Errorf("MaskHeader(%q, %q) = %q, want %q", tt.header, tt.value, got, tt.want)
			}
		})
	}
}

func TestMaskBearer(t *testing.T) {
	t.Parallel()

	secret := strings.Repeat("s", 60) + "ab3f"
	bearer := "zg_q3KpLm9XvTzR5wYd_" + secret

	got := MaskBearer(bearer)
	if got != "zg_q3KpLm9XvTzR5wYd_****ab3f" {
		t.Errorf("MaskBearer() = %q", got)
	}
	if strings.Contains(got, secret[:10]) {
		t.Error("masked bearer leaks secret material")
	}

	for _, raw := range []string{"", "garbage", "zg_alias", "zg_alias_short"} {
		if got := MaskBearer(raw); got != "[REDACTED]" {
			t.Errorf("MaskBearer(%q) = %q, want [REDACTED]", raw, got)
		}
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in).String(); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
