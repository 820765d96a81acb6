package logging

import (
	"strings"
)

// MaskHeader redacts sensitive header values based on header name.
// Returns the redacted value suitable for logging.
//
// Rules:
// - Password/secret headers: "[REDACTED]" (no partial reveal)
// - Token/API key headers: "****" + last4chars (e.g., "****ab3f")
// - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	// Password/secret headers - full redaction
	if strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "private-key") {
		return "[REDACTED]"
	}

	// Token/API key headers - show last 4 chars
	if lowerName == "authorization" ||
		lowerName == "x-api-key" ||
		lowerName == "x-admin-key" {
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

// MaskBearer redacts the secret component of a bearer token while keeping
// the diagnostic parts: the format prefix, the account alias, and the last
// four characters of the secret. Strings that do not look like a bearer are
// fully redacted.
func MaskBearer(raw string) string {
	parts := strings.SplitN(raw, "_", 3)
	if len(parts) != 3 || len(parts[2]) < 8 {
		return "[REDACTED]"
	}
	secret := parts[2]
	return parts[0] + "_" + parts[1] + "_****" + secret[len(secret)-4:]
}
