package policy

import "strings"

// NormalizeHostname lowercases a hostname and strips a single trailing dot.
// Returns "" for names that are not syntactically valid DNS names, so that
// matching fails closed on garbage input.
func NormalizeHostname(hostname string) string {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	hostname = strings.TrimSuffix(hostname, ".")
	if !ValidDNSName(hostname) {
		return ""
	}
	return hostname
}

// ValidDNSName reports whether name is a syntactically valid DNS name:
// dot-separated labels of 1-63 characters, letters/digits/hyphen, no
// leading or trailing hyphen, total length at most 253.
func ValidDNSName(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			isLower := c >= 'a' && c <= 'z'
			isUpper := c >= 'A' && c <= 'Z'
			isDigit := c >= '0' && c <= '9'
			if !isLower && !isUpper && !isDigit && c != '-' {
				return false
			}
		}
	}
	return true
}

// Matches decides whether a requested hostname falls inside a realm's
// domain scope. Comparison is case-insensitive and trailing-dot normalized.
// Empty or malformed hostnames never match.
//
//	host:           hostname == domain
//	subdomain:      hostname == domain or hostname ends in "." + domain
//	subdomain_only: hostname ends in "." + domain, apex excluded
func Matches(realmType RealmType, realmDomain, hostname string) bool {
	domain := NormalizeHostname(realmDomain)
	host := NormalizeHostname(hostname)
	if domain == "" || host == "" {
		return false
	}

	switch realmType {
	case RealmTypeHost:
		return host == domain
	case RealmTypeSubdomain:
		return host == domain || strings.HasSuffix(host, "."+domain)
	case RealmTypeSubdomainOnly:
		return host != domain && strings.HasSuffix(host, "."+domain)
	default:
		return false
	}
}

// Matches reports whether the requested hostname is inside this realm's
// scope.
func (r *Realm) Matches(hostname string) bool {
	return Matches(r.Type, r.Domain, hostname)
}
