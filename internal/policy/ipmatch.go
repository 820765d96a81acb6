package policy

import (
	"fmt"
	"net/netip"
	"strings"
)

// IP-range entries accept four textual forms:
//
//	single address   203.0.113.5 or 2001:db8::1
//	CIDR             203.0.113.0/24 or 2001:db8::/32
//	explicit range   203.0.113.1-203.0.113.50
//	wildcard octets  203.0.113.* (IPv4 only, trailing octets)

// ValidateIPRanges checks every entry strictly. Intended for token
// creation/edit time so no malformed entry ever reaches request-time
// evaluation.
func ValidateIPRanges(ranges []string) error {
	for _, entry := range ranges {
		if _, err := parseIPRange(entry); err != nil {
			return err
		}
	}
	return nil
}

// MatchIPRange reports whether sourceIP matches the entry. An unparsable
// entry or source address yields (false, error); the caller decides whether
// to log and skip.
func MatchIPRange(entry, sourceIP string) (bool, error) {
	m, err := parseIPRange(entry)
	if err != nil {
		return false, err
	}
	addr, err := netip.ParseAddr(sourceIP)
	if err != nil {
		return false, fmt.Errorf("policy: invalid source IP %q: %w", sourceIP, err)
	}
	return m.contains(addr.Unmap()), nil
}

// ipMatcher is a parsed range entry.
type ipMatcher struct {
	prefix  *netip.Prefix
	single  *netip.Addr
	lo, hi  *netip.Addr
	octets  []string // wildcard form: literal octets before the first "*"
	isRange bool
}

func (m *ipMatcher) contains(addr netip.Addr) bool {
	switch {
	case m.single != nil:
		return addr == *m.single
	case m.prefix != nil:
		return m.prefix.Contains(addr)
	case m.isRange:
		if addr.Is4() != m.lo.Is4() {
			return false
		}
		return addr.Compare(*m.lo) >= 0 && addr.Compare(*m.hi) <= 0
	case m.octets != nil:
		if !addr.Is4() {
			return false
		}
		parts := strings.Split(addr.String(), ".")
		for i, want := range m.octets {
			if parts[i] != want {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func parseIPRange(entry string) (*ipMatcher, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, fmt.Errorf("policy: empty IP range entry")
	}

	// CIDR
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid CIDR %q: %w", entry, err)
		}
		p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()).Masked()
		return &ipMatcher{prefix: &p}, nil
	}

	// Explicit dash range. IPv6 addresses contain no dashes, so a single
	// dash always separates the two endpoints.
	if strings.Contains(entry, "-") {
		lo, hi, ok := strings.Cut(entry, "-")
		if !ok {
			return nil, fmt.Errorf("policy: invalid IP range %q", entry)
		}
		loAddr, err := netip.ParseAddr(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("policy: invalid range start %q: %w", lo, err)
		}
		hiAddr, err := netip.ParseAddr(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("policy: invalid range end %q: %w", hi, err)
		}
		loAddr, hiAddr = loAddr.Unmap(), hiAddr.Unmap()
		if loAddr.Is4() != hiAddr.Is4() {
			return nil, fmt.Errorf("policy: mixed address families in range %q", entry)
		}
		if loAddr.Compare(hiAddr) > 0 {
			return nil, fmt.Errorf("policy: inverted range %q", entry)
		}
		return &ipMatcher{lo: &loAddr, hi: &hiAddr, isRange: true}, nil
	}

	// Trailing-wildcard octets, IPv4 only.
	if strings.Contains(entry, "*") {
		parts := strings.Split(entry, ".")
		if len(parts) != 4 {
			return nil, fmt.Errorf("policy: invalid wildcard pattern %q", entry)
		}
		var literal []string
		seenWildcard := false
		for _, part := range parts {
			if part == "*" {
				seenWildcard = true
				continue
			}
			if seenWildcard {
				return nil, fmt.Errorf("policy: wildcard octets must be trailing in %q", entry)
			}
			if !validOctet(part) {
				return nil, fmt.Errorf("policy: invalid octet %q in %q", part, entry)
			}
			literal = append(literal, part)
		}
		if len(literal) == 0 {
			return nil, fmt.Errorf("policy: wildcard pattern %q matches everything", entry)
		}
		return &ipMatcher{octets: literal}, nil
	}

	// Single address.
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return nil, fmt.Errorf("policy: invalid IP address %q: %w", entry, err)
	}
	addr = addr.Unmap()
	return &ipMatcher{single: &addr}, nil
}

func validOctet(s string) bool {
	if len(s) == 0 || len(s) > 3 {
		return false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	return n <= 255
}
