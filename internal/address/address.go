// Package address classifies registry address literals. Registry data is
// frequently malformed, so rejection is a normal outcome rather than an error.
package address

import (
	"net/netip"
	"strings"
)

// StripPrefixLength removes one trailing "/<digits>" suffix, if present.
func StripPrefixLength(raw string) string {
	i := strings.LastIndexByte(raw, '/')
	if i < 0 || i == len(raw)-1 {
		return raw
	}
	for _, r := range raw[i+1:] {
		if r < '0' || r > '9' {
			return raw
		}
	}
	return raw[:i]
}

// Validate reports whether raw is an IPv4 dotted quad or an IPv6 literal once
// surrounding space and any prefix-length suffix are removed.
func Validate(raw string) (netip.Addr, bool) {
	s := StripPrefixLength(strings.TrimSpace(raw))
	if s == "" {
		return netip.Addr{}, false
	}
	a, err := netip.ParseAddr(s)
	if err != nil || a.Zone() != "" {
		return netip.Addr{}, false
	}
	return a, true
}

// Normalize returns the display form of a valid address.
func Normalize(raw string) (string, bool) {
	a, ok := Validate(raw)
	if !ok {
		return "", false
	}
	return a.String(), true
}
