// Package netaddr holds the address syntax checks shared by every device kind.
//
// All functions are pure and total: malformed input yields false (or a
// best-effort normalization), never a panic or error.
package netaddr

import (
	"net/netip"
	"regexp"
	"strings"
)

var macPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// ValidIPv4 reports whether s is a dotted-quad IPv4 address.
// IPv4-mapped IPv6 forms such as "::ffff:10.0.0.1" are not IPv4.
func ValidIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is4()
}

// ValidIPv6 reports whether s is an IPv6 address. A zone suffix ("%eth0") is accepted.
func ValidIPv6(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is6()
}

// NormalizeMAC trims s, upper-cases it and turns '-' separators into ':'.
func NormalizeMAC(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", ":")
}

// ValidMAC reports whether s, once normalized, is six upper-case hex pairs
// joined by ':' (XX:XX:XX:XX:XX:XX).
func ValidMAC(s string) bool {
	return macPattern.MatchString(NormalizeMAC(s))
}
