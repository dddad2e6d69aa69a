// Package auth - ipmatch.go implements the per-app IP whitelist matcher.
// Entries are exact IPs or IPv4 CIDR blocks; matching is IPv4-only for CIDR
// entries and string-exact for plain entries.
package auth

import (
	"encoding/binary"
	"log/slog"
	"net"
	"strconv"
	"strings"
)

// NormalizeClientIP canonicalizes the source address before matching.
// IPv6 loopback becomes IPv4 loopback and IPv4-mapped IPv6 addresses are
// unwrapped, so whitelist entries can always be written in IPv4 notation.
func NormalizeClientIP(clientIP string) string {
	if clientIP == "::1" {
		return "127.0.0.1"
	}
	if strings.HasPrefix(clientIP, "::ffff:") {
		mapped := strings.TrimPrefix(clientIP, "::ffff:")
		if net.ParseIP(mapped) != nil && strings.Contains(mapped, ".") {
			return mapped
		}
	}
	return clientIP
}

// MatchesWhitelist reports whether clientIP is allowed by the given whitelist
// entries. An empty entry list never matches here; the caller decides what an
// empty whitelist means (an app with no entries accepts any source address).
// Malformed entries are skipped, never fatal.
func MatchesWhitelist(clientIP string, entries []string) bool {
	normalized := NormalizeClientIP(clientIP)

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			if matchesCIDR(normalized, entry) {
				return true
			}
			continue
		}

		// Plain entry: exact string equality against the normalized address
		if normalized == entry {
			return true
		}
	}

	return false
}

// matchesCIDR checks an IPv4 address against an IPv4 CIDR block using masked
// integer comparison. IPv6 CIDR entries never match; they are accepted on
// write for compatibility but the matcher only understands IPv4 blocks.
func matchesCIDR(clientIP, cidr string) bool {
	parts := strings.SplitN(cidr, "/", 2)
	if len(parts) != 2 {
		return false
	}

	netIP := net.ParseIP(parts[0])
	if netIP == nil {
		slog.Debug("skipping malformed whitelist CIDR entry", "entry", cidr)
		return false
	}

	netV4 := netIP.To4()
	if netV4 == nil {
		slog.Warn("skipping IPv6 CIDR whitelist entry, only IPv4 blocks are matched", "entry", cidr)
		return false
	}

	prefixLen, err := strconv.Atoi(parts[1])
	if err != nil || prefixLen < 0 || prefixLen > 32 {
		slog.Debug("skipping whitelist CIDR entry with invalid prefix length", "entry", cidr)
		return false
	}

	clientParsed := net.ParseIP(clientIP)
	if clientParsed == nil {
		return false
	}
	clientV4 := clientParsed.To4()
	if clientV4 == nil {
		return false
	}

	// A /0 mask is zero and matches every address
	var mask uint32
	if prefixLen > 0 {
		mask = 0xFFFFFFFF << (32 - prefixLen)
	}

	netInt := binary.BigEndian.Uint32(netV4)
	clientInt := binary.BigEndian.Uint32(clientV4)

	return (clientInt & mask) == (netInt & mask)
}

// ValidateWhitelistEntry checks that a candidate whitelist entry is either a
// parseable IP address or a parseable CIDR block. Used by the management
// surface on create/update; the matcher itself tolerates bad rows.
func ValidateWhitelistEntry(entry string) error {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, _, err := net.ParseCIDR(entry)
		return err
	}
	if net.ParseIP(entry) == nil {
		return &net.ParseError{Type: "IP address", Text: entry}
	}
	return nil
}
