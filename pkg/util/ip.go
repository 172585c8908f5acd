package util

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParsePrefixOrAddr parses "10.0.0.1/31" or a bare "10.0.0.1".
// A bare address becomes a host prefix (/32 or /128).
func ParsePrefixOrAddr(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid CIDR notation: %s", s)
		}
		return p, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid IP address: %s", s)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// ParseOptionalAddr parses an address, returning the zero Addr for "".
// The zero Addr is how an absent address is represented throughout.
func ParseOptionalAddr(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid IP address: %s", s)
	}
	return a, nil
}

// IsPointToPoint returns true if the prefix is a /30 or /31 (or /127 for IPv6)
func IsPointToPoint(p netip.Prefix) bool {
	bits := p.Bits()
	if p.Addr().Is4() {
		return bits == 30 || bits == 31
	}
	return bits == 127
}

// PointToPointPeer returns the other host address of a point-to-point subnet.
// ok is false for non-p2p prefixes and for the network or broadcast
// address of a /30.
func PointToPointPeer(p netip.Prefix) (peer netip.Addr, ok bool) {
	if !IsPointToPoint(p) {
		return netip.Addr{}, false
	}
	addr := p.Addr()
	raw := addr.AsSlice()
	last := len(raw) - 1

	switch {
	case p.Bits() == 31 || p.Bits() == 127: // RFC 3021 / RFC 6164
		raw[last] ^= 1
	default: // /30: .0=network, .1 and .2 hosts, .3=broadcast
		switch raw[last] & 0x03 {
		case 1:
			raw[last]++
		case 2:
			raw[last]--
		default:
			return netip.Addr{}, false
		}
	}

	peer, ok = netip.AddrFromSlice(raw)
	if !ok {
		return netip.Addr{}, false
	}
	return peer.WithZone(addr.Zone()), true
}

// IsHostPrefix returns true if the prefix covers exactly one address
func IsHostPrefix(p netip.Prefix) bool {
	return p.IsValid() && p.Bits() == p.Addr().BitLen()
}
