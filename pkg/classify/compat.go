package classify

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/newtron-network/sessioncheck/pkg/model"
)

// ikeCompatible returns true if the two sides share at least one phase-1
// proposal. A side without proposals is never compatible.
func ikeCompatible(a, b []model.IKEProposal) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x.Encryption, y.Encryption) &&
				strings.EqualFold(x.Integrity, y.Integrity) &&
				strings.EqualFold(x.DHGroup, y.DHGroup) &&
				strings.EqualFold(x.AuthMethod, y.AuthMethod) {
				return true
			}
		}
	}
	return false
}

// ipsecCompatible returns true if the two sides share at least one phase-2
// proposal.
func ipsecCompatible(a, b []model.IPsecProposal) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x.Protocol, y.Protocol) &&
				strings.EqualFold(x.Encryption, y.Encryption) &&
				strings.EqualFold(x.Integrity, y.Integrity) &&
				strings.EqualFold(x.PFSGroup, y.PFSGroup) {
				return true
			}
		}
	}
	return false
}

// sameArea compares OSPF area IDs given in decimal ("0") or dotted
// ("0.0.0.0") form.
func sameArea(a, b string) bool {
	return normalizeArea(a) == normalizeArea(b)
}

func normalizeArea(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		v := uint32(n)
		return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}).String()
	}
	return s
}
