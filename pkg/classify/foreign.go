package classify

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"github.com/newtron-network/sessioncheck/pkg/session"
)

// Foreign matches declarations whose peer terminates outside the modeled
// network: by peer group name, or by remote address inside a configured
// prefix (longest match wins).
type Foreign struct {
	groups   map[string]bool
	prefixes bart.Table[netip.Prefix]
	count    int
}

// NewForeign builds a matcher from peer group names and prefixes
func NewForeign(groups []string, prefixes []netip.Prefix) *Foreign {
	f := &Foreign{groups: make(map[string]bool, len(groups))}
	for _, g := range groups {
		f.groups[g] = true
	}
	for _, p := range prefixes {
		p = p.Masked()
		f.prefixes.Insert(p, p)
		f.count++
	}
	return f
}

// Match returns the group or prefix matching d
func (f *Foreign) Match(d *session.Declaration) (string, bool) {
	if f == nil {
		return "", false
	}
	if d.PeerGroup != "" && f.groups[d.PeerGroup] {
		return d.PeerGroup, true
	}
	if f.count == 0 {
		return "", false
	}
	if p, ok := f.prefixes.Lookup(d.RemoteAddr()); ok {
		return p.String(), true
	}
	return "", false
}

// Empty returns true if no foreign rule is configured
func (f *Foreign) Empty() bool {
	return f == nil || (len(f.groups) == 0 && f.count == 0)
}
