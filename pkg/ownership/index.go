// Package ownership builds the global address-ownership index: every
// address configured on an active interface, mapped to the set of nodes
// that own it. Anycast addresses map to several owners.
package ownership

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// Index is the frozen address → owners mapping. It has no mutators and is
// safe for concurrent readers once Build returns.
type Index struct {
	owners    map[netip.Addr][]string // sorted, deduplicated
	loopbacks map[netip.Addr]bool
}

// Build scans every active interface address of every node. An address
// owned by nobody never becomes a key.
func Build(nodes []*model.Node) *Index {
	sets := make(map[netip.Addr]map[string]struct{})
	loopbacks := make(map[netip.Addr]bool)

	for _, node := range nodes {
		for _, vrf := range node.VRFs {
			for _, iface := range vrf.Interfaces {
				if !iface.Active {
					continue
				}
				for _, p := range iface.Addresses {
					addr := p.Addr()
					set, ok := sets[addr]
					if !ok {
						set = make(map[string]struct{})
						sets[addr] = set
					}
					set[node.Hostname] = struct{}{}
					if iface.IsLoopback() {
						loopbacks[addr] = true
					}
				}
			}
		}
	}

	idx := &Index{
		owners:    make(map[netip.Addr][]string, len(sets)),
		loopbacks: loopbacks,
	}
	for addr, set := range sets {
		hosts := make([]string, 0, len(set))
		for h := range set {
			hosts = append(hosts, h)
		}
		sort.Strings(hosts)
		idx.owners[addr] = hosts
	}
	return idx
}

// Owners returns a sorted copy of the hostnames owning addr. ok is false
// when the address is unowned.
func (x *Index) Owners(addr netip.Addr) ([]string, bool) {
	hosts, ok := x.owners[addr]
	if !ok {
		return nil, false
	}
	out := make([]string, len(hosts))
	copy(out, hosts)
	return out, true
}

// Has returns true if addr is owned by at least one node
func (x *Index) Has(addr netip.Addr) bool {
	_, ok := x.owners[addr]
	return ok
}

// Owns returns true if host is among the owners of addr
func (x *Index) Owns(addr netip.Addr, host string) bool {
	hosts := x.owners[addr]
	i := sort.SearchStrings(hosts, host)
	return i < len(hosts) && hosts[i] == host
}

// IsLoopback returns true if addr is configured on a loopback interface of
// any owner.
func (x *Index) IsLoopback(addr netip.Addr) bool {
	return x.loopbacks[addr]
}

// Len returns the number of owned addresses
func (x *Index) Len() int {
	return len(x.owners)
}

// Validate checks that no key maps to an empty owner set.
func (x *Index) Validate() error {
	for addr, hosts := range x.owners {
		if len(hosts) == 0 {
			return util.NewConfigInvariantError("", "", fmt.Sprintf("empty owner set for %s", addr))
		}
	}
	return nil
}
