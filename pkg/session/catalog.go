package session

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// Options controls catalog building
type Options struct {
	// Protocols restricts extraction to the listed protocols. Empty means all.
	Protocols []Protocol

	// Strict aborts the build on the first node error instead of skipping
	// the failing node.
	Strict bool

	// Workers bounds the number of nodes built concurrently (0 = GOMAXPROCS)
	Workers int
}

// Enabled returns true if declarations of protocol p are extracted
func (o Options) Enabled(p Protocol) bool {
	if len(o.Protocols) == 0 {
		return true
	}
	for _, q := range o.Protocols {
		if q == p {
			return true
		}
	}
	return false
}

// Catalog is the frozen, sorted set of declarations of one analysis run
type Catalog struct {
	decls  []*Declaration
	byNode map[string][]*Declaration
}

// Declarations returns all declarations ordered by node then key
func (c *Catalog) Declarations() []*Declaration {
	out := make([]*Declaration, len(c.decls))
	copy(out, c.decls)
	return out
}

// ForNode returns the declarations of one node ordered by key
func (c *Catalog) ForNode(hostname string) []*Declaration {
	decls := c.byNode[hostname]
	out := make([]*Declaration, len(decls))
	copy(out, decls)
	return out
}

// Len returns the number of declarations
func (c *Catalog) Len() int {
	return len(c.decls)
}

// NewCatalog freezes a set of declarations into a sorted catalog
func NewCatalog(decls []*Declaration) *Catalog {
	sorted := make([]*Declaration, len(decls))
	copy(sorted, decls)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Node != sorted[j].Node {
			return sorted[i].Node < sorted[j].Node
		}
		return sorted[i].Key() < sorted[j].Key()
	})

	c := &Catalog{decls: sorted, byNode: make(map[string][]*Declaration)}
	for _, d := range sorted {
		c.byNode[d.Node] = append(c.byNode[d.Node], d)
	}
	return c
}

type nodeResult struct {
	hostname string
	decls    []*Declaration
	err      error
}

// BuildCatalog extracts the declarations of every node concurrently.
//
// A node whose configuration violates a model invariant contributes no
// declarations; its error is returned in nodeErrs and the remaining nodes
// are still cataloged. With opts.Strict the first node error (in hostname
// order) is returned as err instead. err is also set when ctx is done.
func BuildCatalog(ctx context.Context, snap *model.Snapshot, opts Options) (cat *Catalog, nodeErrs []error, err error) {
	if snap == nil {
		return nil, nil, fmt.Errorf("nil snapshot")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := pool.NewWithResults[nodeResult]().WithContext(ctx).WithMaxGoroutines(workers)
	for _, node := range snap.SortedNodes() {
		p.Go(func(ctx context.Context) (nodeResult, error) {
			if err := ctx.Err(); err != nil {
				return nodeResult{}, err
			}
			decls, err := BuildNode(node, opts)
			return nodeResult{hostname: node.Hostname, decls: decls, err: err}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].hostname < results[j].hostname })

	var all []*Declaration
	for _, r := range results {
		if r.err != nil {
			if opts.Strict {
				return nil, nil, r.err
			}
			util.WithNode(r.hostname).Warnf("Skipping node: %v", r.err)
			nodeErrs = append(nodeErrs, r.err)
			continue
		}
		all = append(all, r.decls...)
	}
	return NewCatalog(all), nodeErrs, nil
}

// BuildNode extracts the declarations of a single node
func BuildNode(node *model.Node, opts Options) ([]*Declaration, error) {
	var decls []*Declaration
	for _, vrfName := range node.VRFNames() {
		vrf := node.VRFs[vrfName]
		if err := checkVRF(node.Hostname, vrf, opts); err != nil {
			return nil, err
		}
		if opts.Enabled(ProtocolBGP) && vrf.BGP != nil {
			decls = append(decls, bgpDeclarations(node.Hostname, vrf)...)
		}
		if opts.Enabled(ProtocolOSPF) && vrf.OSPF != nil {
			d, err := ospfDeclarations(node.Hostname, vrf)
			if err != nil {
				return nil, err
			}
			decls = append(decls, d...)
		}
		if opts.Enabled(ProtocolIPsec) && len(vrf.IPsecVPNs) > 0 {
			d, err := ipsecDeclarations(node.Hostname, vrf)
			if err != nil {
				return nil, err
			}
			decls = append(decls, d...)
		}
	}
	numberRepeats(node.Hostname, decls)
	return decls, nil
}

// numberRepeats sets Seq on declarations whose key repeats an earlier one
// (a neighbor listed twice, or reached through two spellings of an
// interface name) so each keeps its own report entry.
func numberRepeats(hostname string, decls []*Declaration) {
	seen := make(map[string]int, len(decls))
	for _, d := range decls {
		key := d.Key()
		if n := seen[key]; n > 0 {
			d.Seq = n
			util.WithVRF(hostname, d.VRF).Debugf("%s %s declared %d times", d.Protocol, d.Name, n+1)
		}
		seen[key]++
	}
}

// checkVRF rejects a VRF that runs an enabled protocol but has no interfaces
func checkVRF(hostname string, vrf *model.VRF, opts Options) error {
	if !vrf.IsEmpty() {
		return nil
	}
	switch {
	case opts.Enabled(ProtocolBGP) && vrf.BGP != nil:
		return util.NewConfigInvariantError(hostname, vrf.Name, "bgp process configured but vrf has no interfaces")
	case opts.Enabled(ProtocolOSPF) && vrf.OSPF != nil:
		return util.NewConfigInvariantError(hostname, vrf.Name, "ospf process configured but vrf has no interfaces")
	case opts.Enabled(ProtocolIPsec) && len(vrf.IPsecVPNs) > 0:
		return util.NewConfigInvariantError(hostname, vrf.Name, "ipsec vpn configured but vrf has no interfaces")
	}
	return nil
}

// lookupInterface finds an interface by its configured or normalized name
func lookupInterface(vrf *model.VRF, name string) *model.Interface {
	if name == "" {
		return nil
	}
	if iface := vrf.Interface(name); iface != nil {
		return iface
	}
	return vrf.Interface(util.NormalizeInterfaceName(name))
}
