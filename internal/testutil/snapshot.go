// Package testutil provides test helpers shared across packages. The Redis
// helpers are only built with the integration tag.
package testutil

import (
	"net/netip"

	"github.com/newtron-network/sessioncheck/pkg/model"
)

// SnapshotBuilder assembles small snapshots for unit tests. Addresses are
// parsed with netip.Must*, so malformed literals panic in the test.
type SnapshotBuilder struct {
	snap *model.Snapshot
}

// NewSnapshot starts an empty snapshot
func NewSnapshot() *SnapshotBuilder {
	return &SnapshotBuilder{snap: &model.Snapshot{Name: "test", Nodes: make(map[string]*model.Node)}}
}

// Node returns a builder for the named node, creating it on first use.
// The builder starts in the default VRF.
func (b *SnapshotBuilder) Node(hostname string) *NodeBuilder {
	n, ok := b.snap.Nodes[hostname]
	if !ok {
		n = &model.Node{Hostname: hostname}
		b.snap.AddNode(n)
	}
	return &NodeBuilder{node: n, vrf: n.VRF(model.DefaultVRF)}
}

// Build returns the assembled snapshot
func (b *SnapshotBuilder) Build() *model.Snapshot {
	return b.snap
}

// NodeBuilder adds configuration to one VRF of a node
type NodeBuilder struct {
	node *model.Node
	vrf  *model.VRF
}

// VRF switches the builder to the named VRF
func (n *NodeBuilder) VRF(name string) *NodeBuilder {
	return &NodeBuilder{node: n.node, vrf: n.node.VRF(name)}
}

// Iface adds an active interface with the given prefixes ("10.0.0.1/31")
func (n *NodeBuilder) Iface(name string, prefixes ...string) *NodeBuilder {
	n.vrf.AddInterface(newInterface(name, true, prefixes))
	return n
}

// DownIface adds an inactive interface
func (n *NodeBuilder) DownIface(name string, prefixes ...string) *NodeBuilder {
	n.vrf.AddInterface(newInterface(name, false, prefixes))
	return n
}

// BGP enables a BGP process with the given AS
func (n *NodeBuilder) BGP(localAS uint32) *NodeBuilder {
	if n.vrf.BGP == nil {
		n.vrf.BGP = &model.BGPProcess{}
	}
	n.vrf.BGP.LocalAS = localAS
	return n
}

// Neighbor adds a BGP neighbor. peer is an address or prefix; local may be
// empty.
func (n *NodeBuilder) Neighbor(peer string, remoteAS uint32, local string) *NodeBuilder {
	nbr := &model.BGPNeighbor{Peer: mustPrefix(peer), RemoteAS: remoteAS}
	if local != "" {
		nbr.LocalAddress = netip.MustParseAddr(local)
	}
	return n.NeighborWith(nbr)
}

// NeighborWith adds a fully specified BGP neighbor
func (n *NodeBuilder) NeighborWith(nbr *model.BGPNeighbor) *NodeBuilder {
	if n.vrf.BGP == nil {
		n.vrf.BGP = &model.BGPProcess{}
	}
	n.vrf.BGP.AddNeighbor(nbr)
	return n
}

// OSPF enables OSPF on an interface
func (n *NodeBuilder) OSPF(iface, area string, cost int, neighbors ...string) *NodeBuilder {
	if n.vrf.OSPF == nil {
		n.vrf.OSPF = &model.OSPFProcess{Interfaces: make(map[string]*model.OSPFInterface)}
	}
	oi := &model.OSPFInterface{Area: area, Cost: cost}
	for _, a := range neighbors {
		oi.Neighbors = append(oi.Neighbors, netip.MustParseAddr(a))
	}
	n.vrf.OSPF.Interfaces[iface] = oi
	return n
}

// VPN adds an IPsec VPN
func (n *NodeBuilder) VPN(vpn *model.IPsecVPN) *NodeBuilder {
	if n.vrf.IPsecVPNs == nil {
		n.vrf.IPsecVPNs = make(map[string]*model.IPsecVPN)
	}
	n.vrf.IPsecVPNs[vpn.Name] = vpn
	return n
}

// Model returns the node being built
func (n *NodeBuilder) Model() *model.Node {
	return n.node
}

func newInterface(name string, active bool, prefixes []string) *model.Interface {
	i := &model.Interface{Name: name, Active: active}
	for _, p := range prefixes {
		i.Addresses = append(i.Addresses, mustPrefix(p))
	}
	return i
}

func mustPrefix(s string) netip.Prefix {
	a, err := netip.ParseAddr(s)
	if err == nil {
		return netip.PrefixFrom(a, a.BitLen())
	}
	return netip.MustParsePrefix(s)
}
