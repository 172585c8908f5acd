package session

import (
	"net/netip"
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

func bgpDeclarations(hostname string, vrf *model.VRF) []*Declaration {
	keys := make([]string, 0, len(vrf.BGP.Neighbors))
	for k := range vrf.BGP.Neighbors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	decls := make([]*Declaration, 0, len(keys))
	for _, k := range keys {
		n := vrf.BGP.Neighbors[k]
		exact := util.IsHostPrefix(n.Peer)
		remote := n.Peer
		if !exact {
			remote = n.Peer.Masked()
		}
		decls = append(decls, &Declaration{
			Node:        hostname,
			VRF:         vrf.Name,
			Protocol:    ProtocolBGP,
			Name:        n.Peer.String(),
			Local:       bgpLocalAddress(vrf, n),
			Remote:      remote,
			ExactRemote: exact,
			PeerGroup:   n.PeerGroup,
			Description: n.Description,
			Payload: BGPPayload{
				LocalAS:      n.EffectiveLocalAS(vrf.BGP),
				RemoteAS:     n.RemoteAS,
				EBGPMultihop: n.EBGPMultihop,
			},
		})
	}
	return decls
}

// bgpLocalAddress resolves the session source: the explicit local address,
// else the primary address of the update-source interface, else for a
// directly connected peer the address of the active interface on its subnet.
func bgpLocalAddress(vrf *model.VRF, n *model.BGPNeighbor) netip.Addr {
	if n.LocalAddress.IsValid() {
		return n.LocalAddress
	}
	if n.UpdateSource != "" {
		if iface := lookupInterface(vrf, n.UpdateSource); iface != nil {
			return iface.PrimaryAddress()
		}
		return netip.Addr{}
	}
	if !util.IsHostPrefix(n.Peer) {
		return netip.Addr{}
	}
	return connectedAddress(vrf, n.Peer.Addr())
}

// connectedAddress returns the address of the first active interface
// (in name order) whose subnet contains peer.
func connectedAddress(vrf *model.VRF, peer netip.Addr) netip.Addr {
	for _, name := range vrf.InterfaceNames() {
		iface := vrf.Interfaces[name]
		if !iface.Active {
			continue
		}
		for _, p := range iface.Addresses {
			if util.IsHostPrefix(p) || p.Addr() == peer {
				continue
			}
			if p.Contains(peer) {
				return p.Addr()
			}
		}
	}
	return netip.Addr{}
}
