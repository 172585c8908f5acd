package session

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// ospfDeclarations discovers the adjacencies of each active, non-passive
// OSPF interface. Static neighbors win; otherwise point-to-point subnets
// yield the other host and wider subnets a passive declaration.
func ospfDeclarations(hostname string, vrf *model.VRF) ([]*Declaration, error) {
	names := make([]string, 0, len(vrf.OSPF.Interfaces))
	for name := range vrf.OSPF.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	var decls []*Declaration
	for _, name := range names {
		oi := vrf.OSPF.Interfaces[name]
		iface := lookupInterface(vrf, name)
		if iface == nil {
			return nil, util.NewConfigInvariantError(hostname, vrf.Name,
				fmt.Sprintf("ospf interface %s is not an interface of the vrf", name))
		}
		if !iface.Active || oi.Passive || iface.IsLoopback() {
			continue
		}

		newDecl := func(local netip.Addr, remote netip.Prefix, exact bool) *Declaration {
			return &Declaration{
				Node:        hostname,
				VRF:         vrf.Name,
				Protocol:    ProtocolOSPF,
				Name:        iface.Name,
				Local:       local,
				Remote:      remote,
				ExactRemote: exact,
				Description: iface.Description,
				Payload:     OSPFPayload{Interface: iface.Name, Area: oi.Area, Cost: oi.Cost},
			}
		}

		if len(oi.Neighbors) > 0 {
			for _, nbr := range oi.Neighbors {
				decls = append(decls, newDecl(localFor(iface, nbr), netip.PrefixFrom(nbr, nbr.BitLen()), true))
			}
			continue
		}

		for _, p := range iface.Addresses {
			switch {
			case util.IsHostPrefix(p):
				continue
			case util.IsPointToPoint(p):
				peer, ok := util.PointToPointPeer(p)
				if !ok {
					util.WithVRF(hostname, vrf.Name).Debugf("ospf: %s %s has no point-to-point peer", iface.Name, p)
					continue
				}
				decls = append(decls, newDecl(p.Addr(), netip.PrefixFrom(peer, peer.BitLen()), true))
			default:
				decls = append(decls, newDecl(p.Addr(), p.Masked(), false))
			}
		}
	}
	return decls, nil
}

// localFor picks the interface address whose subnet contains nbr, falling
// back to the primary address.
func localFor(iface *model.Interface, nbr netip.Addr) netip.Addr {
	for _, p := range iface.Addresses {
		if p.Contains(nbr) {
			return p.Addr()
		}
	}
	return iface.PrimaryAddress()
}
