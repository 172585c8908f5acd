package session

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

func ipsecDeclarations(hostname string, vrf *model.VRF) ([]*Declaration, error) {
	names := make([]string, 0, len(vrf.IPsecVPNs))
	for name := range vrf.IPsecVPNs {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]*Declaration, 0, len(names))
	for _, name := range names {
		vpn := vrf.IPsecVPNs[name]
		remote := vpn.Gateway.RemoteAddress
		if !remote.IsValid() {
			return nil, util.NewConfigInvariantError(hostname, vrf.Name,
				fmt.Sprintf("ipsec vpn %s has no gateway remote address", name))
		}

		local := vpn.Gateway.LocalAddress
		if !local.IsValid() {
			if iface := lookupInterface(vrf, vpn.Gateway.ExternalInterface); iface != nil {
				local = iface.PrimaryAddress()
			}
		}

		decls = append(decls, &Declaration{
			Node:        hostname,
			VRF:         vrf.Name,
			Protocol:    ProtocolIPsec,
			Name:        name,
			Local:       local,
			Remote:      netip.PrefixFrom(remote, remote.BitLen()),
			ExactRemote: true,
			Payload: IPsecPayload{
				IKEProposals:   vpn.IKEProposals,
				IPsecProposals: vpn.IPsecProposals,
				PreSharedKey:   vpn.PreSharedKey,
			},
		})
	}
	return decls, nil
}
