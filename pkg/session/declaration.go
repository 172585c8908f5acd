// Package session extracts one uniform Declaration per protocol peer entry
// (BGP neighbor, OSPF adjacency, IPsec VPN) from a snapshot.
package session

import (
	"fmt"
	"net/netip"

	"github.com/newtron-network/sessioncheck/pkg/model"
)

// Protocol identifies the control-plane protocol of a declaration
type Protocol string

const (
	ProtocolBGP   Protocol = "bgp"
	ProtocolOSPF  Protocol = "ospf"
	ProtocolIPsec Protocol = "ipsec"
)

// AllProtocols lists every supported protocol in canonical order
var AllProtocols = []Protocol{ProtocolBGP, ProtocolOSPF, ProtocolIPsec}

// ParseProtocol converts a protocol name to a Protocol
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case ProtocolBGP, ProtocolOSPF, ProtocolIPsec:
		return Protocol(s), nil
	}
	return "", fmt.Errorf("unknown protocol %q (expected bgp, ospf or ipsec)", s)
}

// Declaration is one declared adjacency endpoint. It is created by
// BuildCatalog and never mutated afterwards.
type Declaration struct {
	Node     string   `json:"node"`
	VRF      string   `json:"vrf"`
	Protocol Protocol `json:"protocol"`

	// Name identifies the declaration within its VRF: the BGP peer prefix,
	// the OSPF interface or the IPsec VPN name.
	Name string `json:"name"`

	Local       netip.Addr   `json:"local,omitempty"` // zero = absent
	Remote      netip.Prefix `json:"remote"`
	ExactRemote bool         `json:"exact_remote"` // remote is a single host

	PeerGroup   string `json:"peer_group,omitempty"`
	Description string `json:"description,omitempty"`

	// Seq numbers repeats of an otherwise identical declaration on the
	// same node, starting at 1 for the second occurrence.
	Seq int `json:"seq,omitempty"`

	Payload Payload `json:"payload"`
}

// HasLocal returns true if a local address is configured or derivable
func (d *Declaration) HasLocal() bool {
	return d.Local.IsValid()
}

// RemoteAddr returns the remote address (the network address for a
// passive prefix declaration).
func (d *Declaration) RemoteAddr() netip.Addr {
	return d.Remote.Addr()
}

// Key is the canonical key of the declaration within its node:
// protocol|vrf|local|remote|name, with a #seq suffix on repeats.
func (d *Declaration) Key() string {
	local := "-"
	if d.HasLocal() {
		local = d.Local.String()
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%s", d.Protocol, d.VRF, local, d.Remote, d.Name)
	if d.Seq > 0 {
		key += fmt.Sprintf("#%d", d.Seq)
	}
	return key
}

// ID is the key qualified by the owning node, unique across the catalog
func (d *Declaration) ID() string {
	return d.Node + "|" + d.Key()
}

func (d *Declaration) String() string {
	return d.ID()
}

// Payload carries the protocol-specific fields of a declaration. The set
// of implementations is closed: BGPPayload, OSPFPayload, IPsecPayload.
type Payload interface {
	Protocol() Protocol
	isPayload()
}

// BGPPayload holds the AS numbers and multihop setting of a BGP neighbor
type BGPPayload struct {
	LocalAS      uint32 `json:"local_as"`
	RemoteAS     uint32 `json:"remote_as"`
	EBGPMultihop bool   `json:"ebgp_multihop,omitempty"`
}

func (BGPPayload) Protocol() Protocol { return ProtocolBGP }
func (BGPPayload) isPayload()         {}

// IsIBGP returns true if both ends are in the same AS
func (p BGPPayload) IsIBGP() bool {
	return p.LocalAS == p.RemoteAS
}

// OSPFPayload holds the link parameters of an OSPF adjacency
type OSPFPayload struct {
	Interface string `json:"interface"`
	Area      string `json:"area"`
	Cost      int    `json:"cost"`
}

func (OSPFPayload) Protocol() Protocol { return ProtocolOSPF }
func (OSPFPayload) isPayload()         {}

// IPsecPayload holds the negotiable parameters of an IPsec VPN
type IPsecPayload struct {
	IKEProposals   []model.IKEProposal   `json:"ike_proposals,omitempty"`
	IPsecProposals []model.IPsecProposal `json:"ipsec_proposals,omitempty"`
	PreSharedKey   string                `json:"-"`
}

func (IPsecPayload) Protocol() Protocol { return ProtocolIPsec }
func (IPsecPayload) isPayload()         {}
