package model

import "net/netip"

// BGPProcess represents the BGP instance of one VRF
type BGPProcess struct {
	LocalAS  uint32 `json:"local_as"`
	RouterID string `json:"router_id,omitempty"`

	// Neighbors keyed by the peer prefix string ("10.0.0.2/32", "10.1.0.0/24")
	Neighbors map[string]*BGPNeighbor `json:"neighbors,omitempty"`
}

// BGPNeighbor represents a BGP peer declaration.
//
// Peer is a host prefix for a point-to-point session, or a wider prefix for
// a passive (listen-range) declaration.
type BGPNeighbor struct {
	Peer         netip.Prefix `json:"peer"`
	RemoteAS     uint32       `json:"remote_as"`
	LocalAS      uint32       `json:"local_as,omitempty"`      // 0 = inherit process AS
	LocalAddress netip.Addr   `json:"local_address,omitempty"` // zero = not configured
	UpdateSource string       `json:"update_source,omitempty"` // Source interface for the session
	PeerGroup    string       `json:"peer_group,omitempty"`
	Description  string       `json:"description,omitempty"`
	EBGPMultihop bool         `json:"ebgp_multihop,omitempty"`
}

// EffectiveLocalAS returns the neighbor's local AS override, or the process AS
func (n *BGPNeighbor) EffectiveLocalAS(proc *BGPProcess) uint32 {
	if n.LocalAS != 0 {
		return n.LocalAS
	}
	if proc == nil {
		return 0
	}
	return proc.LocalAS
}

// IsIBGP returns true if neighbor is iBGP (same AS)
func (n *BGPNeighbor) IsIBGP(localAS uint32) bool {
	return n.RemoteAS == localAS
}

// IsEBGP returns true if neighbor is eBGP (different AS)
func (n *BGPNeighbor) IsEBGP(localAS uint32) bool {
	return n.RemoteAS != localAS
}

// AddNeighbor adds a neighbor keyed by its peer prefix, replacing any
// existing neighbor with the same prefix.
func (b *BGPProcess) AddNeighbor(neighbor *BGPNeighbor) {
	if b.Neighbors == nil {
		b.Neighbors = make(map[string]*BGPNeighbor)
	}
	b.Neighbors[neighbor.Peer.String()] = neighbor
}
