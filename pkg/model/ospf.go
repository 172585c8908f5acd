package model

import "net/netip"

// OSPFProcess represents the OSPF instance of one VRF
type OSPFProcess struct {
	RouterID string `json:"router_id,omitempty"`

	// Interfaces keyed by interface name; each must exist in the VRF
	Interfaces map[string]*OSPFInterface `json:"interfaces,omitempty"`
}

// OSPFInterface is the per-interface OSPF configuration
type OSPFInterface struct {
	Area    string `json:"area"` // dotted or decimal area ID
	Cost    int    `json:"cost"`
	Passive bool   `json:"passive,omitempty"`

	// Neighbors lists statically configured (NBMA) neighbors. When empty,
	// neighbors are discovered from point-to-point subnets.
	Neighbors []netip.Addr `json:"neighbors,omitempty"`
}
