// Package model defines the parsed network configuration consumed by the
// session analysis: nodes, their VRFs, interfaces and protocol processes.
package model

import (
	"net/netip"

	"github.com/newtron-network/sessioncheck/pkg/util"
)

// Interface represents a layer-3 interface
type Interface struct {
	Name        string         `json:"name"` // e.g., "Ethernet0", "Loopback0"
	Description string         `json:"description,omitempty"`
	Addresses   []netip.Prefix `json:"addresses,omitempty"` // address/prefix-length pairs, primary first
	Active      bool           `json:"active"`

	// Loopback forces loopback classification for names the naming
	// convention does not recognize.
	Loopback bool `json:"loopback,omitempty"`
}

// IsLoopback returns true if the interface is a loopback, either by
// explicit flag or by name (Loopback0, lo0).
func (i *Interface) IsLoopback() bool {
	return i.Loopback || util.IsLoopbackName(i.Name)
}

// PrimaryAddress returns the first configured address, or the zero Addr
// when the interface is unnumbered.
func (i *Interface) PrimaryAddress() netip.Addr {
	if len(i.Addresses) == 0 {
		return netip.Addr{}
	}
	return i.Addresses[0].Addr()
}

// HasAddress returns true if addr is configured on the interface
func (i *Interface) HasAddress(addr netip.Addr) bool {
	for _, p := range i.Addresses {
		if p.Addr() == addr {
			return true
		}
	}
	return false
}
