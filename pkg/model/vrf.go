package model

import "sort"

// VRF represents a Virtual Routing and Forwarding instance
type VRF struct {
	Name       string                `json:"name"`
	Interfaces map[string]*Interface `json:"interfaces,omitempty"`

	// Routing protocol configuration; at most one process per protocol
	BGP  *BGPProcess  `json:"bgp,omitempty"`
	OSPF *OSPFProcess `json:"ospf,omitempty"`

	IPsecVPNs map[string]*IPsecVPN `json:"ipsec_vpns,omitempty"`
}

// NewVRF creates an empty VRF
func NewVRF(name string) *VRF {
	return &VRF{
		Name:       name,
		Interfaces: make(map[string]*Interface),
	}
}

// AddInterface adds an interface keyed by name
func (v *VRF) AddInterface(iface *Interface) {
	if v.Interfaces == nil {
		v.Interfaces = make(map[string]*Interface)
	}
	v.Interfaces[iface.Name] = iface
}

// Interface returns the named interface or nil
func (v *VRF) Interface(name string) *Interface {
	return v.Interfaces[name]
}

// InterfaceNames returns interface names in lexicographic order
func (v *VRF) InterfaceNames() []string {
	names := make([]string, 0, len(v.Interfaces))
	for name := range v.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasProtocolProcess returns true if any protocol (BGP, OSPF, IPsec) is configured
func (v *VRF) HasProtocolProcess() bool {
	return v.BGP != nil || v.OSPF != nil || len(v.IPsecVPNs) > 0
}

// IsEmpty returns true if the VRF has no interfaces
func (v *VRF) IsEmpty() bool {
	return len(v.Interfaces) == 0
}
