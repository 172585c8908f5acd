// Package snapshot loads network configuration snapshots from YAML files
// and from live SONiC devices.
package snapshot

import (
	"fmt"
	"net/netip"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// File is the on-disk YAML layout of a snapshot. Addresses are strings so
// that every malformed value can be reported with its location.
type File struct {
	Name  string     `yaml:"name,omitempty"`
	Nodes []NodeFile `yaml:"nodes"`
}

// NodeFile is one device
type NodeFile struct {
	Hostname string    `yaml:"hostname"`
	VRFs     []VRFFile `yaml:"vrfs"`
}

// VRFFile is one routing instance on a device
type VRFFile struct {
	Name       string          `yaml:"name"`
	Interfaces []InterfaceFile `yaml:"interfaces,omitempty"`
	BGP        *BGPFile        `yaml:"bgp,omitempty"`
	OSPF       *OSPFFile       `yaml:"ospf,omitempty"`
	IPsec      []IPsecFile     `yaml:"ipsec,omitempty"`
}

// InterfaceFile is one layer-3 interface. Active defaults to true.
type InterfaceFile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Addresses   []string `yaml:"addresses,omitempty"`
	Active      *bool    `yaml:"active,omitempty"`
	Loopback    bool     `yaml:"loopback,omitempty"`
}

// BGPFile is a BGP process
type BGPFile struct {
	LocalAS   uint32         `yaml:"local_as"`
	RouterID  string         `yaml:"router_id,omitempty"`
	Neighbors []NeighborFile `yaml:"neighbors,omitempty"`
}

// NeighborFile is a configured BGP neighbor. Peer may be a host address or
// a prefix for passive neighbors.
type NeighborFile struct {
	Peer         string `yaml:"peer"`
	RemoteAS     uint32 `yaml:"remote_as"`
	LocalAS      uint32 `yaml:"local_as,omitempty"`
	LocalAddress string `yaml:"local_address,omitempty"`
	UpdateSource string `yaml:"update_source,omitempty"`
	PeerGroup    string `yaml:"peer_group,omitempty"`
	Description  string `yaml:"description,omitempty"`
	EBGPMultihop bool   `yaml:"ebgp_multihop,omitempty"`
}

// OSPFFile is an OSPF process
type OSPFFile struct {
	RouterID   string              `yaml:"router_id,omitempty"`
	Interfaces []OSPFInterfaceFile `yaml:"interfaces,omitempty"`
}

// OSPFInterfaceFile enables OSPF on one interface
type OSPFInterfaceFile struct {
	Name      string   `yaml:"name"`
	Area      string   `yaml:"area"`
	Cost      int      `yaml:"cost,omitempty"`
	Passive   bool     `yaml:"passive,omitempty"`
	Neighbors []string `yaml:"neighbors,omitempty"`
}

// IPsecFile is a site-to-site VPN
type IPsecFile struct {
	Name              string                `yaml:"name"`
	RemoteAddress     string                `yaml:"remote_address"`
	LocalAddress      string                `yaml:"local_address,omitempty"`
	ExternalInterface string                `yaml:"external_interface,omitempty"`
	IKEProposals      []model.IKEProposal   `yaml:"ike_proposals,omitempty"`
	IPsecProposals    []model.IPsecProposal `yaml:"ipsec_proposals,omitempty"`
	PreSharedKey      string                `yaml:"pre_shared_key,omitempty"`
}

// LoadFile reads a YAML snapshot from disk
func LoadFile(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &util.SourceError{Op: "read " + path, Err: err}
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, &util.SourceError{Op: "parse " + path, Err: err}
	}
	return snap, nil
}

// Decode parses YAML snapshot data into the configuration model. Every
// malformed address is reported in a single validation error.
func Decode(data []byte) (*model.Snapshot, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Model()
}

// Model converts the file layout into the configuration model
func (f *File) Model() (*model.Snapshot, error) {
	v := &util.ValidationBuilder{}
	snap := &model.Snapshot{Name: f.Name, Nodes: make(map[string]*model.Node)}

	for _, nf := range f.Nodes {
		if nf.Hostname == "" {
			v.Add(false, "node without hostname")
			continue
		}
		if _, dup := snap.Nodes[nf.Hostname]; dup {
			v.AddErrorf("%s: duplicate node", nf.Hostname)
			continue
		}
		node := &model.Node{Hostname: nf.Hostname}
		for _, vf := range nf.VRFs {
			name := vf.Name
			if name == "" {
				name = model.DefaultVRF
			}
			c := &converter{v: v, where: nf.Hostname + "/" + name}
			c.vrf(node.VRF(name), vf)
		}
		snap.AddNode(node)
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return snap, nil
}

type converter struct {
	v     *util.ValidationBuilder
	where string
}

func (c *converter) prefix(field, s string) (netip.Prefix, bool) {
	p, err := util.ParsePrefixOrAddr(s)
	if err != nil {
		c.v.AddErrorf("%s: %s: %v", c.where, field, err)
		return netip.Prefix{}, false
	}
	return p, true
}

func (c *converter) addr(field, s string) netip.Addr {
	a, err := util.ParseOptionalAddr(s)
	if err != nil {
		c.v.AddErrorf("%s: %s: %v", c.where, field, err)
	}
	return a
}

func (c *converter) vrf(vrf *model.VRF, vf VRFFile) {
	for _, ifd := range vf.Interfaces {
		iface := &model.Interface{
			Name:        ifd.Name,
			Description: ifd.Description,
			Active:      ifd.Active == nil || *ifd.Active,
			Loopback:    ifd.Loopback,
		}
		for _, s := range ifd.Addresses {
			if p, ok := c.prefix("interface "+ifd.Name, s); ok {
				iface.Addresses = append(iface.Addresses, p)
			}
		}
		vrf.AddInterface(iface)
	}

	if vf.BGP != nil {
		vrf.BGP = &model.BGPProcess{LocalAS: vf.BGP.LocalAS, RouterID: vf.BGP.RouterID}
		for _, nd := range vf.BGP.Neighbors {
			field := "bgp neighbor " + nd.Peer
			peer, ok := c.prefix(field, nd.Peer)
			if !ok {
				continue
			}
			vrf.BGP.AddNeighbor(&model.BGPNeighbor{
				Peer:         peer,
				RemoteAS:     nd.RemoteAS,
				LocalAS:      nd.LocalAS,
				LocalAddress: c.addr(field+" local_address", nd.LocalAddress),
				UpdateSource: nd.UpdateSource,
				PeerGroup:    nd.PeerGroup,
				Description:  nd.Description,
				EBGPMultihop: nd.EBGPMultihop,
			})
		}
	}

	if vf.OSPF != nil {
		vrf.OSPF = &model.OSPFProcess{
			RouterID:   vf.OSPF.RouterID,
			Interfaces: make(map[string]*model.OSPFInterface),
		}
		for _, od := range vf.OSPF.Interfaces {
			oi := &model.OSPFInterface{Area: od.Area, Cost: od.Cost, Passive: od.Passive}
			for _, s := range od.Neighbors {
				if a := c.addr("ospf "+od.Name+" neighbor", s); a.IsValid() {
					oi.Neighbors = append(oi.Neighbors, a)
				}
			}
			vrf.OSPF.Interfaces[od.Name] = oi
		}
	}

	for _, vd := range vf.IPsec {
		if vrf.IPsecVPNs == nil {
			vrf.IPsecVPNs = make(map[string]*model.IPsecVPN)
		}
		field := "ipsec " + vd.Name
		vrf.IPsecVPNs[vd.Name] = &model.IPsecVPN{
			Name: vd.Name,
			Gateway: model.IKEGateway{
				RemoteAddress:     c.addr(field+" remote_address", vd.RemoteAddress),
				LocalAddress:      c.addr(field+" local_address", vd.LocalAddress),
				ExternalInterface: vd.ExternalInterface,
			},
			IKEProposals:   vd.IKEProposals,
			IPsecProposals: vd.IPsecProposals,
			PreSharedKey:   vd.PreSharedKey,
		}
	}
}

// FromModel converts a snapshot into its file layout with every list in
// a stable order.
func FromModel(snap *model.Snapshot) *File {
	f := &File{Name: snap.Name}
	for _, node := range snap.SortedNodes() {
		nf := NodeFile{Hostname: node.Hostname}
		for _, name := range node.VRFNames() {
			nf.VRFs = append(nf.VRFs, vrfFile(node.VRFs[name]))
		}
		f.Nodes = append(f.Nodes, nf)
	}
	return f
}

func vrfFile(vrf *model.VRF) VRFFile {
	vf := VRFFile{Name: vrf.Name}
	for _, name := range vrf.InterfaceNames() {
		iface := vrf.Interfaces[name]
		ifd := InterfaceFile{Name: iface.Name, Description: iface.Description, Loopback: iface.Loopback}
		if !iface.Active {
			inactive := false
			ifd.Active = &inactive
		}
		for _, p := range iface.Addresses {
			ifd.Addresses = append(ifd.Addresses, p.String())
		}
		vf.Interfaces = append(vf.Interfaces, ifd)
	}

	if vrf.BGP != nil {
		vf.BGP = &BGPFile{LocalAS: vrf.BGP.LocalAS, RouterID: vrf.BGP.RouterID}
		for _, key := range sortedKeys(vrf.BGP.Neighbors) {
			n := vrf.BGP.Neighbors[key]
			vf.BGP.Neighbors = append(vf.BGP.Neighbors, NeighborFile{
				Peer:         peerString(n.Peer),
				RemoteAS:     n.RemoteAS,
				LocalAS:      n.LocalAS,
				LocalAddress: addrString(n.LocalAddress),
				UpdateSource: n.UpdateSource,
				PeerGroup:    n.PeerGroup,
				Description:  n.Description,
				EBGPMultihop: n.EBGPMultihop,
			})
		}
	}

	if vrf.OSPF != nil {
		vf.OSPF = &OSPFFile{RouterID: vrf.OSPF.RouterID}
		for _, name := range sortedKeys(vrf.OSPF.Interfaces) {
			oi := vrf.OSPF.Interfaces[name]
			od := OSPFInterfaceFile{Name: name, Area: oi.Area, Cost: oi.Cost, Passive: oi.Passive}
			for _, a := range oi.Neighbors {
				od.Neighbors = append(od.Neighbors, a.String())
			}
			vf.OSPF.Interfaces = append(vf.OSPF.Interfaces, od)
		}
	}

	for _, name := range sortedKeys(vrf.IPsecVPNs) {
		vpn := vrf.IPsecVPNs[name]
		vf.IPsec = append(vf.IPsec, IPsecFile{
			Name:              vpn.Name,
			RemoteAddress:     addrString(vpn.Gateway.RemoteAddress),
			LocalAddress:      addrString(vpn.Gateway.LocalAddress),
			ExternalInterface: vpn.Gateway.ExternalInterface,
			IKEProposals:      vpn.IKEProposals,
			IPsecProposals:    vpn.IPsecProposals,
			PreSharedKey:      vpn.PreSharedKey,
		})
	}
	return vf
}

// Encode renders a snapshot as YAML
func Encode(snap *model.Snapshot) ([]byte, error) {
	data, err := yaml.Marshal(FromModel(snap))
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// WriteFile writes a snapshot as YAML
func WriteFile(path string, snap *model.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// peerString writes host peers as bare addresses
func peerString(p netip.Prefix) string {
	if util.IsHostPrefix(p) {
		return p.Addr().String()
	}
	return p.String()
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
