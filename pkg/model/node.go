package model

import "sort"

// DefaultVRF is the name of the global routing context
const DefaultVRF = "default"

// Snapshot is one immutable view of the network handed to the analysis
type Snapshot struct {
	Name  string           `json:"name,omitempty"`
	Nodes map[string]*Node `json:"nodes"`
}

// Hostnames returns the node names in lexicographic order
func (s *Snapshot) Hostnames() []string {
	names := make([]string, 0, len(s.Nodes))
	for name := range s.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedNodes returns the nodes ordered by hostname
func (s *Snapshot) SortedNodes() []*Node {
	names := s.Hostnames()
	nodes := make([]*Node, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, s.Nodes[name])
	}
	return nodes
}

// AddNode adds a node keyed by its hostname
func (s *Snapshot) AddNode(n *Node) {
	if s.Nodes == nil {
		s.Nodes = make(map[string]*Node)
	}
	s.Nodes[n.Hostname] = n
}

// Node represents one router in the snapshot
type Node struct {
	Hostname string          `json:"hostname"`
	VRFs     map[string]*VRF `json:"vrfs"`
}

// VRFNames returns the node's VRF names in lexicographic order
func (n *Node) VRFNames() []string {
	names := make([]string, 0, len(n.VRFs))
	for name := range n.VRFs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VRF returns the named VRF, creating it when absent
func (n *Node) VRF(name string) *VRF {
	if n.VRFs == nil {
		n.VRFs = make(map[string]*VRF)
	}
	v, ok := n.VRFs[name]
	if !ok {
		v = NewVRF(name)
		n.VRFs[name] = v
	}
	return v
}
