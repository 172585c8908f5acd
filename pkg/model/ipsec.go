package model

import "net/netip"

// IPsecVPN represents a site-to-site IPsec tunnel endpoint
type IPsecVPN struct {
	Name           string          `json:"name"`
	Gateway        IKEGateway      `json:"gateway"`
	IKEProposals   []IKEProposal   `json:"ike_proposals,omitempty"`
	IPsecProposals []IPsecProposal `json:"ipsec_proposals,omitempty"`
	PreSharedKey   string          `json:"-"` // never serialized
}

// IKEGateway identifies the remote IKE peer and the local endpoint
type IKEGateway struct {
	RemoteAddress     netip.Addr `json:"remote_address"`
	LocalAddress      netip.Addr `json:"local_address,omitempty"` // zero = use external interface
	ExternalInterface string     `json:"external_interface,omitempty"`
}

// IKEProposal is one phase-1 proposal
type IKEProposal struct {
	Encryption string `json:"encryption" yaml:"encryption"` // aes-128-cbc, aes-256-cbc, 3des-cbc
	Integrity  string `json:"integrity" yaml:"integrity"`   // sha1, sha256, md5
	DHGroup    string `json:"dh_group" yaml:"dh_group"`     // group2, group14, ...
	AuthMethod string `json:"auth_method,omitempty" yaml:"auth_method,omitempty"`
}

// IPsecProposal is one phase-2 proposal
type IPsecProposal struct {
	Protocol   string `json:"protocol" yaml:"protocol"` // esp, ah
	Encryption string `json:"encryption,omitempty" yaml:"encryption,omitempty"`
	Integrity  string `json:"integrity" yaml:"integrity"`
	PFSGroup   string `json:"pfs_group,omitempty" yaml:"pfs_group,omitempty"`
}
