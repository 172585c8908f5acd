package classify

import (
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/ownership"
	"github.com/newtron-network/sessioncheck/pkg/resolve"
	"github.com/newtron-network/sessioncheck/pkg/session"
)

// CandidateSource resolves a declaration to its candidate set
type CandidateSource interface {
	Resolve(d *session.Declaration) resolve.Resolution
}

// Classifier assigns a status and problem flags to declarations. It only
// reads its inputs and is safe for concurrent use.
type Classifier struct {
	owners  *ownership.Index
	source  CandidateSource
	foreign *Foreign
}

// New creates a classifier. foreign may be nil.
func New(owners *ownership.Index, source CandidateSource, foreign *Foreign) *Classifier {
	return &Classifier{owners: owners, source: source, foreign: foreign}
}

// Classify evaluates the status table in order; the first matching row is
// terminal.
func (c *Classifier) Classify(d *session.Declaration) Session {
	s := Session{Declaration: d, BGPType: bgpType(d)}

	if match, ok := c.foreign.Match(d); ok {
		s.Status = StatusIgnoredForeign
		s.ForeignMatch = match
		return s
	}
	if !d.ExactRemote {
		s.Status = StatusPassive
		return s
	}
	if !d.HasLocal() {
		s.Status = StatusMissingLocalIP
		return s
	}

	res := c.source.Resolve(d)
	switch res.Outcome {
	case resolve.OutcomeMissingLocal:
		s.Status = StatusMissingLocalIP
		return s
	case resolve.OutcomeUnknownLocal:
		s.Status = StatusUnknownLocalIP
		return s
	case resolve.OutcomeUnknownRemote:
		s.Status = StatusUnknownRemoteIP
		return s
	}

	s.Candidates = len(res.Candidates)
	switch len(res.Candidates) {
	case 0:
		s.Status = StatusHalfOpen
	case 1:
		s.Status = StatusUniqueMatch
		s.Remote = res.Candidates[0]
		s.Flags = c.flags(d, s.Remote)
	default:
		s.Status = StatusMultipleRemotes
	}
	return s
}

// flags runs the protocol compatibility checks on a matched pair
func (c *Classifier) flags(local, remote *session.Declaration) []Flag {
	var flags []Flag
	switch p := local.Payload.(type) {
	case session.BGPPayload:
		rp, _ := remote.Payload.(session.BGPPayload)
		flags = c.bgpFlags(local, remote, p, rp)
	case session.OSPFPayload:
		rp, _ := remote.Payload.(session.OSPFPayload)
		flags = ospfFlags(p, rp)
	case session.IPsecPayload:
		rp, _ := remote.Payload.(session.IPsecPayload)
		flags = ipsecFlags(p, rp)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
	return flags
}

func (c *Classifier) bgpFlags(local, remote *session.Declaration, p, rp session.BGPPayload) []Flag {
	var flags []Flag
	if p.IsIBGP() {
		if !c.owners.IsLoopback(local.Local) || !c.owners.IsLoopback(remote.Local) {
			flags = append(flags, FlagIBGPNotOnLoopback)
		}
	} else if !p.EBGPMultihop {
		if c.owners.IsLoopback(local.Local) {
			flags = append(flags, FlagEBGPLocalOnLoopback)
		}
		if c.owners.IsLoopback(remote.Local) {
			flags = append(flags, FlagEBGPRemoteOnLoopback)
		}
	}
	if p.RemoteAS != rp.LocalAS || rp.RemoteAS != p.LocalAS {
		flags = append(flags, FlagASMismatch)
	}
	return flags
}

func ospfFlags(p, rp session.OSPFPayload) []Flag {
	var flags []Flag
	if p.Cost != rp.Cost {
		flags = append(flags, FlagMismatchLinkCost)
	}
	if !sameArea(p.Area, rp.Area) {
		flags = append(flags, FlagMismatchArea)
	}
	return flags
}

func ipsecFlags(p, rp session.IPsecPayload) []Flag {
	var flags []Flag
	if !ikeCompatible(p.IKEProposals, rp.IKEProposals) {
		flags = append(flags, FlagIncompatibleIKEProposals)
	}
	if !ipsecCompatible(p.IPsecProposals, rp.IPsecProposals) {
		flags = append(flags, FlagIncompatibleIPsecProposals)
	}
	if p.PreSharedKey == "" || p.PreSharedKey != rp.PreSharedKey {
		flags = append(flags, FlagPresharedKeyMismatch)
	}
	return flags
}

func bgpType(d *session.Declaration) BGPType {
	p, ok := d.Payload.(session.BGPPayload)
	if !ok {
		return BGPTypeNone
	}
	if p.IsIBGP() {
		return IBGP
	}
	return EBGP
}
