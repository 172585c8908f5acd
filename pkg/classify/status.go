// Package classify turns resolution results and protocol compatibility
// checks into a primary status plus problem flags for every declaration.
package classify

import (
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/session"
)

// Status is the primary, mutually exclusive classification of a session
type Status string

const (
	StatusIgnoredForeign  Status = "IGNORED_FOREIGN"
	StatusPassive         Status = "PASSIVE"
	StatusMissingLocalIP  Status = "MISSING_LOCAL_IP"
	StatusUnknownLocalIP  Status = "UNKNOWN_LOCAL_IP"
	StatusUnknownRemoteIP Status = "UNKNOWN_REMOTE_IP"
	StatusHalfOpen        Status = "HALF_OPEN"
	StatusMultipleRemotes Status = "MULTIPLE_REMOTES"
	StatusUniqueMatch     Status = "UNIQUE_MATCH"
)

// Statuses lists every primary status in evaluation order
var Statuses = []Status{
	StatusIgnoredForeign,
	StatusPassive,
	StatusMissingLocalIP,
	StatusUnknownLocalIP,
	StatusUnknownRemoteIP,
	StatusHalfOpen,
	StatusMultipleRemotes,
	StatusUniqueMatch,
}

// IsBroken returns true for the statuses that roll up into BROKEN
func (s Status) IsBroken() bool {
	switch s {
	case StatusMissingLocalIP, StatusUnknownLocalIP, StatusUnknownRemoteIP, StatusHalfOpen:
		return true
	}
	return false
}

// Flag is a non-exclusive problem found on a uniquely matched session
type Flag string

const (
	FlagEBGPLocalOnLoopback  Flag = "EBGP_LOCAL_ON_LOOPBACK"
	FlagEBGPRemoteOnLoopback Flag = "EBGP_REMOTE_ON_LOOPBACK"
	FlagIBGPNotOnLoopback    Flag = "IBGP_NOT_ON_LOOPBACK"
	FlagASMismatch           Flag = "AS_MISMATCH"

	FlagMismatchLinkCost Flag = "MISMATCH_LINK_COST"
	FlagMismatchArea     Flag = "MISMATCH_AREA"

	FlagIncompatibleIKEProposals   Flag = "INCOMPATIBLE_IKE_PROPOSALS"
	FlagIncompatibleIPsecProposals Flag = "INCOMPATIBLE_IPSEC_PROPOSALS"
	FlagPresharedKeyMismatch       Flag = "PRESHARED_KEY_MISMATCH"
)

// BGPType distinguishes external from internal BGP sessions
type BGPType string

const (
	BGPTypeNone BGPType = ""
	EBGP        BGPType = "ebgp"
	IBGP        BGPType = "ibgp"
)

// Session is a classified declaration. It is immutable once returned by
// Classify.
type Session struct {
	Declaration *session.Declaration `json:"declaration"`
	Status      Status               `json:"status"`
	Flags       []Flag               `json:"flags,omitempty"` // sorted

	// Remote is the matched peer declaration (UNIQUE_MATCH only)
	Remote *session.Declaration `json:"remote,omitempty"`

	// Candidates is the candidate-set size when resolution ran
	Candidates int `json:"candidates"`

	BGPType BGPType `json:"bgp_type,omitempty"`

	// ForeignMatch names the peer group or prefix that made the session
	// IGNORED_FOREIGN.
	ForeignMatch string `json:"foreign_match,omitempty"`
}

// HasFlag returns true if f is attached to the session
func (s *Session) HasFlag(f Flag) bool {
	i := sort.Search(len(s.Flags), func(i int) bool { return s.Flags[i] >= f })
	return i < len(s.Flags) && s.Flags[i] == f
}
