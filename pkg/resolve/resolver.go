// Package resolve finds, for each declaration, the declarations on other
// nodes that could be its remote end. Resolution is protocol-agnostic:
// compatibility checks belong to the classifier.
package resolve

import (
	"net/netip"
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/ownership"
	"github.com/newtron-network/sessioncheck/pkg/session"
)

// Outcome is the result of resolving one declaration
type Outcome int

const (
	// OutcomeResolved means the candidate search ran; the candidate count
	// decides between half-open, unique and multiple remotes.
	OutcomeResolved Outcome = iota
	OutcomeMissingLocal
	OutcomeUnknownLocal
	OutcomeUnknownRemote
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeMissingLocal:
		return "missing-local"
	case OutcomeUnknownLocal:
		return "unknown-local"
	case OutcomeUnknownRemote:
		return "unknown-remote"
	}
	return "unknown"
}

// Resolution is the candidate set of one declaration
type Resolution struct {
	Outcome    Outcome
	Candidates []*session.Declaration // sorted by ID
}

// Unique returns the single candidate, or nil unless there is exactly one
func (r Resolution) Unique() *session.Declaration {
	if r.Outcome != OutcomeResolved || len(r.Candidates) != 1 {
		return nil
	}
	return r.Candidates[0]
}

// NodeFilter accepts or rejects a hostname
type NodeFilter func(hostname string) bool

type remoteKey struct {
	protocol session.Protocol
	addr     netip.Addr
}

// Resolver answers candidate queries against a frozen catalog and
// ownership index. It is safe for concurrent use.
type Resolver struct {
	owners   *ownership.Index
	byRemote map[remoteKey][]*session.Declaration
	accept   NodeFilter
}

// New indexes the exact-remote declarations of cat by (protocol, remote
// address). accept restricts which nodes may supply candidates; nil
// accepts every node.
func New(cat *session.Catalog, owners *ownership.Index, accept NodeFilter) *Resolver {
	r := &Resolver{
		owners:   owners,
		byRemote: make(map[remoteKey][]*session.Declaration),
		accept:   accept,
	}
	for _, d := range cat.Declarations() {
		if !d.ExactRemote {
			continue
		}
		k := remoteKey{protocol: d.Protocol, addr: d.RemoteAddr()}
		r.byRemote[k] = append(r.byRemote[k], d)
	}
	return r
}

// Ownership returns the index the resolver was built on
func (r *Resolver) Ownership() *ownership.Index {
	return r.owners
}

// Resolve returns the candidate set of d. A candidate is a declaration of
// the same protocol on another node that owns d's remote address, whose own
// remote is d's local address and whose own local is d's remote address.
// d's local address must belong to d's node; otherwise no declaration can
// name d as its candidate and d gets none either.
func (r *Resolver) Resolve(d *session.Declaration) Resolution {
	switch {
	case !d.HasLocal():
		return Resolution{Outcome: OutcomeMissingLocal}
	case !r.owners.Has(d.Local):
		return Resolution{Outcome: OutcomeUnknownLocal}
	case !r.owners.Has(d.RemoteAddr()):
		return Resolution{Outcome: OutcomeUnknownRemote}
	}
	if !d.ExactRemote || !r.owners.Owns(d.Local, d.Node) {
		return Resolution{Outcome: OutcomeResolved}
	}

	remote := d.RemoteAddr()
	var candidates []*session.Declaration
	for _, d2 := range r.byRemote[remoteKey{protocol: d.Protocol, addr: d.Local}] {
		if d2 == d || d2.Node == d.Node {
			continue
		}
		if d2.Local != remote || !r.owners.Owns(remote, d2.Node) {
			continue
		}
		if r.accept != nil && !r.accept(d2.Node) {
			continue
		}
		candidates = append(candidates, d2)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID() < candidates[j].ID() })
	return Resolution{Outcome: OutcomeResolved, Candidates: candidates}
}
