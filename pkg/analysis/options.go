package analysis

import (
	"fmt"
	"net/netip"
	"regexp"

	"github.com/newtron-network/sessioncheck/pkg/session"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// DefaultNodeRegex selects every node
const DefaultNodeRegex = ".*"

// Options are the run parameters supplied by the caller
type Options struct {
	// Node1 selects the nodes whose declarations are classified (seeds)
	Node1 string `json:"node1,omitempty"`

	// Node2 selects the nodes allowed to supply remote candidates
	Node2 string `json:"node2,omitempty"`

	// ForeignGroups and ForeignPrefixes mark peers outside the modeled
	// network.
	ForeignGroups   []string       `json:"foreign_groups,omitempty"`
	ForeignPrefixes []netip.Prefix `json:"foreign_prefixes,omitempty"`

	// Protocols restricts the analysis (empty = all)
	Protocols []session.Protocol `json:"protocols,omitempty"`

	// Workers bounds parallelism of the per-node phases (0 = GOMAXPROCS)
	Workers int `json:"workers,omitempty"`

	// SkipInvalidNodes drops nodes whose configuration violates a model
	// invariant instead of aborting the run.
	SkipInvalidNodes bool `json:"skip_invalid_nodes,omitempty"`
}

// DefaultOptions returns options selecting every node and protocol
func DefaultOptions() Options {
	return Options{Node1: DefaultNodeRegex, Node2: DefaultNodeRegex}
}

// Validate checks the options and reports every problem at once
func (o Options) Validate() error {
	v := &util.ValidationBuilder{}
	selectors := []struct{ name, expr string }{{"node1", o.Node1}, {"node2", o.Node2}}
	for _, sel := range selectors {
		if _, err := compileNodeRegex(sel.expr); err != nil {
			v.AddErrorf("%s: invalid regex %q: %v", sel.name, sel.expr, err)
		}
	}
	v.Add(o.Workers >= 0, fmt.Sprintf("workers must not be negative (got %d)", o.Workers))
	for _, p := range o.Protocols {
		if _, err := session.ParseProtocol(string(p)); err != nil {
			v.AddErrorf("%v", err)
		}
	}
	for _, p := range o.ForeignPrefixes {
		v.Add(p.IsValid(), "foreign prefix must be valid")
	}
	return v.Build()
}

// compileNodeRegex anchors expr so it must match the whole hostname.
// An empty expression selects every node.
func compileNodeRegex(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		expr = DefaultNodeRegex
	}
	return regexp.Compile("^(?:" + expr + ")$")
}
