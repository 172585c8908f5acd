// Package question reads YAML question files that parameterize a session
// check run.
package question

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/sessioncheck/pkg/analysis"
	"github.com/newtron-network/sessioncheck/pkg/session"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// Question is the on-disk form of a run's parameters
type Question struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Snapshot is the snapshot file to analyze, relative to the question
	// file's directory.
	Snapshot string `yaml:"snapshot,omitempty"`

	Node1     string   `yaml:"node1,omitempty"`
	Node2     string   `yaml:"node2,omitempty"`
	Protocols []string `yaml:"protocols,omitempty"`
	Foreign   Foreign  `yaml:"foreign,omitempty"`
	Workers   int      `yaml:"workers,omitempty"`

	SkipInvalidNodes bool `yaml:"skip_invalid_nodes,omitempty"`

	path string
}

// Foreign lists peers that terminate outside the modeled network
type Foreign struct {
	Groups   []string `yaml:"groups,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty"`
}

// Load reads and validates a question file
func Load(path string) (*Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question %s: %w", path, err)
	}
	q, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", path, err)
	}
	q.path = path
	if q.Name == "" {
		q.Name = trimExt(filepath.Base(path))
	}
	return q, nil
}

// Parse decodes and validates question YAML
func Parse(data []byte) (*Question, error) {
	var q Question
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	applyDefaults(&q)
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

func applyDefaults(q *Question) {
	if q.Node1 == "" {
		q.Node1 = analysis.DefaultNodeRegex
	}
	if q.Node2 == "" {
		q.Node2 = analysis.DefaultNodeRegex
	}
	if len(q.Protocols) == 0 {
		for _, p := range session.AllProtocols {
			q.Protocols = append(q.Protocols, string(p))
		}
	}
}

// Validate checks every field and reports all problems together
func (q *Question) Validate() error {
	_, err := q.Options()
	return err
}

// Options converts the question into analysis options
func (q *Question) Options() (analysis.Options, error) {
	v := &util.ValidationBuilder{}
	opts := analysis.Options{
		Node1:            q.Node1,
		Node2:            q.Node2,
		ForeignGroups:    q.Foreign.Groups,
		Workers:          q.Workers,
		SkipInvalidNodes: q.SkipInvalidNodes,
	}
	for _, name := range q.Protocols {
		p, err := session.ParseProtocol(name)
		if err != nil {
			v.AddErrorf("protocols: %v", err)
			continue
		}
		opts.Protocols = append(opts.Protocols, p)
	}
	for _, s := range q.Foreign.Prefixes {
		p, err := util.ParsePrefixOrAddr(s)
		if err != nil {
			v.AddErrorf("foreign.prefixes: %v", err)
			continue
		}
		opts.ForeignPrefixes = append(opts.ForeignPrefixes, p)
	}
	if err := v.Build(); err != nil {
		return analysis.Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return analysis.Options{}, err
	}
	return opts, nil
}

// SnapshotPath resolves the snapshot reference against the question file
func (q *Question) SnapshotPath() string {
	if q.Snapshot == "" || filepath.IsAbs(q.Snapshot) || q.path == "" {
		return q.Snapshot
	}
	return filepath.Join(filepath.Dir(q.path), q.Snapshot)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
