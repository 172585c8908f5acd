package report

import (
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/classify"
)

// Report is the aggregated result of one analysis run
type Report struct {
	RunID    string `json:"run_id,omitempty"`
	Snapshot string `json:"snapshot,omitempty"`

	// Details maps hostname → VRF → declaration key → session
	Details map[string]map[string]map[string]classify.Session `json:"details"`

	// Buckets maps category → hostname → VRF → sorted declaration keys
	Buckets map[classify.Category]map[string]map[string][]string `json:"buckets"`

	Counts map[classify.Category]int `json:"counts"`

	// Skipped maps nodes left out of the run to the reason
	Skipped map[string]string `json:"skipped,omitempty"`
}

// Entry is one bucket member
type Entry struct {
	Hostname string
	VRF      string
	Key      string
	Session  classify.Session
}

// Categories returns the non-empty categories: primary statuses in table
// order, then flags and roll-ups lexicographically.
func (r *Report) Categories() []classify.Category {
	var out []classify.Category
	for _, s := range classify.Statuses {
		if r.Counts[classify.Category(s)] > 0 {
			out = append(out, classify.Category(s))
		}
	}
	var rest []classify.Category
	for c, n := range r.Counts {
		if n > 0 && !classify.IsPrimary(c) {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

// Entries walks a bucket by hostname, then VRF, then key
func (r *Report) Entries(c classify.Category) []Entry {
	byHost := r.Buckets[c]
	hosts := sortedKeys(byHost)

	var out []Entry
	for _, host := range hosts {
		byVRF := byHost[host]
		for _, vrf := range sortedKeys(byVRF) {
			for _, key := range byVRF[vrf] {
				out = append(out, Entry{
					Hostname: host,
					VRF:      vrf,
					Key:      key,
					Session:  r.Details[host][vrf][key],
				})
			}
		}
	}
	return out
}

// Lookup returns the session recorded under host, VRF and key
func (r *Report) Lookup(host, vrf, key string) (classify.Session, bool) {
	s, ok := r.Details[host][vrf][key]
	return s, ok
}

// Total returns the number of sessions in the report
func (r *Report) Total() int {
	n := 0
	for _, byVRF := range r.Details {
		for _, byKey := range byVRF {
			n += len(byKey)
		}
	}
	return n
}

// Count returns the size of one bucket
func (r *Report) Count(c classify.Category) int {
	return r.Counts[c]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
