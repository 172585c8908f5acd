// Package report buckets classified sessions by node, VRF and category
// into a deterministic, diff-stable Report.
package report

import (
	"sort"

	"github.com/newtron-network/sessioncheck/pkg/classify"
)

type keySet map[string]struct{}

// Aggregator accumulates classified sessions. An Aggregator is not safe
// for concurrent use; give each worker its own and Merge them afterwards.
type Aggregator struct {
	details map[string]map[string]map[string]classify.Session
	buckets map[classify.Category]map[string]map[string]keySet
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		details: make(map[string]map[string]map[string]classify.Session),
		buckets: make(map[classify.Category]map[string]map[string]keySet),
	}
}

// Add records a session in the detail table and in every bucket it
// belongs to.
func (a *Aggregator) Add(s classify.Session) {
	d := s.Declaration
	key := d.Key()

	byVRF, ok := a.details[d.Node]
	if !ok {
		byVRF = make(map[string]map[string]classify.Session)
		a.details[d.Node] = byVRF
	}
	byKey, ok := byVRF[d.VRF]
	if !ok {
		byKey = make(map[string]classify.Session)
		byVRF[d.VRF] = byKey
	}
	byKey[key] = s

	for _, c := range s.Categories() {
		a.addKey(c, d.Node, d.VRF, key)
	}
}

func (a *Aggregator) addKey(c classify.Category, host, vrf, key string) {
	byHost, ok := a.buckets[c]
	if !ok {
		byHost = make(map[string]map[string]keySet)
		a.buckets[c] = byHost
	}
	byVRF, ok := byHost[host]
	if !ok {
		byVRF = make(map[string]keySet)
		byHost[host] = byVRF
	}
	keys, ok := byVRF[vrf]
	if !ok {
		keys = make(keySet)
		byVRF[vrf] = keys
	}
	keys[key] = struct{}{}
}

// Merge folds other into a. other must not be used afterwards.
func (a *Aggregator) Merge(other *Aggregator) {
	for host, byVRF := range other.details {
		for vrf, byKey := range byVRF {
			for key, s := range byKey {
				if a.details[host] == nil {
					a.details[host] = make(map[string]map[string]classify.Session)
				}
				if a.details[host][vrf] == nil {
					a.details[host][vrf] = make(map[string]classify.Session)
				}
				a.details[host][vrf][key] = s
			}
		}
	}
	for c, byHost := range other.buckets {
		for host, byVRF := range byHost {
			for vrf, keys := range byVRF {
				for key := range keys {
					a.addKey(c, host, vrf, key)
				}
			}
		}
	}
}

// Len returns the number of sessions recorded
func (a *Aggregator) Len() int {
	n := 0
	for _, byVRF := range a.details {
		for _, byKey := range byVRF {
			n += len(byKey)
		}
	}
	return n
}

// Report freezes the accumulated state into sorted buckets
func (a *Aggregator) Report() *Report {
	r := &Report{
		Details: make(map[string]map[string]map[string]classify.Session, len(a.details)),
		Buckets: make(map[classify.Category]map[string]map[string][]string, len(a.buckets)),
		Counts:  make(map[classify.Category]int, len(a.buckets)),
	}
	for host, byVRF := range a.details {
		r.Details[host] = make(map[string]map[string]classify.Session, len(byVRF))
		for vrf, byKey := range byVRF {
			m := make(map[string]classify.Session, len(byKey))
			for k, s := range byKey {
				m[k] = s
			}
			r.Details[host][vrf] = m
		}
	}
	for c, byHost := range a.buckets {
		r.Buckets[c] = make(map[string]map[string][]string, len(byHost))
		for host, byVRF := range byHost {
			r.Buckets[c][host] = make(map[string][]string, len(byVRF))
			for vrf, keys := range byVRF {
				sorted := make([]string, 0, len(keys))
				for k := range keys {
					sorted = append(sorted, k)
				}
				sort.Strings(sorted)
				r.Buckets[c][host][vrf] = sorted
				r.Counts[c] += len(sorted)
			}
		}
	}
	return r
}
