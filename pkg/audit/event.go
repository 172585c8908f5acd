// Package audit records analysis runs to a JSON-lines log so past results
// can be listed and compared.
package audit

import (
	"os/user"
	"slices"
	"sort"
	"time"

	"github.com/newtron-network/sessioncheck/pkg/classify"
	"github.com/newtron-network/sessioncheck/pkg/report"
)

// SchemaVersion is written into every event. Readers skip events from a
// newer schema.
const SchemaVersion = 1

// Event records one check run
type Event struct {
	Version   int            `json:"version"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	User      string         `json:"user"`
	Snapshot  string         `json:"snapshot"`
	Question  string         `json:"question,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	Sessions  int            `json:"sessions"`
	Broken    int            `json:"broken"`
	Skipped   []string       `json:"skipped,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Filter defines criteria for querying run events
type Filter struct {
	Snapshot    string
	Question    string
	User        string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	BrokenOnly  bool
	NewestFirst bool
	Limit       int
	Offset      int
}

// Match reports whether e satisfies every criterion set in f
func (f Filter) Match(e *Event) bool {
	switch {
	case f.Snapshot != "" && e.Snapshot != f.Snapshot:
		return false
	case f.Question != "" && e.Question != f.Question:
		return false
	case f.User != "" && e.User != f.User:
		return false
	case !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime):
		return false
	case f.SuccessOnly && !e.Success, f.FailureOnly && e.Success:
		return false
	case f.BrokenOnly && e.Broken == 0:
		return false
	}
	return true
}

// page orders matched events, oldest first unless NewestFirst, then
// applies Offset and Limit
func (f Filter) page(events []*Event) []*Event {
	if f.NewestFirst {
		slices.Reverse(events)
	}
	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return nil
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(events) {
		events = events[:f.Limit]
	}
	return events
}

// NewEvent creates a run event stamped with the current user and time
func NewEvent(runID, snapshot string) *Event {
	return &Event{
		Version:   SchemaVersion,
		ID:        runID,
		Timestamp: time.Now(),
		User:      currentUser(),
		Snapshot:  snapshot,
	}
}

// WithQuestion sets the question name
func (e *Event) WithQuestion(name string) *Event {
	e.Question = name
	return e
}

// WithReport copies the bucket counts of a finished run and marks it successful
func (e *Event) WithReport(rep *report.Report) *Event {
	e.Counts = make(map[string]int, len(rep.Counts))
	for c, n := range rep.Counts {
		if n > 0 {
			e.Counts[string(c)] = n
		}
	}
	e.Sessions = rep.Total()
	e.Broken = rep.Count(classify.CategoryBroken)
	e.Skipped = nil
	for host := range rep.Skipped {
		e.Skipped = append(e.Skipped, host)
	}
	sort.Strings(e.Skipped)
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the run duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
