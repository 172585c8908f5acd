package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/sessioncheck/pkg/util"
)

// ErrRunNotFound is returned by Get when no recorded run has the ID
var ErrRunNotFound = errors.New("run not found")

var errClosed = errors.New("run log is closed")

// Store persists run events
type Store interface {
	Append(e *Event) error
	Query(f Filter) ([]*Event, error)
	Get(id string) (*Event, error)
	Close() error
}

// Retention bounds a run log. Zero fields are unbounded.
type Retention struct {
	MaxSize        int64         // bytes in the active file before it is rolled
	MaxGenerations int           // rolled files kept beside the active one
	MaxAge         time.Duration // rolled files last written longer ago are removed
}

// RunLog is a JSON-lines run log. A full active file is renamed to
// <path>.1 and older generations shift up by one, so <path>.N is always
// older than <path>.N-1. Queries read every generation.
type RunLog struct {
	path      string
	retention Retention

	mu   sync.Mutex
	file *os.File
	size int64
}

var _ Store = (*RunLog)(nil)

// OpenRunLog opens or creates the run log at path
func OpenRunLog(path string, retention Retention) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}
	l := &RunLog{path: path, retention: retention}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *RunLog) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("opening run log: %w", err)
	}
	l.file, l.size = f, info.Size()
	return nil
}

// Append writes e as one line, rolling the active file first when the line
// would overflow it.
func (l *RunLog) Append(e *Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", e.ID, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errClosed
	}
	if max := l.retention.MaxSize; max > 0 && l.size > 0 && l.size+int64(len(line)) > max {
		if err := l.roll(); err != nil {
			return fmt.Errorf("rolling run log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// Query returns the runs matching f, paged and ordered as f asks
func (l *RunLog) Query(f Filter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var events []*Event
	err := l.each(func(e *Event) bool {
		if f.Match(e) {
			events = append(events, e)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}
	return f.page(events), nil
}

// Get returns the run whose ID is id, or the only run whose ID starts
// with it.
func (l *RunLog) Get(id string) (*Event, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var found []*Event
	err := l.each(func(e *Event) bool {
		switch {
		case e.ID == id:
			found = []*Event{e}
			return false
		case strings.HasPrefix(e.ID, id):
			found = append(found, e)
		}
		return true
	})
	switch {
	case err != nil:
		return nil, fmt.Errorf("reading run log: %w", err)
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(found) > 1 && found[0].ID != id:
		return nil, fmt.Errorf("run ID prefix %q matches %d runs", id, len(found))
	}
	return found[0], nil
}

// Close closes the active file. Query and Get keep working.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *RunLog) generation(n int) string {
	return fmt.Sprintf("%s.%d", l.path, n)
}

// generations counts the rolled files, which are numbered without gaps
func (l *RunLog) generations() int {
	n := 0
	for {
		if _, err := os.Stat(l.generation(n + 1)); err != nil {
			return n
		}
		n++
	}
}

func (l *RunLog) roll() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	for n := l.generations(); n >= 1; n-- {
		if err := os.Rename(l.generation(n), l.generation(n+1)); err != nil {
			return err
		}
	}
	if err := os.Rename(l.path, l.generation(1)); err != nil {
		return err
	}
	l.prune()
	return l.open()
}

// prune removes generations past MaxGenerations and, oldest first, those
// older than MaxAge
func (l *RunLog) prune() {
	n := l.generations()
	keep := n
	if max := l.retention.MaxGenerations; max > 0 && keep > max {
		keep = max
	}
	if l.retention.MaxAge > 0 {
		cutoff := time.Now().Add(-l.retention.MaxAge)
		for keep > 0 {
			info, err := os.Stat(l.generation(keep))
			if err != nil || !info.ModTime().Before(cutoff) {
				break
			}
			keep--
		}
	}
	for ; n > keep; n-- {
		if err := os.Remove(l.generation(n)); err != nil {
			util.Warnf("run log: removing %s: %v", l.generation(n), err)
		}
	}
}

// each calls fn on every readable run, oldest first, until fn returns false
func (l *RunLog) each(fn func(*Event) bool) error {
	for n := l.generations(); n >= 0; n-- {
		path := l.path
		if n > 0 {
			path = l.generation(n)
		}
		more, err := readRuns(path, fn)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

func readRuns(path string, fn func(*Event) bool) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	name := filepath.Base(path)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			util.Warnf("run log %s:%d: skipping malformed entry: %v", name, line, err)
			continue
		}
		if e.Version > SchemaVersion {
			util.Warnf("run log %s:%d: skipping run %s written with schema version %d", name, line, e.ID, e.Version)
			continue
		}
		if !fn(&e) {
			return false, nil
		}
	}
	return true, sc.Err()
}
