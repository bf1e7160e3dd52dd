// Package history persists finished unit runs.
//
// Backends register themselves by name from an init function, like
// database/sql drivers, and are opened with Open. Import the backend
// package for its side effect:
//
//	import _ "github.com/rlch/spar/history/sqlite"
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rlch/spar/model"
)

// Sentinel errors for the history package.
var (
	// ErrUnknownStore is returned by Open for an unregistered backend.
	ErrUnknownStore = errors.New("history: unknown store")

	// ErrInvalidConfig is returned when a backend receives the wrong
	// configuration type.
	ErrInvalidConfig = errors.New("history: invalid store config")
)

// Run is one persisted unit run.
type Run struct {
	ID       string        `json:"id"`
	Unit     string        `json:"unit"`
	Engine   string        `json:"engine"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Err      string        `json:"error,omitempty"`
	Tests    []TestOutcome `json:"tests"`
}

// TestOutcome is the final state of one test in a run.
type TestOutcome struct {
	Name   string           `json:"name"`
	Status model.TestStatus `json:"status"`
	Detail string           `json:"detail,omitempty"`
}

// Counts tallies the tests of the run by status.
func (r Run) Counts() model.Counts {
	var c model.Counts
	for _, t := range r.Tests {
		c.Add(t.Status)
	}

	return c
}

// Elapsed returns the run duration.
func (r Run) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Store saves and lists runs.
type Store interface {
	// Save persists a run. Saving an ID twice is an error.
	Save(ctx context.Context, run Run) error

	// List returns runs newest first. An empty unit lists every unit;
	// a limit of zero or less means no limit.
	List(ctx context.Context, unit string, limit int) ([]Run, error)

	// Close releases the store.
	Close() error
}

// Factory opens a Store from backend-specific configuration.
type Factory func(cfg any) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available by name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = factory
}

// Open opens the backend registered under name.
func Open(name string, cfg any) (Store, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, name)
	}

	return factory(cfg)
}

// Registered returns the registered backend names, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// SortNewestFirst orders runs by start time, newest first, breaking ties by
// ID.
func SortNewestFirst(runs []Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].Started.Equal(runs[j].Started) {
			return runs[i].Started.After(runs[j].Started)
		}

		return runs[i].ID < runs[j].ID
	})
}
