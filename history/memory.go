package history

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rlch/spar"
)

func init() {
	Register(spar.HistoryMemory, func(any) (Store, error) {
		return NewMemory(), nil
	})
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	runs []Run
	ids  map[string]bool
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]bool)}
}

// Save stores a copy of run.
func (m *Memory) Save(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ids[run.ID] {
		return fmt.Errorf("history: run %s already saved", run.ID)
	}

	run.Tests = slices.Clone(run.Tests)
	m.runs = append(m.runs, run)
	m.ids[run.ID] = true

	return nil
}

// List returns runs newest first.
func (m *Memory) List(_ context.Context, unit string, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Run

	for _, r := range m.runs {
		if unit == "" || r.Unit == unit {
			r.Tests = slices.Clone(r.Tests)
			out = append(out, r)
		}
	}

	SortNewestFirst(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
