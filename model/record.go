package model

import "sync"

// Record is the state of one discovered test.
//
// Records are created by their Unit on first discovery and live as long as
// it does. Setters are no-ops when the value is unchanged, so listeners only
// see real transitions.
type Record struct {
	notifier

	mu         sync.RWMutex
	name       string
	status     TestStatus
	failDetail string
	unitName   string
	owner      *Unit
}

func newRecord(name string, owner *Unit) *Record {
	return &Record{
		name:     name,
		status:   StatusNone,
		unitName: owner.DisplayName(),
		owner:    owner,
	}
}

// Name returns the test name, unique within the owning unit.
func (r *Record) Name() string { return r.name }

// UnitName returns the display name of the owning unit.
func (r *Record) UnitName() string { return r.unitName }

// Unit returns the owning unit. The reference is for lookup only.
func (r *Record) Unit() *Unit { return r.owner }

// Status returns the current status.
func (r *Record) Status() TestStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status
}

// FailDetail returns the failure text; empty unless the last outcome was a
// failure or ignored.
func (r *Record) FailDetail() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.failDetail
}

func (r *Record) setStatus(s TestStatus) bool {
	r.mu.Lock()
	if r.status == s {
		r.mu.Unlock()

		return false
	}

	r.status = s
	r.mu.Unlock()

	r.raise(SignalStatus)

	return true
}

func (r *Record) setFailDetail(detail string) bool {
	r.mu.Lock()
	if r.failDetail == detail {
		r.mu.Unlock()

		return false
	}

	r.failDetail = detail
	r.mu.Unlock()

	r.raise(SignalFailDetail)

	return true
}

// RecordSnapshot is a point-in-time copy of a Record.
type RecordSnapshot struct {
	Name       string     `json:"name"`
	Unit       string     `json:"unit"`
	Status     TestStatus `json:"status"`
	FailDetail string     `json:"failDetail,omitempty"`
}

// Snapshot copies the record state.
func (r *Record) Snapshot() RecordSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RecordSnapshot{
		Name:       r.name,
		Unit:       r.unitName,
		Status:     r.status,
		FailDetail: r.failDetail,
	}
}

// Snapshots copies a slice of records.
func Snapshots(records []*Record) []RecordSnapshot {
	out := make([]RecordSnapshot, len(records))
	for i, r := range records {
		out[i] = r.Snapshot()
	}

	return out
}
