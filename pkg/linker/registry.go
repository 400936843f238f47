package linker

import (
	"strings"
	"sync"
)

// Registry is the in-memory table of live sessions. It guarantees at most one
// Record per session id; all mutation goes through its atomic operations.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// StartOrResume returns the live record for id, creating one atomically if
// none exists. Concurrent calls for the same new id race safely: exactly one
// caller creates (reported by the bool), the rest attach to the winner's
// record.
func (r *Registry) StartOrResume(id string) (*Record, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, ErrEmptySessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[id]; ok {
		return rec, false, nil
	}
	rec := newRecord(id)
	r.records[id] = rec
	return rec, true, nil
}

// StrictStart creates a record for id, failing with ErrSessionExists if one
// is already live. Used when the id is caller-supplied and silent resumption
// must not happen.
func (r *Registry) StrictStart(id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptySessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; ok {
		return nil, ErrSessionExists
	}
	rec := newRecord(id)
	r.records[id] = rec
	return rec, nil
}

// Get looks a record up without creating one.
func (r *Registry) Get(id string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Remove deletes the record. Idempotent, so concurrent terminal events for
// the same session are safe.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

// Count reports how many sessions are live.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
