// Package store persists report documents keyed by report ID. Persistence is
// whole-document read-modify-write; callers that mutate a report must hold
// the per-ID lock (see KeyedLock) across the Get/Save pair.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/lourdes7u7/analisisAudio/internal/report"
)

var (
	// ErrNotFound is returned when no report exists for the given ID.
	ErrNotFound = errors.New("report not found")
	// ErrExists is returned by Create when the ID is already taken.
	ErrExists = errors.New("report already exists")
)

// Summary is the listing projection of a report.
type Summary struct {
	ReportID    string `json:"reportId"`
	PatientName string `json:"patientName"`
	Created     string `json:"created"`
	Status      string `json:"status"`
}

// Store is the report persistence abstraction. Implementations must treat
// the document as opaque and preserve it byte-for-byte through a Get/Save
// round trip (modulo encoding).
type Store interface {
	// Create persists a new report. Returns ErrExists if the ID is taken.
	Create(ctx context.Context, r *report.Report) error
	// Get loads the report with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*report.Report, error)
	// Save overwrites the full document for an existing report.
	Save(ctx context.Context, r *report.Report) error
	// List returns a summary for every persisted report.
	List(ctx context.Context) ([]Summary, error)
}

// KeyedLock provides mutual exclusion per report ID, closing the
// read-modify-write race between concurrent analyze calls on the same report.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLock returns an empty lock table.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*lockEntry)}
}

// Lock acquires the lock for id and returns the matching unlock function.
// Entries are reference counted and removed when the last holder releases,
// so the table does not grow with the number of distinct IDs ever seen.
func (k *KeyedLock) Lock(id string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &lockEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
