// Package submission provides read-only access to a form submission: its
// ordered field layout and one normalized field.Value per configured field.
// The delivery pipeline never mutates a submission.
package submission

import (
	"context"
	"sync"

	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/field"
)

// Submission is one filled-in instance of a form.
type Submission struct {
	ID         int64
	FormHandle string

	layout []field.Descriptor
	values map[string]field.Value
}

// New creates a submission from an ordered layout and its values. Values for
// handles absent from the map read as field.Empty().
func New(id int64, formHandle string, layout []field.Descriptor, values map[string]field.Value) *Submission {
	if values == nil {
		values = map[string]field.Value{}
	}
	return &Submission{
		ID:         id,
		FormHandle: formHandle,
		layout:     layout,
		values:     values,
	}
}

// Layout returns the ordered field descriptors of the form.
func (s *Submission) Layout() []field.Descriptor {
	return s.layout
}

// Descriptor returns the field descriptor for handle, if configured.
func (s *Submission) Descriptor(handle string) (field.Descriptor, bool) {
	for _, d := range s.layout {
		if d.Handle == handle {
			return d, true
		}
	}
	return field.Descriptor{}, false
}

// FieldValue returns the normalized value for handle. A handle that was
// configured but never submitted returns field.Empty(); an unconfigured
// handle returns ok=false.
func (s *Submission) FieldValue(handle string) (field.Value, bool) {
	if _, ok := s.Descriptor(handle); !ok {
		return field.Empty(), false
	}
	if v, ok := s.values[handle]; ok {
		return v, true
	}
	return field.Empty(), true
}

// Store loads submissions by id.
type Store interface {
	// Submission returns the submission or errors.ErrSubmissionNotFound.
	Submission(ctx context.Context, id int64) (*Submission, error)
}

// MemoryStore is an in-memory Store used by the worker in development and by
// tests.
type MemoryStore struct {
	mu          sync.RWMutex
	submissions map[int64]*Submission
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{submissions: make(map[int64]*Submission)}
}

// Put stores a submission.
func (m *MemoryStore) Put(sub *Submission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[sub.ID] = sub
}

// Submission implements Store.
func (m *MemoryStore) Submission(_ context.Context, id int64) (*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.submissions[id]
	if !ok {
		return nil, errors.WrapFatal(errors.ErrSubmissionNotFound, "MemoryStore", "Submission", "lookup")
	}
	return sub, nil
}
