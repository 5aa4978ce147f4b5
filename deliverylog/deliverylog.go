// Package deliverylog records the outcome of every integration send attempt.
// The log is append-only: a resend creates a new entry rather than mutating
// a previous one, preserving the full audit history administrators see.
package deliverylog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/extreme-creations/formie/errors"
)

// State is the terminal state of one send attempt.
type State string

const (
	// StateSucceeded marks a delivered payload.
	StateSucceeded State = "succeeded"
	// StateFailed marks a transport failure or non-2xx response.
	StateFailed State = "failed"
	// StateCancelled marks a gating or hook veto. Cancelled attempts are
	// not system failures and must not alert.
	StateCancelled State = "cancelled"
)

// Result is the immutable audit record of one send attempt.
type Result struct {
	AttemptID         string    `json:"attemptId"`
	SubmissionID      int64     `json:"submissionId"`
	IntegrationHandle string    `json:"integrationHandle"`
	State             State     `json:"state"`
	HTTPStatus        int       `json:"httpStatus,omitempty"`
	ResponseBody      string    `json:"responseBody,omitempty"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Duplicate         bool      `json:"duplicate,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewResult creates a result with a fresh attempt id and timestamp.
func NewResult(submissionID int64, integrationHandle string) Result {
	return Result{
		AttemptID:         uuid.NewString(),
		SubmissionID:      submissionID,
		IntegrationHandle: integrationHandle,
		Timestamp:         time.Now().UTC(),
	}
}

// Success reports whether the attempt ended without error. Cancelled counts
// as success for alerting purposes: a consent veto is not a system failure.
func (r Result) Success() bool {
	return r.State == StateSucceeded || r.State == StateCancelled
}

// Key returns the storage key for this result.
func (r Result) Key() string {
	return fmt.Sprintf("%d.%s.%s", r.SubmissionID, r.IntegrationHandle, r.AttemptID)
}

// Store persists delivery results. Append-only: no update or delete.
type Store interface {
	// Append persists one result. Implementations must never overwrite an
	// existing attempt.
	Append(ctx context.Context, result Result) error

	// List returns all results for a submission, oldest first.
	List(ctx context.Context, submissionID int64) ([]Result, error)
}

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	results []Result
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, result Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.results {
		if existing.AttemptID == result.AttemptID {
			return errors.WrapInvalid(errors.ErrLogAppendFailed, "MemoryStore", "Append",
				"attempt already recorded")
		}
	}

	m.results = append(m.results, result)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, submissionID int64) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Result
	for _, r := range m.results {
		if r.SubmissionID == submissionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// All returns every recorded result. Test helper.
func (m *MemoryStore) All() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Result, len(m.results))
	copy(out, m.results)
	return out
}
