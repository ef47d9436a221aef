// SPDX-License-Identifier: MPL-2.0

// Package registry collects benchmark ids in declaration order and
// filters them for scheduling.
package registry

import (
	"errors"
	"fmt"

	"github.com/slowli/yab/pkg/benchid"
)

// Sentinel errors for programmatic detection with errors.Is.
var (
	ErrDuplicateID      = errors.New("duplicate benchmark id")
	ErrDuplicateCapture = errors.New("duplicate capture")
)

type (
	// Entry is one registered benchmark: its id plus the captures it
	// declares, in declaration order. Captures is empty for plain
	// benchmarks measured end-to-end.
	Entry struct {
		ID       benchid.ID
		Captures []benchid.Capture
	}

	// Registry records benchmark declarations. It is written during
	// discovery on a single goroutine and read-only afterwards.
	Registry struct {
		entries []Entry
		index   map[string]int
	}

	// DuplicateIDError is returned when a benchmark id is declared twice.
	DuplicateIDError struct {
		ID benchid.ID
	}

	// DuplicateCaptureError is returned when a capture name is declared
	// twice within one benchmark.
	DuplicateCaptureError struct {
		ID      benchid.ID
		Capture benchid.Capture
	}
)

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("benchmark %q is defined multiple times", e.ID)
}

// Unwrap returns ErrDuplicateID.
func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// Error implements the error interface.
func (e *DuplicateCaptureError) Error() string {
	return fmt.Sprintf("capture %q is defined multiple times in benchmark %q", e.Capture, e.ID)
}

// Unwrap returns ErrDuplicateCapture.
func (e *DuplicateCaptureError) Unwrap() error { return ErrDuplicateCapture }

// New creates an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register records a benchmark id. Declaring the same id twice is a
// configuration error.
func (r *Registry) Register(id benchid.ID) error {
	if valid, errs := id.IsValid(); !valid {
		return errs[0]
	}
	key := id.String()
	if _, ok := r.index[key]; ok {
		return &DuplicateIDError{ID: id}
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, Entry{ID: id})
	return nil
}

// RegisterCapture records a named capture for an already-registered id.
func (r *Registry) RegisterCapture(id benchid.ID, capture benchid.Capture) error {
	idx, ok := r.index[id.String()]
	if !ok {
		return fmt.Errorf("benchmark %q is not registered", id)
	}
	entry := &r.entries[idx]
	for _, existing := range entry.Captures {
		if existing == capture {
			return &DuplicateCaptureError{ID: id, Capture: capture}
		}
	}
	entry.Captures = append(entry.Captures, capture)
	return nil
}

// Entries returns all registered benchmarks in declaration order.
// Reporters present results in this order.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// IDs returns all registered ids in declaration order.
func (r *Registry) IDs() []benchid.ID {
	ids := make([]benchid.ID, len(r.entries))
	for i, entry := range r.entries {
		ids[i] = entry.ID
	}
	return ids
}

// Len returns the number of registered benchmarks.
func (r *Registry) Len() int { return len(r.entries) }

// Filter returns the entries matched by the matcher, in declaration order.
func (r *Registry) Filter(m Matcher) []Entry {
	var matched []Entry
	for _, entry := range r.entries {
		if m.Matches(entry.ID) {
			matched = append(matched, entry)
		}
	}
	return matched
}
