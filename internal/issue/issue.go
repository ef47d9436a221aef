// SPDX-License-Identifier: MPL-2.0

// Package issue builds user-facing errors with enough context to act on:
// what operation failed, what resource was involved, and how to fix it.
package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is an error with context for user-facing error
	// messages.
	ActionableError struct {
		// Operation describes what was being attempted (e.g. "load
		// config", "run cachegrind").
		Operation string

		// Resource identifies the file, path, or entity involved
		// (optional).
		Resource string

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// Cause is the underlying error that triggered this error
		// (optional).
		Cause error
	}

	// ErrorContext is a builder for constructing ActionableError
	// instances.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WithOperation sets the failed operation.
func (c *ErrorContext) WithOperation(operation string) *ErrorContext {
	c.operation = operation
	return c
}

// WithResource sets the involved resource.
func (c *ErrorContext) WithResource(resource string) *ErrorContext {
	c.resource = resource
	return c
}

// WithSuggestion appends a fix-it hint.
func (c *ErrorContext) WithSuggestion(suggestion string) *ErrorContext {
	c.suggestions = append(c.suggestions, suggestion)
	return c
}

// Wrap sets the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build assembles the ActionableError.
func (c *ErrorContext) Build() *ActionableError {
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// Error implements the error interface.
func (e *ActionableError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "failed to %s", e.Operation)
	if e.Resource != "" {
		fmt.Fprintf(&sb, ": %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	for _, suggestion := range e.Suggestions {
		fmt.Fprintf(&sb, "\n  hint: %s", suggestion)
	}
	return sb.String()
}

// Unwrap returns the underlying cause, if any.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Is allows matching by operation through errors.Is with a template
// ActionableError.
func (e *ActionableError) Is(target error) bool {
	var actionable *ActionableError
	if !errors.As(target, &actionable) {
		return false
	}
	return actionable.Operation == e.Operation
}
