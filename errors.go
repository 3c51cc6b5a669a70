// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"errors"
	"fmt"
	"strings"
)

// Transfer and surface errors.
var (
	// ErrAccessDenied is returned when a surface's host access policy
	// forbids the requested read or write.
	ErrAccessDenied = errors.New("devmem: access denied")

	// ErrSizeMismatch is returned when a range or region does not fit in
	// a surface, or when two surfaces that must agree in size do not.
	ErrSizeMismatch = errors.New("devmem: size mismatch")

	// ErrInvalidRegion is returned for negative origins or empty extents.
	ErrInvalidRegion = errors.New("devmem: invalid region")

	// ErrInvalidPattern is returned when a fill pattern is empty or does
	// not evenly divide the fill range.
	ErrInvalidPattern = errors.New("devmem: invalid fill pattern")

	// ErrInvalidShape is returned when a surface descriptor is malformed.
	ErrInvalidShape = errors.New("devmem: invalid surface shape")

	// ErrUnsupportedKind is returned when an operation does not apply to
	// the kind of surface it was given.
	ErrUnsupportedKind = errors.New("devmem: unsupported surface kind")

	// ErrUseAfterRelease is returned when a released surface is used or
	// released again.
	ErrUseAfterRelease = errors.New("devmem: surface used after release")

	// ErrBackendFault is returned when the backend rejects an operation.
	ErrBackendFault = errors.New("devmem: backend fault")

	// ErrObserverFault is returned when a change observer fails.
	ErrObserverFault = errors.New("devmem: observer fault")

	// ErrMemoryBudgetExceeded is returned when an allocation would exceed
	// the context memory budget.
	ErrMemoryBudgetExceeded = errors.New("devmem: memory budget exceeded")

	// ErrMisaligned is returned when host memory is not aligned for the
	// requested element view.
	ErrMisaligned = errors.New("devmem: misaligned host memory")

	// ErrContextClosed is returned when allocating from a closed context.
	ErrContextClosed = errors.New("devmem: context closed")
)

// BackendError wraps a failure reported by a backend.
// It matches both ErrBackendFault and the backend's own error with errors.Is.
type BackendError struct {
	// Op is the transfer that failed, e.g. "EnqueueCopy".
	Op string

	// Backend is the name of the failing backend.
	Backend string

	// Err is the backend's error.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("devmem: backend %s: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns ErrBackendFault and the backend's error.
func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendFault, e.Err}
}

// ObserverError collects the failures of change observers for one event.
// The transfer that triggered the event has already been enqueued.
type ObserverError struct {
	// Surface is the surface whose observers failed.
	Surface *Surface

	// Errs holds one error per failing observer, in subscription order.
	Errs []error
}

// Error implements the error interface.
func (e *ObserverError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "devmem: %d observer(s) of surface %s failed", len(e.Errs), e.Surface.label())
	for _, err := range e.Errs {
		sb.WriteString(": ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap returns ErrObserverFault followed by every observer error.
func (e *ObserverError) Unwrap() []error {
	out := make([]error, 0, len(e.Errs)+1)
	out = append(out, ErrObserverFault)
	return append(out, e.Errs...)
}

// wrapBackend turns a backend error into a *BackendError.
// An error that already is a *BackendError is returned as is.
func wrapBackend(b Backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Backend: b.Name(), Err: err}
}
