// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"fmt"
	"log/slog"
	"time"
)

// Engine validates transfers in element units, converts them to byte
// requests and hands them to a Backend on one queue.
//
// Every precondition is checked before the backend is called: a transfer
// that fails validation issues no backend work. After a transfer that
// mutates a surface has been enqueued, the surface's observers are told.
// Observer failures are returned as *ObserverError.
//
// An Engine holds no mutable state and is safe for concurrent use. Use On
// to issue transfers on another queue.
type Engine struct {
	backend Backend
	queue   Queue
	log     *slog.Logger
	timing  bool
}

// NewEngine creates an engine on top of b.
func NewEngine(b Backend, opts ...EngineOption) *Engine {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		propagateLogger(b, o.logger)
	} else {
		o.logger = Logger()
	}
	if o.queue == nil {
		o.queue = b.DefaultQueue()
	}
	return &Engine{
		backend: b,
		queue:   o.queue,
		log:     o.logger,
		timing:  o.timing,
	}
}

// Backend returns the engine's backend.
func (e *Engine) Backend() Backend { return e.backend }

// Queue returns the queue transfers are enqueued on.
func (e *Engine) Queue() Queue { return e.queue }

// On returns an engine that shares e's backend and settings but enqueues
// on q.
func (e *Engine) On(q Queue) *Engine {
	c := *e
	c.queue = q
	return &c
}

// Finish blocks until every transfer enqueued on the engine's queue has
// completed.
func (e *Engine) Finish() error {
	defer e.trace("finish")()
	if err := e.backend.Finish(e.queue); err != nil {
		return wrapBackend(e.backend, "Finish", err)
	}
	return nil
}

// notify tells the observers of s that a transfer on the engine's queue
// changed it.
func (e *Engine) notify(s *Surface) error {
	err := s.notifier.notify(ChangeEvent{Surface: s, Queue: e.queue})
	if err != nil {
		e.log.Warn("devmem: observer failed", "surface", s.label(), "queue", e.queue.Name(), "err", err)
	}
	return err
}

// trace logs the duration of op when timing is enabled.
// Use as: defer e.trace("op")().
func (e *Engine) trace(op string) func() {
	if !e.timing {
		return func() {}
	}
	start := time.Now()
	return func() {
		e.log.Info("devmem: elapsed", "op", op, "queue", e.queue.Name(), "elapsed", time.Since(start))
	}
}

// checkRange validates a linear element range of s.
func checkRange(op string, s *Surface, offset, length Elements) error {
	if offset < 0 || length < 0 {
		return fmt.Errorf("%s: surface %s: %w: offset %d, length %d",
			op, s.label(), ErrInvalidRegion, int64(offset), int64(length))
	}
	if length > s.Length() || offset > s.Length()-length {
		return fmt.Errorf("%s: surface %s: %w: %d elements at %d exceed length %d",
			op, s.label(), ErrSizeMismatch, int64(length), int64(offset), int64(s.Length()))
	}
	return nil
}

// checkSameElement fails unless a and b have the same element size.
func checkSameElement(op string, a, b *Surface) error {
	if a.ElementSize() != b.ElementSize() {
		return fmt.Errorf("%s: %w: element size %d of %s differs from %d of %s",
			op, ErrSizeMismatch, int64(a.ElementSize()), a.label(), int64(b.ElementSize()), b.label())
	}
	return nil
}

// hostTarget returns the bytes of host memory used by a transfer.
// A *Surface passed as host memory must be a live host surface.
func hostTarget(op string, mem HostMemory) ([]byte, error) {
	if mem == nil {
		return nil, fmt.Errorf("%s: %w: nil host memory", op, ErrSizeMismatch)
	}
	if s, ok := mem.(*Surface); ok {
		if err := s.live(op); err != nil {
			return nil, err
		}
		if err := s.requireKind(op, KindHost); err != nil {
			return nil, err
		}
	}
	return mem.HostBytes(), nil
}

// checkCapacity fails unless host memory holds at least need bytes.
func checkCapacity(op string, host []byte, need Bytes) error {
	if Bytes(len(host)) < need {
		return fmt.Errorf("%s: %w: host memory holds %d bytes, transfer needs %d",
			op, ErrSizeMismatch, len(host), int64(need))
	}
	return nil
}
