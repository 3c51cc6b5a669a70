// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software provides an exact in-memory devmem backend.
//
// Device memory is kept in host byte slices and every queue executes its
// commands in order. In deferred mode (the default) non-blocking commands
// are held on their queue until a blocking command or Finish on the same
// queue runs them, which exposes missing synchronization the way a real
// device would.
//
// The backend registers itself with the backend registry as "software":
//
//	import _ "github.com/gogpu/devmem/backend/software"
package software

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/devmem"
	"github.com/gogpu/devmem/backend"
)

// Backend errors.
var (
	// ErrClosed is returned when the backend is used after Close.
	ErrClosed = errors.New("software: backend closed")

	// ErrForeignHandle is returned for peer handles or queues that this
	// backend did not issue.
	ErrForeignHandle = errors.New("software: foreign handle")

	// ErrReleased is returned when a released allocation is used.
	ErrReleased = errors.New("software: allocation released")

	// ErrOutOfBounds is returned when a request exceeds an allocation or
	// the host memory passed with it.
	ErrOutOfBounds = errors.New("software: out of bounds")
)

func init() {
	backend.Register(backend.Software, func() (devmem.Backend, error) {
		return New(), nil
	})
}

// Config holds the software backend configuration.
type Config struct {
	// Deferred holds non-blocking commands on their queue until a blocking
	// command or Finish on the same queue. When false every command runs
	// as soon as it is enqueued.
	Deferred bool
}

// DefaultConfig returns the default configuration: deferred execution.
func DefaultConfig() Config {
	return Config{Deferred: true}
}

// Backend is an in-memory devmem.Backend.
// It is safe for concurrent use.
type Backend struct {
	cfg Config
	log atomic.Pointer[slog.Logger]

	mu     sync.Mutex
	queues []*Queue
	live   int
	closed bool
}

// New creates a backend with DefaultConfig.
func New() *Backend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a backend with cfg.
func NewWithConfig(cfg Config) *Backend {
	b := &Backend{cfg: cfg}
	b.log.Store(devmem.Logger())
	b.queues = []*Queue{{name: "software/default", owner: b}}
	return b
}

// SetLogger sets the backend logger. Engines created WithLogger call it.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l != nil {
		b.log.Store(l)
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.Software }

// DefaultQueue returns the queue created with the backend.
func (b *Backend) DefaultQueue() devmem.Queue { return b.queues[0] }

// NewQueue creates an additional queue.
func (b *Backend) NewQueue(label string) (devmem.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if label == "" {
		label = fmt.Sprintf("queue-%d", len(b.queues))
	}
	q := &Queue{name: "software/" + label, owner: b}
	b.queues = append(b.queues, q)
	return q, nil
}

// Live returns the number of allocations not yet released.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// CreateBuffer allocates a zeroed buffer.
func (b *Backend) CreateBuffer(desc devmem.BufferDescriptor) (devmem.PeerHandle, error) {
	if desc.Size < 0 {
		return nil, fmt.Errorf("software: create buffer: negative size %d", int64(desc.Size))
	}
	return b.allocate(&allocation{label: desc.Label, data: make([]byte, desc.Size)})
}

// CreateImage allocates a zeroed image stored tightly in x, y, z order.
func (b *Backend) CreateImage(desc devmem.ImageDescriptor) (devmem.PeerHandle, error) {
	es := desc.ElementSize()
	if es <= 0 {
		return nil, fmt.Errorf("software: create image: element size %d", int64(es))
	}
	size := devmem.Bytes(desc.Shape[0]*desc.Shape[1]*desc.Shape[2]) * es
	return b.allocate(&allocation{
		label: desc.Label,
		data:  make([]byte, size),
		image: &imageLayout{shape: desc.Shape, elementSize: es},
	})
}

func (b *Backend) allocate(a *allocation) (devmem.PeerHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.live++
	b.log.Load().Debug("software: allocated", "label", a.label, "bytes", len(a.data), "image", a.image != nil)
	return a, nil
}

// Release frees an allocation.
func (b *Backend) Release(peer devmem.PeerHandle) error {
	a, ok := peer.(*allocation)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignHandle, peer)
	}
	if a.released.Swap(true) {
		return ErrReleased
	}
	b.mu.Lock()
	b.live--
	b.mu.Unlock()
	return nil
}

// Finish runs every command pending on q.
func (b *Backend) Finish(q devmem.Queue) error {
	sq, err := b.queue(q)
	if err != nil {
		return err
	}
	sq.flush()
	return nil
}

// Close finishes every queue and marks the backend closed.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	queues := append([]*Queue(nil), b.queues...)
	live := b.live
	b.mu.Unlock()

	for _, q := range queues {
		q.flush()
	}
	if live > 0 {
		b.log.Load().Warn("software: closed with live allocations", "allocations", live)
	}
	return nil
}

// queue resolves q to a queue of this backend.
func (b *Backend) queue(q devmem.Queue) (*Queue, error) {
	sq, ok := q.(*Queue)
	if !ok || sq.owner != b {
		return nil, fmt.Errorf("%w: queue %T", ErrForeignHandle, q)
	}
	return sq, nil
}

// submit runs fn on q, now or at the next flush.
func (b *Backend) submit(q devmem.Queue, blocking bool, fn func()) error {
	sq, err := b.queue(q)
	if err != nil {
		return err
	}
	if !b.cfg.Deferred {
		fn()
		return nil
	}
	sq.push(fn)
	if blocking {
		sq.flush()
	}
	return nil
}

// Queue is an in-order command queue of the software backend.
type Queue struct {
	name  string
	owner *Backend

	mu      sync.Mutex
	pending []func()
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Pending returns the number of commands waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// flush runs pending commands in order, including commands they enqueue.
func (q *Queue) flush() {
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}
