// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"errors"
	"fmt"
	"sync"
)

// Context allocates device surfaces from a backend, accounts for their
// memory against an optional budget and owns the engine that moves data
// between them.
//
// Context is safe for concurrent use.
type Context struct {
	backend Backend
	engine  *Engine

	mu          sync.Mutex
	budgetBytes Bytes // 0 means unlimited
	usedBytes   Bytes
	peakBytes   Bytes
	surfaces    int
	allocations uint64
	rejections  uint64
	closed      bool
}

// NewContext creates a context on top of b.
func NewContext(b Backend, opts ...ContextOption) (*Context, error) {
	if b == nil {
		return nil, errors.New("devmem: new context: nil backend")
	}
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}
	budget := o.budget
	if budget < 0 {
		budget = 0
	}
	c := &Context{
		backend:     b,
		engine:      NewEngine(b, o.engine...),
		budgetBytes: budget,
	}
	c.engine.log.Info("devmem: context opened", "backend", b.Name(), "budget", int64(budget))
	return c, nil
}

// Backend returns the context's backend.
func (c *Context) Backend() Backend { return c.backend }

// Engine returns the context's transfer engine.
func (c *Context) Engine() *Engine { return c.engine }

// NewQueue creates an additional backend queue.
func (c *Context) NewQueue(label string) (Queue, error) {
	q, err := c.backend.NewQueue(label)
	if err != nil {
		return nil, wrapBackend(c.backend, "NewQueue", err)
	}
	return q, nil
}

// Create allocates a device surface described by desc.
func (c *Context) Create(desc SurfaceDescriptor) (*Surface, error) {
	if !desc.Kind.Device() {
		return nil, fmt.Errorf("create: %w: %s is not a device kind", ErrUnsupportedKind, desc.Kind)
	}
	shape, rank, err := desc.shape()
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	channels := desc.Channels
	if channels == 0 {
		channels = 1
	}
	size := Bytes(shape[0]*shape[1]*shape[2]*channels) * desc.NativeType.Size()
	if err := c.reserve(size); err != nil {
		return nil, fmt.Errorf("create %s: %w", desc.Kind, err)
	}

	var peer PeerHandle
	if desc.Kind == KindBuffer {
		peer, err = c.backend.CreateBuffer(BufferDescriptor{
			Label:  desc.Label,
			Size:   size,
			Policy: desc.Policy,
		})
		err = wrapBackend(c.backend, "CreateBuffer", err)
	} else {
		peer, err = c.backend.CreateImage(ImageDescriptor{
			Label:      desc.Label,
			NativeType: desc.NativeType,
			Channels:   channels,
			Shape:      shape,
			Rank:       rank,
			Policy:     desc.Policy,
		})
		err = wrapBackend(c.backend, "CreateImage", err)
	}
	if err != nil {
		c.unreserve(size)
		return nil, err
	}

	s, err := NewSurface(desc, peer, func(p PeerHandle) error {
		defer c.unreserve(size)
		return wrapBackend(c.backend, "Release", c.backend.Release(p))
	})
	if err != nil {
		c.unreserve(size)
		return nil, errors.Join(err, wrapBackend(c.backend, "Release", c.backend.Release(peer)))
	}
	c.engine.log.Debug("devmem: allocated", "surface", s.label(), "bytes", int64(size))
	return s, nil
}

// CreateBuffer allocates a linear device buffer.
func (c *Context) CreateBuffer(policy AccessPolicy, t NativeType, channels int64, dims ...int64) (*Surface, error) {
	return c.Create(SurfaceDescriptor{
		Kind:       KindBuffer,
		NativeType: t,
		Channels:   channels,
		Dimensions: dims,
		Policy:     policy,
	})
}

// CreateImage allocates a device image.
func (c *Context) CreateImage(policy AccessPolicy, t NativeType, channels int64, dims ...int64) (*Surface, error) {
	return c.Create(SurfaceDescriptor{
		Kind:       KindImage,
		NativeType: t,
		Channels:   channels,
		Dimensions: dims,
		Policy:     policy,
	})
}

// CreateHostSurface allocates a host surface. Host memory does not count
// against the budget.
func (c *Context) CreateHostSurface(t NativeType, channels int64, dims ...int64) (*Surface, error) {
	return NewHostSurface(t, channels, dims...)
}

// Stats returns the current memory accounting.
func (c *Context) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := MemoryStats{
		BudgetBytes: c.budgetBytes,
		UsedBytes:   c.usedBytes,
		PeakBytes:   c.peakBytes,
		Surfaces:    c.surfaces,
		Allocations: c.allocations,
		Rejections:  c.rejections,
	}
	if c.budgetBytes > 0 {
		s.Utilization = float64(c.usedBytes) / float64(c.budgetBytes)
	}
	return s
}

// Close closes the backend. Surfaces still allocated are reported at warn
// level; their memory belongs to the backend and is freed with it.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := c.surfaces
	c.mu.Unlock()

	if live > 0 {
		c.engine.log.Warn("devmem: context closed with live surfaces", "surfaces", live)
	}
	if err := c.backend.Close(); err != nil {
		return wrapBackend(c.backend, "Close", err)
	}
	return nil
}

func (c *Context) reserve(size Bytes) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	if c.budgetBytes > 0 && c.usedBytes+size > c.budgetBytes {
		c.rejections++
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrMemoryBudgetExceeded, int64(size), int64(c.usedBytes), int64(c.budgetBytes))
	}
	c.usedBytes += size
	c.surfaces++
	c.allocations++
	if c.usedBytes > c.peakBytes {
		c.peakBytes = c.usedBytes
	}
	return nil
}

func (c *Context) unreserve(size Bytes) {
	c.mu.Lock()
	c.usedBytes -= size
	c.surfaces--
	c.mu.Unlock()
}
