// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mirror keeps host copies of device surfaces.
//
// A Mirror subscribes to every surface it tracks and marks the host copy
// stale when a transfer targets the surface. Get refreshes stale copies
// with a blocking read on the queue of the last change, so writes enqueued
// on another queue are ordered before the refresh.
//
// Entries live in 16 shards with per-shard LRU eviction; evicted surfaces
// are unsubscribed.
package mirror

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/devmem"
)

const (
	// ShardCount is the number of shards. It is a power of 2.
	ShardCount = 16

	// DefaultCapacity is the default maximum number of entries per shard.
	DefaultCapacity = 64

	shardMask = ShardCount - 1
)

// ErrNotTracked is returned for surfaces the mirror does not track.
var ErrNotTracked = errors.New("mirror: surface not tracked")

// Mirror is a sharded LRU of host copies of device surfaces.
// It is safe for concurrent use.
type Mirror struct {
	engine   *devmem.Engine
	shards   [ShardCount]*shard
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	refreshes atomic.Uint64
	evictions atomic.Uint64
}

type shard struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	lru     *list.List // of *entry, most recent first
}

// entry is the host copy of one surface. It observes the surface.
type entry struct {
	surface     *devmem.Surface
	host        *devmem.Surface
	elem        *list.Element
	unsubscribe func()

	mu    sync.Mutex
	stale bool
	queue devmem.Queue // queue of the last change, nil before any
}

// SurfaceChanged marks the copy stale.
func (e *entry) SurfaceChanged(ev devmem.ChangeEvent) error {
	e.mu.Lock()
	e.stale = true
	e.queue = ev.Queue
	e.mu.Unlock()
	return nil
}

// New creates a mirror that refreshes through engine. If capacity <= 0,
// DefaultCapacity is used.
func New(engine *devmem.Engine, capacity int) *Mirror {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Mirror{engine: engine, capacity: capacity}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[uint64]*entry), lru: list.New()}
	}
	return m
}

func (m *Mirror) shard(s *devmem.Surface) *shard {
	return m.shards[s.ID()&shardMask]
}

// Track starts mirroring a device surface. The host copy is filled on the
// first Get. Tracking a tracked surface is a no-op.
func (m *Mirror) Track(s *devmem.Surface) error {
	if !s.Kind().Device() {
		return fmt.Errorf("mirror: track %s: %w", s, devmem.ErrUnsupportedKind)
	}
	if !s.Policy().HostReadable() {
		return fmt.Errorf("mirror: track %s: %w", s, devmem.ErrAccessDenied)
	}
	host, err := devmem.NewHostSurface(s.NativeType(), s.Channels(), s.Dimensions()...)
	if err != nil {
		return fmt.Errorf("mirror: track %s: %w", s, err)
	}

	sh := m.shard(s)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.entries[s.ID()]; ok {
		return nil
	}
	for sh.lru.Len() >= m.capacity {
		m.evictOldest(sh)
	}
	e := &entry{surface: s, host: host, stale: true}
	e.unsubscribe = s.Subscribe(e)
	e.elem = sh.lru.PushFront(e)
	sh.entries[s.ID()] = e
	return nil
}

// evictOldest must be called with sh.mu held.
func (m *Mirror) evictOldest(sh *shard) {
	back := sh.lru.Back()
	if back == nil {
		return
	}
	e := sh.lru.Remove(back).(*entry)
	delete(sh.entries, e.surface.ID())
	e.unsubscribe()
	m.evictions.Add(1)
	devmem.Logger().Debug("mirror: evicted", "surface", e.surface.String())
}

// Untrack stops mirroring s. It reports whether s was tracked.
func (m *Mirror) Untrack(s *devmem.Surface) bool {
	sh := m.shard(s)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[s.ID()]
	if !ok {
		return false
	}
	sh.lru.Remove(e.elem)
	delete(sh.entries, s.ID())
	e.unsubscribe()
	return true
}

// Get returns the host copy of s, refreshing it first if s changed since
// the last Get. The returned surface is owned by the mirror and must not
// be written.
//
// A surface released behind the mirror's back is untracked and its
// error returned.
func (m *Mirror) Get(s *devmem.Surface) (*devmem.Surface, error) {
	sh := m.shard(s)
	sh.mu.Lock()
	e, ok := sh.entries[s.ID()]
	if !ok {
		sh.mu.Unlock()
		return nil, fmt.Errorf("mirror: get %s: %w", s, ErrNotTracked)
	}
	sh.lru.MoveToFront(e.elem)

	e.mu.Lock()
	stale, q := e.stale, e.queue
	e.stale = false
	e.mu.Unlock()

	if !stale {
		sh.mu.Unlock()
		m.hits.Add(1)
		return e.host, nil
	}
	m.misses.Add(1)

	engine := m.engine
	if q != nil {
		engine = engine.On(q)
	}
	err := engine.CopyToHostSurface(s, e.host, true)
	if err != nil {
		if errors.Is(err, devmem.ErrUseAfterRelease) {
			sh.lru.Remove(e.elem)
			delete(sh.entries, s.ID())
			e.unsubscribe()
		} else {
			e.mu.Lock()
			e.stale = true
			e.mu.Unlock()
		}
		sh.mu.Unlock()
		return nil, fmt.Errorf("mirror: refresh %s: %w", s, err)
	}
	sh.mu.Unlock()
	m.refreshes.Add(1)
	return e.host, nil
}

// Values returns the host copy of s as a slice of T.
func Values[T devmem.Scalar](m *Mirror, s *devmem.Surface) ([]T, error) {
	host, err := m.Get(s)
	if err != nil {
		return nil, err
	}
	return devmem.View[T](host)
}

// Stale reports whether s is tracked and changed since its last Get.
func (m *Mirror) Stale(s *devmem.Surface) bool {
	sh := m.shard(s)
	sh.mu.Lock()
	e, ok := sh.entries[s.ID()]
	sh.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stale
}

// LastQueue returns the queue of the last change to s.
func (m *Mirror) LastQueue(s *devmem.Surface) (devmem.Queue, bool) {
	sh := m.shard(s)
	sh.mu.Lock()
	e, ok := sh.entries[s.ID()]
	sh.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue, e.queue != nil
}

// Clear untracks every surface.
func (m *Mirror) Clear() {
	for _, sh := range m.shards {
		sh.mu.Lock()
		for _, e := range sh.entries {
			e.unsubscribe()
		}
		sh.entries = make(map[uint64]*entry)
		sh.lru.Init()
		sh.mu.Unlock()
	}
}

// Len returns the number of tracked surfaces.
func (m *Mirror) Len() int {
	total := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

// Capacity returns the per-shard capacity.
func (m *Mirror) Capacity() int { return m.capacity }

// Stats contains mirror statistics.
type Stats struct {
	Len       int
	Capacity  int // per shard
	Hits      uint64
	Misses    uint64
	Refreshes uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns current mirror statistics.
func (m *Mirror) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Len:       m.Len(),
		Capacity:  m.capacity,
		Hits:      hits,
		Misses:    misses,
		Refreshes: m.refreshes.Load(),
		Evictions: m.evictions.Load(),
		HitRate:   rate,
	}
}

// ResetStats resets the statistics counters to zero.
func (m *Mirror) ResetStats() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.refreshes.Store(0)
	m.evictions.Store(0)
}
