// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"fmt"
	"sync"
)

// ChangeEvent tells an observer that a transfer targeting Surface has been
// enqueued on Queue. For non-blocking transfers the data may not have
// landed yet; call Finish on the queue before reading it.
type ChangeEvent struct {
	Surface *Surface
	Queue   Queue
}

// Observer is told about changes to a surface.
type Observer interface {
	SurfaceChanged(ev ChangeEvent) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev ChangeEvent) error

// SurfaceChanged calls f(ev).
func (f ObserverFunc) SurfaceChanged(ev ChangeEvent) error { return f(ev) }

type observerEntry struct {
	id       uint64
	observer Observer
}

// notifier holds the observers of one surface.
type notifier struct {
	mu        sync.Mutex
	nextID    uint64
	observers []observerEntry
}

func (n *notifier) add(o Observer) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.observers = append(n.observers, observerEntry{id: n.nextID, observer: o})
	return n.nextID
}

func (n *notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.observers {
		if e.id == id {
			n.observers = append(n.observers[:i:i], n.observers[i+1:]...)
			return
		}
	}
}

func (n *notifier) len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.observers)
}

func (n *notifier) clear() {
	n.mu.Lock()
	n.observers = nil
	n.mu.Unlock()
}

// notify calls every observer once, outside the lock, in subscription
// order. Failures and panics are collected into an *ObserverError after
// all observers have run.
func (n *notifier) notify(ev ChangeEvent) error {
	n.mu.Lock()
	snapshot := make([]observerEntry, len(n.observers))
	copy(snapshot, n.observers)
	n.mu.Unlock()

	var errs []error
	for _, e := range snapshot {
		if err := callObserver(e.observer, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ObserverError{Surface: ev.Surface, Errs: errs}
}

func callObserver(o Observer, ev ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.SurfaceChanged(ev)
}
