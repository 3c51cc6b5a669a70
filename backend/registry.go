// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/devmem"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for backend selection (first that opens wins).
	backendPriority = []string{WGPU, Software}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens the backend registered under name.
func Open(name string) (devmem.Backend, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	b, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend: open %q: %w", name, err)
	}
	return b, nil
}

// Default opens the best available backend.
// Backends are tried in priority order (wgpu, then software), then any
// other registered backend in name order. The errors of backends that
// failed to open are joined into the returned error.
func Default() (devmem.Backend, error) {
	tried := make(map[string]bool)
	var errs []error

	order := append([]string(nil), backendPriority...)
	order = append(order, Available()...)
	for _, name := range order {
		if tried[name] || !IsRegistered(name) {
			continue
		}
		tried[name] = true
		b, err := Open(name)
		if err == nil {
			devmem.Logger().Info("backend: selected", "backend", name)
			return b, nil
		}
		devmem.Logger().Warn("backend: unavailable", "backend", name, "err", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrBackendNotAvailable}, errs...)...)
}

// MustDefault returns the default backend or panics.
func MustDefault() devmem.Backend {
	b, err := Default()
	if err != nil {
		panic(err)
	}
	return b
}
