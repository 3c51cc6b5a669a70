// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/devmem"
	"github.com/gogpu/devmem/backend"
	"github.com/gogpu/devmem/backend/software"
)

func TestRegistryListsSoftware(t *testing.T) {
	if !slices.Contains(backend.Available(), backend.Software) {
		t.Errorf("Available() = %v, want it to contain %q", backend.Available(), backend.Software)
	}
	if !slices.IsSorted(backend.Available()) {
		t.Errorf("Available() = %v, want sorted names", backend.Available())
	}
}

func TestOpenUnknown(t *testing.T) {
	_, err := backend.Open("does-not-exist")
	if !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("Open() error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	const name = "registry-test"
	backend.Register(name, func() (devmem.Backend, error) {
		return software.NewWithConfig(software.Config{}), nil
	})
	t.Cleanup(func() { backend.Unregister(name) })

	if !backend.IsRegistered(name) {
		t.Fatal("IsRegistered() = false after Register")
	}
	b, err := backend.Open(name)
	if err != nil || b == nil {
		t.Fatalf("Open() = %v, %v", b, err)
	}
	backend.Unregister(name)
	if backend.IsRegistered(name) {
		t.Error("IsRegistered() = true after Unregister")
	}
}

func TestDefaultSkipsFailingBackends(t *testing.T) {
	broken := errors.New("no adapter")
	backend.Register(backend.WGPU, func() (devmem.Backend, error) { return nil, broken })
	t.Cleanup(func() { backend.Unregister(backend.WGPU) })

	b, err := backend.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if b.Name() != backend.Software {
		t.Errorf("Default() = %q, want fallback to %q", b.Name(), backend.Software)
	}
}

func TestDefaultNothingOpens(t *testing.T) {
	saved := backend.Available()
	broken := errors.New("broken")
	for _, name := range saved {
		backend.Unregister(name)
	}
	t.Cleanup(func() {
		backend.Unregister("broken")
		backend.Register(backend.Software, func() (devmem.Backend, error) { return software.New(), nil })
	})
	backend.Register("broken", func() (devmem.Backend, error) { return nil, broken })

	_, err := backend.Default()
	if !errors.Is(err, backend.ErrBackendNotAvailable) || !errors.Is(err, broken) {
		t.Errorf("Default() error = %v, want ErrBackendNotAvailable joined with the factory error", err)
	}
}
