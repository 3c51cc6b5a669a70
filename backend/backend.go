// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/devmem"
)

// Backend name constants.
const (
	// Software is the name of the in-memory reference backend.
	Software = "software"

	// WGPU is the name of the gogpu/wgpu HAL backend.
	WGPU = "wgpu"
)

// Common registry errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or no registered backend could be opened.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Factory opens a new backend instance.
type Factory func() (devmem.Backend, error)
