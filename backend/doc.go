// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides a registry of devmem backends.
//
// Backend packages register a factory from their init function, so a
// blank import is enough to make a backend selectable by name:
//
//	import _ "github.com/gogpu/devmem/backend/software"
//
// # Backend Selection
//
// Use Default to open the best available backend, or Open to request a
// specific one by name:
//
//	// Open the best available backend
//	b, err := backend.Default()
//
//	// Or request a specific backend
//	b, err := backend.Open(backend.Software)
//
// # Available Backends
//
//   - "wgpu": gogpu/wgpu HAL device (backend/wgpu)
//   - "software": exact in-memory device (backend/software)
package backend
