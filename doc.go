// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package devmem provides typed device-memory surfaces and a region
// transfer engine for compute devices.
//
// # Overview
//
// A [Surface] is a typed, shaped block of memory that lives either on a
// device (a linear buffer or an image) or on the host. Every surface
// carries an element type, a channel count, one to three dimensions and
// an [AccessPolicy] that says whether the host and device kernels may
// read or write it.
//
// The [Engine] moves data between surfaces: fill, linear copy, region
// copy, bulk read and write, region read and write, and whole-surface
// copies into host surfaces. Every public operation speaks in elements;
// byte arithmetic happens once, inside the engine, before a request is
// handed to the [Backend].
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/devmem"
//	    "github.com/gogpu/devmem/backend/software"
//	)
//
//	ctx, err := devmem.NewContext(software.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	buf, _ := ctx.CreateBuffer(devmem.FullAccess, devmem.Int32, 1, 16)
//	defer buf.Release()
//
//	eng := ctx.Engine()
//	_ = eng.FillAll(buf, []byte{7, 0, 0, 0}, true)
//
//	out := make([]int32, 16)
//	_ = eng.ReadAll(buf, devmem.HostSlice(out), true)
//
// # Units
//
// Offsets, lengths and region extents are [Elements]. An element spans all
// channels of one position, so its size in [Bytes] is the channel count
// times the size of the native type. The two unit types are distinct so a
// byte count cannot be passed where an element count is expected.
//
// # Backends
//
// Device work is delegated to a [Backend]. Two implementations ship with
// the module:
//   - backend/software: an exact in-memory device with in-order queues
//   - backend/wgpu: a gogpu/wgpu HAL device (Vulkan, Metal, DX12, GLES or
//     the pure Go software rasterizer)
//
// # Change Notification
//
// Observers registered on a surface with [Surface.Subscribe] are told
// after every mutating transfer that targets the surface. The mirror
// package uses this to keep host snapshots of device surfaces fresh.
package devmem

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"
)
