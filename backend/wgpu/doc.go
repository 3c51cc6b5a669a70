// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides a devmem backend on top of the gogpu/wgpu HAL.
//
// Buffers map to HAL buffers and images to 1D, 2D or 3D textures. Transfers
// are recorded into command encoders and submitted to the device queue;
// host reads go through mappable staging buffers that are copied into host
// memory once their submission completes.
//
// # Opening a device
//
// Open picks the first native HAL backend that has been linked in and
// opens its first adapter:
//
//	import (
//	    _ "github.com/gogpu/wgpu/hal/vulkan"
//	    "github.com/gogpu/devmem/backend/wgpu"
//	)
//
//	b, err := wgpu.Open(wgpu.DefaultConfig())
//
// OpenSoftware uses the CPU implementation of the HAL, and NewFromProvider
// shares the device of an application that implements
// gpucontext.DeviceProvider.
//
// # Queues
//
// Every devmem queue of this backend is a logical queue over the single
// device queue. Submissions from all logical queues execute in submission
// order; Finish on a logical queue waits for its own submissions and
// completes its pending host reads.
//
// # Images
//
// Image formats follow the native type and channel count, see
// TextureFormat. Texture and buffer copies use rows padded to
// CopyPitchAlignment bytes; region copies whose buffer pitch is already
// aligned go directly between buffer and texture.
package wgpu
