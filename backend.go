// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

// Queue is an ordered stream of device commands.
// Commands on one queue complete in the order they were enqueued.
type Queue interface {
	// Name identifies the queue in logs.
	Name() string
}

// BufferDescriptor describes a device buffer to allocate.
type BufferDescriptor struct {
	Label  string
	Size   Bytes
	Policy AccessPolicy
}

// ImageDescriptor describes a device image to allocate.
type ImageDescriptor struct {
	Label      string
	NativeType NativeType
	Channels   int64
	Shape      [MaxRank]int64
	Rank       int
	Policy     AccessPolicy
}

// ElementSize returns the size of one image element.
func (d ImageDescriptor) ElementSize() Bytes {
	return Bytes(d.Channels) * d.NativeType.Size()
}

// Backend executes device work on behalf of the Engine.
//
// Every size and offset is in bytes; the Engine has already validated
// bounds, access and kinds. Image origins and regions are in elements.
// Host-side rects describe the layout of the host slice passed alongside.
//
// When blocking is false the backend may return before the operation has
// completed; the host slice must then stay untouched until Finish on the
// same queue returns. When blocking is true the operation has completed
// when the method returns.
type Backend interface {
	// Name identifies the backend.
	Name() string

	// DefaultQueue returns the queue used when none is given.
	DefaultQueue() Queue

	// NewQueue creates an additional queue.
	NewQueue(label string) (Queue, error)

	// CreateBuffer allocates a linear device buffer.
	CreateBuffer(desc BufferDescriptor) (PeerHandle, error)

	// CreateImage allocates a device image.
	CreateImage(desc ImageDescriptor) (PeerHandle, error)

	// Release frees a buffer or image.
	Release(peer PeerHandle) error

	// EnqueueFill writes pattern repeatedly into dst[offset:offset+size].
	// size is a multiple of len(pattern).
	EnqueueFill(q Queue, dst PeerHandle, blocking bool, offset, size Bytes, pattern []byte) error

	// EnqueueCopy copies size bytes between buffers.
	EnqueueCopy(q Queue, src, dst PeerHandle, blocking bool, srcOffset, dstOffset, size Bytes) error

	// EnqueueCopyRegion copies a box between buffers.
	EnqueueCopyRegion(q Queue, src, dst PeerHandle, blocking bool, srcRect, dstRect ByteRect, extent ByteExtent) error

	// EnqueueCopyBufferToImage copies a box from a buffer into an image.
	EnqueueCopyBufferToImage(q Queue, src, dst PeerHandle, blocking bool, srcRect ByteRect, dstOrigin Origin, region Region) error

	// EnqueueCopyImageToBuffer copies a box from an image into a buffer.
	EnqueueCopyImageToBuffer(q Queue, src, dst PeerHandle, blocking bool, srcOrigin Origin, region Region, dstRect ByteRect) error

	// EnqueueRead copies src[offset:offset+size] into dst[offset:offset+size].
	EnqueueRead(q Queue, src PeerHandle, blocking bool, offset, size Bytes, dst []byte) error

	// EnqueueWrite copies src[offset:offset+size] into dst[offset:offset+size].
	EnqueueWrite(q Queue, dst PeerHandle, blocking bool, offset, size Bytes, src []byte) error

	// EnqueueReadRegion copies a box of a buffer into host memory.
	EnqueueReadRegion(q Queue, src PeerHandle, blocking bool, deviceRect, hostRect ByteRect, extent ByteExtent, dst []byte) error

	// EnqueueWriteRegion copies a box of host memory into a buffer.
	EnqueueWriteRegion(q Queue, dst PeerHandle, blocking bool, deviceRect, hostRect ByteRect, extent ByteExtent, src []byte) error

	// EnqueueReadImage copies a box of an image into host memory.
	EnqueueReadImage(q Queue, src PeerHandle, blocking bool, origin Origin, region Region, hostRect ByteRect, dst []byte) error

	// EnqueueWriteImage copies a box of host memory into an image.
	EnqueueWriteImage(q Queue, dst PeerHandle, blocking bool, origin Origin, region Region, hostRect ByteRect, src []byte) error

	// Finish blocks until every command enqueued on q has completed.
	Finish(q Queue) error

	// Close releases the backend. Surfaces must be released first.
	Close() error
}
