// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/devmem"
)

// imageLayout is the shape of an image allocation.
type imageLayout struct {
	shape       [devmem.MaxRank]int64
	elementSize devmem.Bytes
}

func (l *imageLayout) rect(o devmem.Origin) devmem.ByteRect {
	row := devmem.Bytes(l.shape[0]) * l.elementSize
	slice := row * devmem.Bytes(l.shape[1])
	return devmem.ByteRect{
		Offset:     devmem.Bytes(o[0])*l.elementSize + devmem.Bytes(o[1])*row + devmem.Bytes(o[2])*slice,
		RowPitch:   row,
		SlicePitch: slice,
	}
}

func (l *imageLayout) extent(r devmem.Region) devmem.ByteExtent {
	return devmem.ByteExtent{Row: devmem.Bytes(r[0]) * l.elementSize, Rows: r[1], Slices: r[2]}
}

func (l *imageLayout) contains(o devmem.Origin, r devmem.Region) bool {
	for axis := 0; axis < devmem.MaxRank; axis++ {
		if o[axis] < 0 || r[axis] < 0 || r[axis] > l.shape[axis] || o[axis] > l.shape[axis]-r[axis] {
			return false
		}
	}
	return true
}

// allocation is the peer handle of a buffer or image.
type allocation struct {
	label    string
	data     []byte
	image    *imageLayout // nil for buffers
	released atomic.Bool
}

func (b *Backend) resolve(op string, peer devmem.PeerHandle, wantImage bool) (*allocation, error) {
	a, ok := peer.(*allocation)
	if !ok {
		return nil, fmt.Errorf("software: %s: %w: %T", op, ErrForeignHandle, peer)
	}
	if a.released.Load() {
		return nil, fmt.Errorf("software: %s: %w", op, ErrReleased)
	}
	if (a.image != nil) != wantImage {
		want := "buffer"
		if wantImage {
			want = "image"
		}
		return nil, fmt.Errorf("software: %s: %w: allocation %q is not a %s", op, ErrForeignHandle, a.label, want)
	}
	return a, nil
}

func checkSpan(op string, n int, off, size devmem.Bytes) error {
	if off < 0 || size < 0 || size > devmem.Bytes(n) || off > devmem.Bytes(n)-size {
		return fmt.Errorf("software: %s: %w: %d bytes at %d of %d", op, ErrOutOfBounds, int64(size), int64(off), n)
	}
	return nil
}

func checkRect(op string, n int, r devmem.ByteRect, e devmem.ByteExtent) error {
	if !r.Within(e, devmem.Bytes(n)) {
		return fmt.Errorf("software: %s: %w: rect %s extent %d bytes of %d", op, ErrOutOfBounds, r, int64(e.Size()), n)
	}
	return nil
}

func checkImage(op string, a *allocation, o devmem.Origin, r devmem.Region) error {
	if !a.image.contains(o, r) {
		return fmt.Errorf("software: %s: %w: region %s at %s", op, ErrOutOfBounds, r, o)
	}
	return nil
}

// EnqueueFill writes pattern repeatedly into a buffer range.
func (b *Backend) EnqueueFill(q devmem.Queue, dst devmem.PeerHandle, blocking bool, offset, size devmem.Bytes, pattern []byte) error {
	const op = "fill"
	a, err := b.resolve(op, dst, false)
	if err != nil {
		return err
	}
	if err := checkSpan(op, len(a.data), offset, size); err != nil {
		return err
	}
	if len(pattern) == 0 || size%devmem.Bytes(len(pattern)) != 0 {
		return fmt.Errorf("software: %s: %d-byte pattern does not divide %d bytes", op, len(pattern), int64(size))
	}
	p := append([]byte(nil), pattern...)
	target := a.data[offset : offset+size]
	return b.submit(q, blocking, func() {
		for i := 0; i < len(target); i += len(p) {
			copy(target[i:], p)
		}
	})
}

// EnqueueCopy copies bytes between buffers.
func (b *Backend) EnqueueCopy(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcOffset, dstOffset, size devmem.Bytes) error {
	const op = "copy"
	s, err := b.resolve(op, src, false)
	if err != nil {
		return err
	}
	d, err := b.resolve(op, dst, false)
	if err != nil {
		return err
	}
	if err := checkSpan(op, len(s.data), srcOffset, size); err != nil {
		return err
	}
	if err := checkSpan(op, len(d.data), dstOffset, size); err != nil {
		return err
	}
	return b.submit(q, blocking, func() {
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	})
}

// EnqueueCopyRegion copies a box between buffers.
func (b *Backend) EnqueueCopyRegion(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcRect, dstRect devmem.ByteRect, extent devmem.ByteExtent) error {
	const op = "copy region"
	s, err := b.resolve(op, src, false)
	if err != nil {
		return err
	}
	d, err := b.resolve(op, dst, false)
	if err != nil {
		return err
	}
	if err := checkRect(op, len(s.data), srcRect, extent); err != nil {
		return err
	}
	if err := checkRect(op, len(d.data), dstRect, extent); err != nil {
		return err
	}
	return b.submit(q, blocking, func() {
		devmem.CopyRect(d.data, dstRect, s.data, srcRect, extent)
	})
}

// EnqueueCopyBufferToImage copies a box from a buffer into an image.
func (b *Backend) EnqueueCopyBufferToImage(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcRect devmem.ByteRect, dstOrigin devmem.Origin, region devmem.Region) error {
	const op = "copy buffer to image"
	s, err := b.resolve(op, src, false)
	if err != nil {
		return err
	}
	d, err := b.resolve(op, dst, true)
	if err != nil {
		return err
	}
	if err := checkImage(op, d, dstOrigin, region); err != nil {
		return err
	}
	extent := d.image.extent(region)
	if err := checkRect(op, len(s.data), srcRect, extent); err != nil {
		return err
	}
	dstRect := d.image.rect(dstOrigin)
	return b.submit(q, blocking, func() {
		devmem.CopyRect(d.data, dstRect, s.data, srcRect, extent)
	})
}

// EnqueueCopyImageToBuffer copies a box from an image into a buffer.
func (b *Backend) EnqueueCopyImageToBuffer(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcOrigin devmem.Origin, region devmem.Region, dstRect devmem.ByteRect) error {
	const op = "copy image to buffer"
	s, err := b.resolve(op, src, true)
	if err != nil {
		return err
	}
	d, err := b.resolve(op, dst, false)
	if err != nil {
		return err
	}
	if err := checkImage(op, s, srcOrigin, region); err != nil {
		return err
	}
	extent := s.image.extent(region)
	if err := checkRect(op, len(d.data), dstRect, extent); err != nil {
		return err
	}
	srcRect := s.image.rect(srcOrigin)
	return b.submit(q, blocking, func() {
		devmem.CopyRect(d.data, dstRect, s.data, srcRect, extent)
	})
}

// EnqueueRead copies a buffer range into the same range of dst.
func (b *Backend) EnqueueRead(q devmem.Queue, src devmem.PeerHandle, blocking bool, offset, size devmem.Bytes, dst []byte) error {
	const op = "read"
	s, err := b.resolve(op, src, false)
	if err != nil {
		return err
	}
	if err := checkSpan(op, len(s.data), offset, size); err != nil {
		return err
	}
	if err := checkSpan(op+" host", len(dst), offset, size); err != nil {
		return err
	}
	return b.submit(q, blocking, func() {
		copy(dst[offset:offset+size], s.data[offset:offset+size])
	})
}

// EnqueueWrite copies a range of src into the same range of a buffer.
func (b *Backend) EnqueueWrite(q devmem.Queue, dst devmem.PeerHandle, blocking bool, offset, size devmem.Bytes, src []byte) error {
	const op = "write"
	d, err := b.resolve(op, dst, false)
	if err != nil {
		return err
	}
	if err := checkSpan(op, len(d.data), offset, size); err != nil {
		return err
	}
	if err := checkSpan(op+" host", len(src), offset, size); err != nil {
		return err
	}
	return b.submit(q, blocking, func() {
		copy(d.data[offset:offset+size], src[offset:offset+size])
	})
}

// EnqueueReadRegion copies a box of a buffer into host memory.
func (b *Backend) EnqueueReadRegion(q devmem.Queue, src devmem.PeerHandle, blocking bool, deviceRect, hostRect devmem.ByteRect, extent devmem.ByteExtent, dst []byte) error {
	const op = "read region"
	s, err := b.resolve(op, src, false)
	if err != nil {
		return err
	}
	if err := checkRect(op, len(s.data), deviceRect, extent); err != nil {
		return err
	}
	if err := checkRect(op+" host", len(dst), hostRect, extent); err != nil {
		return err
	}
	return b.submit(q, blocking, func() {
		devmem.CopyRect(dst, hostRect, s.data, deviceRect, extent)
	})
}

// EnqueueWriteRegion copies a box of host memory into a buffer.
func (b *Backend) EnqueueWriteRegion(q devmem.Queue, dst devmem.PeerHandle, blocking bool, deviceRect, hostRect devmem.ByteRect, extent devmem.ByteExtent, src []byte) error {
	const op = "write region"
	d, err := b.resolve(op, dst, false)
	if err != nil {
		return err
	}
	if err := checkRect(op, len(d.data), deviceRect, extent); err != nil {
		return err
	}
	if err := checkRect(op+" host", len(src), hostRect, extent); err != nil {
		return err
	}
	return b.submit(q, blocking, func() {
		devmem.CopyRect(d.data, deviceRect, src, hostRect, extent)
	})
}

// EnqueueReadImage copies a box of an image into host memory.
func (b *Backend) EnqueueReadImage(q devmem.Queue, src devmem.PeerHandle, blocking bool, origin devmem.Origin, region devmem.Region, hostRect devmem.ByteRect, dst []byte) error {
	const op = "read image"
	s, err := b.resolve(op, src, true)
	if err != nil {
		return err
	}
	if err := checkImage(op, s, origin, region); err != nil {
		return err
	}
	extent := s.image.extent(region)
	if err := checkRect(op+" host", len(dst), hostRect, extent); err != nil {
		return err
	}
	imgRect := s.image.rect(origin)
	return b.submit(q, blocking, func() {
		devmem.CopyRect(dst, hostRect, s.data, imgRect, extent)
	})
}

// EnqueueWriteImage copies a box of host memory into an image.
func (b *Backend) EnqueueWriteImage(q devmem.Queue, dst devmem.PeerHandle, blocking bool, origin devmem.Origin, region devmem.Region, hostRect devmem.ByteRect, src []byte) error {
	const op = "write image"
	d, err := b.resolve(op, dst, true)
	if err != nil {
		return err
	}
	if err := checkImage(op, d, origin, region); err != nil {
		return err
	}
	extent := d.image.extent(region)
	if err := checkRect(op+" host", len(src), hostRect, extent); err != nil {
		return err
	}
	imgRect := d.image.rect(origin)
	return b.submit(q, blocking, func() {
		devmem.CopyRect(d.data, imgRect, src, hostRect, extent)
	})
}

var _ devmem.Backend = (*Backend)(nil)
