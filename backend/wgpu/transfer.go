// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/devmem"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// buffer is the peer handle of a devmem buffer.
type buffer struct {
	label    string
	raw      hal.Buffer
	size     devmem.Bytes
	released atomic.Bool
}

// texture is the peer handle of a devmem image.
type texture struct {
	label       string
	raw         hal.Texture
	format      gputypes.TextureFormat
	shape       [devmem.MaxRank]int64
	elementSize devmem.Bytes
	released    atomic.Bool
}

func (t *texture) extent(r devmem.Region) devmem.ByteExtent {
	return devmem.ByteExtent{Row: devmem.Bytes(r[0]) * t.elementSize, Rows: r[1], Slices: r[2]}
}

func (t *texture) contains(o devmem.Origin, r devmem.Region) bool {
	for axis := 0; axis < devmem.MaxRank; axis++ {
		if o[axis] < 0 || r[axis] < 0 || r[axis] > t.shape[axis] || o[axis] > t.shape[axis]-r[axis] {
			return false
		}
	}
	return true
}

func (t *texture) copyBase(o devmem.Origin) hal.ImageCopyTexture {
	return hal.ImageCopyTexture{
		Texture: t.raw,
		Origin:  hal.Origin3D{X: uint32(o[0]), Y: uint32(o[1]), Z: uint32(o[2])},
		Aspect:  gputypes.TextureAspectAll,
	}
}

func extent3D(r devmem.Region) hal.Extent3D {
	return hal.Extent3D{Width: uint32(r[0]), Height: uint32(r[1]), DepthOrArrayLayers: uint32(r[2])}
}

// CreateBuffer allocates a device buffer.
func (b *Backend) CreateBuffer(desc devmem.BufferDescriptor) (devmem.PeerHandle, error) {
	if desc.Size < 0 {
		return nil, fmt.Errorf("wgpu: create buffer: negative size %d", int64(desc.Size))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	raw, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label(desc.Label),
		Size:  uint64(desc.Size),
		Usage: bufferUsage(desc.Policy),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	b.live++
	b.log.Load().Debug("wgpu: buffer created", "label", desc.Label, "bytes", int64(desc.Size))
	return &buffer{label: desc.Label, raw: raw, size: desc.Size}, nil
}

// CreateImage allocates a texture whose format follows the native type and
// channel count.
func (b *Backend) CreateImage(desc devmem.ImageDescriptor) (devmem.PeerHandle, error) {
	format, err := TextureFormat(desc.NativeType, desc.Channels)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create image %q: %w", desc.Label, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	raw, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: b.label(desc.Label),
		Size: hal.Extent3D{
			Width:              uint32(desc.Shape[0]),
			Height:             uint32(desc.Shape[1]),
			DepthOrArrayLayers: uint32(desc.Shape[2]),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     textureDimension(desc.Rank),
		Format:        format,
		Usage:         textureUsage(desc.Policy),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create image %q: %w", desc.Label, err)
	}
	b.live++
	b.log.Load().Debug("wgpu: texture created", "label", desc.Label, "format", format.String(), "shape", desc.Shape)
	return &texture{
		label:       desc.Label,
		raw:         raw,
		format:      format,
		shape:       desc.Shape,
		elementSize: desc.ElementSize(),
	}, nil
}

// Release destroys a buffer or texture.
func (b *Backend) Release(peer devmem.PeerHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch p := peer.(type) {
	case *buffer:
		if p.released.Swap(true) {
			return ErrReleased
		}
		b.device.DestroyBuffer(p.raw)
	case *texture:
		if p.released.Swap(true) {
			return ErrReleased
		}
		b.device.DestroyTexture(p.raw)
	default:
		return fmt.Errorf("%w: %T", ErrForeignHandle, peer)
	}
	b.live--
	return nil
}

func resolveBuffer(op string, peer devmem.PeerHandle) (*buffer, error) {
	buf, ok := peer.(*buffer)
	if !ok {
		return nil, fmt.Errorf("wgpu: %s: %w: %T is not a buffer", op, ErrForeignHandle, peer)
	}
	if buf.released.Load() {
		return nil, fmt.Errorf("wgpu: %s: %w", op, ErrReleased)
	}
	return buf, nil
}

func resolveTexture(op string, peer devmem.PeerHandle) (*texture, error) {
	t, ok := peer.(*texture)
	if !ok {
		return nil, fmt.Errorf("wgpu: %s: %w: %T is not an image", op, ErrForeignHandle, peer)
	}
	if t.released.Load() {
		return nil, fmt.Errorf("wgpu: %s: %w", op, ErrReleased)
	}
	return t, nil
}

func checkSpan(op string, n devmem.Bytes, off, size devmem.Bytes) error {
	if off < 0 || size < 0 || size > n || off > n-size {
		return fmt.Errorf("wgpu: %s: %w: %d bytes at %d of %d", op, ErrOutOfBounds, int64(size), int64(off), int64(n))
	}
	return nil
}

func checkRect(op string, n devmem.Bytes, r devmem.ByteRect, e devmem.ByteExtent) error {
	if !r.Within(e, n) {
		return fmt.Errorf("wgpu: %s: %w: rect %s extent %d bytes of %d", op, ErrOutOfBounds, r, int64(e.Size()), int64(n))
	}
	return nil
}

func checkTexture(op string, t *texture, o devmem.Origin, r devmem.Region) error {
	if !t.contains(o, r) {
		return fmt.Errorf("wgpu: %s: %w: region %s at %s", op, ErrOutOfBounds, r, o)
	}
	return nil
}

// rowCopies lists one buffer copy per row of extent.
func rowCopies(srcRect, dstRect devmem.ByteRect, extent devmem.ByteExtent) []hal.BufferCopy {
	regions := make([]hal.BufferCopy, 0, extent.Rows*extent.Slices)
	for z := int64(0); z < extent.Slices; z++ {
		for y := int64(0); y < extent.Rows; y++ {
			regions = append(regions, hal.BufferCopy{
				SrcOffset: uint64(srcRect.RowOffset(y, z)),
				DstOffset: uint64(dstRect.RowOffset(y, z)),
				Size:      uint64(extent.Row),
			})
		}
	}
	return regions
}

// pitched returns the staging layout of extent with rows padded to
// CopyPitchAlignment, and the staging size.
func pitched(extent devmem.ByteExtent) (devmem.ByteRect, hal.ImageDataLayout, uint64) {
	pitch := alignPitch(uint64(extent.Row))
	rect := devmem.ByteRect{
		RowPitch:   devmem.Bytes(pitch),
		SlicePitch: devmem.Bytes(pitch) * devmem.Bytes(extent.Rows),
	}
	layout := hal.ImageDataLayout{BytesPerRow: uint32(pitch), RowsPerImage: uint32(extent.Rows)}
	return rect, layout, pitch * uint64(extent.Rows) * uint64(extent.Slices)
}

// directLayout reports whether a buffer rect can be used as a texture copy
// layout as is.
func directLayout(r devmem.ByteRect, extent devmem.ByteExtent, elementSize devmem.Bytes) (hal.ImageDataLayout, bool) {
	if r.RowPitch <= 0 || r.RowPitch%CopyPitchAlignment != 0 || r.Offset%elementSize != 0 {
		return hal.ImageDataLayout{}, false
	}
	rows := extent.Rows
	if extent.Slices > 1 {
		if r.SlicePitch%r.RowPitch != 0 {
			return hal.ImageDataLayout{}, false
		}
		rows = int64(r.SlicePitch / r.RowPitch)
	}
	return hal.ImageDataLayout{
		Offset:       uint64(r.Offset),
		BytesPerRow:  uint32(r.RowPitch),
		RowsPerImage: uint32(rows),
	}, true
}

func tight(extent devmem.ByteExtent) devmem.ByteRect {
	return devmem.ByteRect{RowPitch: extent.Row, SlicePitch: extent.Row * devmem.Bytes(extent.Rows)}
}

func isZero(p []byte) bool {
	for _, v := range p {
		if v != 0 {
			return false
		}
	}
	return true
}

// EnqueueFill writes pattern repeatedly into a buffer range. Zero patterns
// clear the range on the device; other patterns are expanded on the host
// and written through the queue.
func (b *Backend) EnqueueFill(q devmem.Queue, dst devmem.PeerHandle, blocking bool, offset, size devmem.Bytes, pattern []byte) error {
	const op = "fill"
	d, err := resolveBuffer(op, dst)
	if err != nil {
		return err
	}
	if err := checkSpan(op, d.size, offset, size); err != nil {
		return err
	}
	if len(pattern) == 0 || size%devmem.Bytes(len(pattern)) != 0 {
		return fmt.Errorf("wgpu: %s: %d-byte pattern does not divide %d bytes", op, len(pattern), int64(size))
	}
	if size == 0 {
		return nil
	}
	if isZero(pattern) {
		return b.submit(q, blocking, op, &submission{}, func(enc hal.CommandEncoder) {
			enc.ClearBuffer(d.raw, uint64(offset), uint64(size))
		})
	}
	data := make([]byte, size)
	for i := 0; i < len(data); i += len(pattern) {
		copy(data[i:], pattern)
	}
	return b.immediate(q, blocking, op, func(hq hal.Queue) error {
		return hq.WriteBuffer(d.raw, uint64(offset), data)
	})
}

// EnqueueCopy copies bytes between buffers.
func (b *Backend) EnqueueCopy(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcOffset, dstOffset, size devmem.Bytes) error {
	const op = "copy"
	s, err := resolveBuffer(op, src)
	if err != nil {
		return err
	}
	d, err := resolveBuffer(op, dst)
	if err != nil {
		return err
	}
	if err := checkSpan(op, s.size, srcOffset, size); err != nil {
		return err
	}
	if err := checkSpan(op, d.size, dstOffset, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	return b.submit(q, blocking, op, &submission{}, func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(s.raw, d.raw, []hal.BufferCopy{{
			SrcOffset: uint64(srcOffset),
			DstOffset: uint64(dstOffset),
			Size:      uint64(size),
		}})
	})
}

// EnqueueCopyRegion copies a box between buffers, one row per copy.
func (b *Backend) EnqueueCopyRegion(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcRect, dstRect devmem.ByteRect, extent devmem.ByteExtent) error {
	const op = "copy region"
	s, err := resolveBuffer(op, src)
	if err != nil {
		return err
	}
	d, err := resolveBuffer(op, dst)
	if err != nil {
		return err
	}
	if err := checkRect(op, s.size, srcRect, extent); err != nil {
		return err
	}
	if err := checkRect(op, d.size, dstRect, extent); err != nil {
		return err
	}
	if extent.Size() == 0 {
		return nil
	}
	return b.submit(q, blocking, op, &submission{}, func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(s.raw, d.raw, rowCopies(srcRect, dstRect, extent))
	})
}

// EnqueueCopyBufferToImage copies a box from a buffer into a texture.
// Unaligned source rows are first gathered into a pitched staging buffer.
func (b *Backend) EnqueueCopyBufferToImage(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcRect devmem.ByteRect, dstOrigin devmem.Origin, region devmem.Region) error {
	const op = "copy buffer to image"
	s, err := resolveBuffer(op, src)
	if err != nil {
		return err
	}
	d, err := resolveTexture(op, dst)
	if err != nil {
		return err
	}
	if err := checkTexture(op, d, dstOrigin, region); err != nil {
		return err
	}
	extent := d.extent(region)
	if err := checkRect(op, s.size, srcRect, extent); err != nil {
		return err
	}
	if extent.Size() == 0 {
		return nil
	}

	if layout, ok := directLayout(srcRect, extent, d.elementSize); ok {
		return b.submit(q, blocking, op, &submission{}, func(enc hal.CommandEncoder) {
			enc.CopyBufferToTexture(s.raw, d.raw, []hal.BufferTextureCopy{{
				BufferLayout: layout,
				TextureBase:  d.copyBase(dstOrigin),
				Size:         extent3D(region),
			}})
		})
	}

	sub := &submission{}
	stagingRect, layout, size := pitched(extent)
	staging, err := b.stage(sub, op, size, gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	return b.submit(q, blocking, op, sub, func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(s.raw, staging, rowCopies(srcRect, stagingRect, extent))
		enc.CopyBufferToTexture(staging, d.raw, []hal.BufferTextureCopy{{
			BufferLayout: layout,
			TextureBase:  d.copyBase(dstOrigin),
			Size:         extent3D(region),
		}})
	})
}

// EnqueueCopyImageToBuffer copies a box from a texture into a buffer.
// Unaligned destination rows are scattered from a pitched staging buffer.
func (b *Backend) EnqueueCopyImageToBuffer(q devmem.Queue, src, dst devmem.PeerHandle, blocking bool, srcOrigin devmem.Origin, region devmem.Region, dstRect devmem.ByteRect) error {
	const op = "copy image to buffer"
	s, err := resolveTexture(op, src)
	if err != nil {
		return err
	}
	d, err := resolveBuffer(op, dst)
	if err != nil {
		return err
	}
	if err := checkTexture(op, s, srcOrigin, region); err != nil {
		return err
	}
	extent := s.extent(region)
	if err := checkRect(op, d.size, dstRect, extent); err != nil {
		return err
	}
	if extent.Size() == 0 {
		return nil
	}

	if layout, ok := directLayout(dstRect, extent, s.elementSize); ok {
		return b.submit(q, blocking, op, &submission{}, func(enc hal.CommandEncoder) {
			enc.CopyTextureToBuffer(s.raw, d.raw, []hal.BufferTextureCopy{{
				BufferLayout: layout,
				TextureBase:  s.copyBase(srcOrigin),
				Size:         extent3D(region),
			}})
		})
	}

	sub := &submission{}
	stagingRect, layout, size := pitched(extent)
	staging, err := b.stage(sub, op, size, gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	return b.submit(q, blocking, op, sub, func(enc hal.CommandEncoder) {
		enc.CopyTextureToBuffer(s.raw, staging, []hal.BufferTextureCopy{{
			BufferLayout: layout,
			TextureBase:  s.copyBase(srcOrigin),
			Size:         extent3D(region),
		}})
		enc.CopyBufferToBuffer(staging, d.raw, rowCopies(stagingRect, dstRect, extent))
	})
}

// EnqueueRead copies a buffer range into the same range of dst.
func (b *Backend) EnqueueRead(q devmem.Queue, src devmem.PeerHandle, blocking bool, offset, size devmem.Bytes, dst []byte) error {
	const op = "read"
	s, err := resolveBuffer(op, src)
	if err != nil {
		return err
	}
	if err := checkSpan(op, s.size, offset, size); err != nil {
		return err
	}
	if err := checkSpan(op+" host", devmem.Bytes(len(dst)), offset, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	sub := &submission{}
	staging, err := b.readbackInto(sub, op, uint64(size), func(mapped []byte) {
		copy(dst[offset:offset+size], mapped)
	})
	if err != nil {
		return err
	}
	return b.submit(q, blocking, op, sub, func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(s.raw, staging, []hal.BufferCopy{{
			SrcOffset: uint64(offset),
			Size:      uint64(size),
		}})
	})
}

// EnqueueWrite copies a range of src into the same range of a buffer.
func (b *Backend) EnqueueWrite(q devmem.Queue, dst devmem.PeerHandle, blocking bool, offset, size devmem.Bytes, src []byte) error {
	const op = "write"
	d, err := resolveBuffer(op, dst)
	if err != nil {
		return err
	}
	if err := checkSpan(op, d.size, offset, size); err != nil {
		return err
	}
	if err := checkSpan(op+" host", devmem.Bytes(len(src)), offset, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	return b.immediate(q, blocking, op, func(hq hal.Queue) error {
		return hq.WriteBuffer(d.raw, uint64(offset), src[offset:offset+size])
	})
}

// EnqueueReadRegion copies a box of a buffer into host memory.
func (b *Backend) EnqueueReadRegion(q devmem.Queue, src devmem.PeerHandle, blocking bool, deviceRect, hostRect devmem.ByteRect, extent devmem.ByteExtent, dst []byte) error {
	const op = "read region"
	s, err := resolveBuffer(op, src)
	if err != nil {
		return err
	}
	if err := checkRect(op, s.size, deviceRect, extent); err != nil {
		return err
	}
	if err := checkRect(op+" host", devmem.Bytes(len(dst)), hostRect, extent); err != nil {
		return err
	}
	if extent.Size() == 0 {
		return nil
	}
	packed := tight(extent)
	sub := &submission{}
	staging, err := b.readbackInto(sub, op, uint64(extent.Size()), func(mapped []byte) {
		devmem.CopyRect(dst, hostRect, mapped, packed, extent)
	})
	if err != nil {
		return err
	}
	return b.submit(q, blocking, op, sub, func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(s.raw, staging, rowCopies(deviceRect, packed, extent))
	})
}

// EnqueueWriteRegion copies a box of host memory into a buffer, one queue
// write per row.
func (b *Backend) EnqueueWriteRegion(q devmem.Queue, dst devmem.PeerHandle, blocking bool, deviceRect, hostRect devmem.ByteRect, extent devmem.ByteExtent, src []byte) error {
	const op = "write region"
	d, err := resolveBuffer(op, dst)
	if err != nil {
		return err
	}
	if err := checkRect(op, d.size, deviceRect, extent); err != nil {
		return err
	}
	if err := checkRect(op+" host", devmem.Bytes(len(src)), hostRect, extent); err != nil {
		return err
	}
	if extent.Size() == 0 {
		return nil
	}
	return b.immediate(q, blocking, op, func(hq hal.Queue) error {
		for z := int64(0); z < extent.Slices; z++ {
			for y := int64(0); y < extent.Rows; y++ {
				h := hostRect.RowOffset(y, z)
				if err := hq.WriteBuffer(d.raw, uint64(deviceRect.RowOffset(y, z)), src[h:h+extent.Row]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// EnqueueReadImage copies a box of a texture into host memory through a
// pitched readback buffer.
func (b *Backend) EnqueueReadImage(q devmem.Queue, src devmem.PeerHandle, blocking bool, origin devmem.Origin, region devmem.Region, hostRect devmem.ByteRect, dst []byte) error {
	const op = "read image"
	s, err := resolveTexture(op, src)
	if err != nil {
		return err
	}
	if err := checkTexture(op, s, origin, region); err != nil {
		return err
	}
	extent := s.extent(region)
	if err := checkRect(op+" host", devmem.Bytes(len(dst)), hostRect, extent); err != nil {
		return err
	}
	if extent.Size() == 0 {
		return nil
	}
	stagingRect, layout, size := pitched(extent)
	sub := &submission{}
	staging, err := b.readbackInto(sub, op, size, func(mapped []byte) {
		devmem.CopyRect(dst, hostRect, mapped, stagingRect, extent)
	})
	if err != nil {
		return err
	}
	return b.submit(q, blocking, op, sub, func(enc hal.CommandEncoder) {
		enc.CopyTextureToBuffer(s.raw, staging, []hal.BufferTextureCopy{{
			BufferLayout: layout,
			TextureBase:  s.copyBase(origin),
			Size:         extent3D(region),
		}})
	})
}

// EnqueueWriteImage copies a box of host memory into a texture.
func (b *Backend) EnqueueWriteImage(q devmem.Queue, dst devmem.PeerHandle, blocking bool, origin devmem.Origin, region devmem.Region, hostRect devmem.ByteRect, src []byte) error {
	const op = "write image"
	d, err := resolveTexture(op, dst)
	if err != nil {
		return err
	}
	if err := checkTexture(op, d, origin, region); err != nil {
		return err
	}
	extent := d.extent(region)
	if err := checkRect(op+" host", devmem.Bytes(len(src)), hostRect, extent); err != nil {
		return err
	}
	if extent.Size() == 0 {
		return nil
	}

	data, layout := src, hal.ImageDataLayout{
		Offset:       uint64(hostRect.Offset),
		BytesPerRow:  uint32(hostRect.RowPitch),
		RowsPerImage: uint32(extent.Rows),
	}
	if extent.Slices > 1 {
		if hostRect.RowPitch <= 0 || hostRect.SlicePitch%hostRect.RowPitch != 0 {
			packed := tight(extent)
			data = make([]byte, extent.Size())
			devmem.CopyRect(data, packed, src, hostRect, extent)
			layout = hal.ImageDataLayout{BytesPerRow: uint32(packed.RowPitch), RowsPerImage: uint32(extent.Rows)}
		} else {
			layout.RowsPerImage = uint32(hostRect.SlicePitch / hostRect.RowPitch)
		}
	}
	base := d.copyBase(origin)
	size := extent3D(region)
	return b.immediate(q, blocking, op, func(hq hal.Queue) error {
		return hq.WriteTexture(&base, data, &layout, &size)
	})
}
