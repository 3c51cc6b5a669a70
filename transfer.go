// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import "fmt"

// Fill writes pattern repeatedly into elements [offset, offset+length) of
// a buffer. The byte size of the range must be a multiple of the pattern
// length; a one-byte pattern therefore fits any range.
func (e *Engine) Fill(s *Surface, pattern []byte, offset, length Elements, blocking bool) error {
	const op = "fill"
	defer e.trace(op)()

	if err := s.live(op); err != nil {
		return err
	}
	if err := s.requireKind(op, KindBuffer); err != nil {
		return err
	}
	if len(pattern) == 0 {
		return fmt.Errorf("%s: surface %s: %w: empty pattern", op, s.label(), ErrInvalidPattern)
	}
	if err := checkRange(op, s, offset, length); err != nil {
		return err
	}
	off, size := s.BytesOf(offset), s.BytesOf(length)
	if size%Bytes(len(pattern)) != 0 {
		return fmt.Errorf("%s: surface %s: %w: %d-byte pattern does not divide %d bytes",
			op, s.label(), ErrInvalidPattern, len(pattern), int64(size))
	}

	if err := e.backend.EnqueueFill(e.queue, s.peer, blocking, off, size, pattern); err != nil {
		return wrapBackend(e.backend, "EnqueueFill", err)
	}
	e.log.Debug("devmem: fill",
		"surface", s.label(), "offset", int64(offset), "length", int64(length),
		"bytes", int64(size), "pattern", len(pattern), "blocking", blocking)
	return e.notify(s)
}

// FillAll fills the whole buffer with pattern.
func (e *Engine) FillAll(s *Surface, pattern []byte, blocking bool) error {
	if err := s.live("fill"); err != nil {
		return err
	}
	return e.Fill(s, pattern, 0, s.Length(), blocking)
}

// CopyLinear copies length elements from src starting at srcOffset into
// dst starting at dstOffset. Both surfaces must be buffers with the same
// element size.
func (e *Engine) CopyLinear(src, dst *Surface, srcOffset, dstOffset, length Elements, blocking bool) error {
	const op = "copy"
	defer e.trace(op)()

	if err := src.live(op); err != nil {
		return err
	}
	if err := dst.live(op); err != nil {
		return err
	}
	if err := src.requireKind(op, KindBuffer); err != nil {
		return err
	}
	if err := dst.requireKind(op, KindBuffer); err != nil {
		return err
	}
	if err := checkSameElement(op, src, dst); err != nil {
		return err
	}
	if err := checkRange(op, src, srcOffset, length); err != nil {
		return err
	}
	if err := checkRange(op, dst, dstOffset, length); err != nil {
		return err
	}

	srcOff, dstOff, size := src.BytesOf(srcOffset), dst.BytesOf(dstOffset), src.BytesOf(length)
	if err := e.backend.EnqueueCopy(e.queue, src.peer, dst.peer, blocking, srcOff, dstOff, size); err != nil {
		return wrapBackend(e.backend, "EnqueueCopy", err)
	}
	e.log.Debug("devmem: copy",
		"src", src.label(), "dst", dst.label(), "src_offset", int64(srcOffset),
		"dst_offset", int64(dstOffset), "length", int64(length), "bytes", int64(size), "blocking", blocking)
	return e.notify(dst)
}

// Copy copies the whole of src into dst.
//
// Supported pairs are buffer to buffer, buffer to image and image to
// buffer (device to device, same element size and length), device to host
// surface (see CopyToHostSurface) and host surface to device (a whole
// Write). Buffers exchanging data with an image are addressed as if they
// had the image's shape.
func (e *Engine) Copy(src, dst *Surface, blocking bool) error {
	const op = "copy"
	if err := src.live(op); err != nil {
		return err
	}
	if err := dst.live(op); err != nil {
		return err
	}

	switch {
	case dst.kind == KindHost:
		return e.CopyToHostSurface(src, dst, blocking)
	case src.kind == KindHost:
		if src.SizeInBytes() != dst.SizeInBytes() {
			return fmt.Errorf("%s: %w: %s holds %d bytes, %s holds %d", op, ErrSizeMismatch,
				src.label(), int64(src.SizeInBytes()), dst.label(), int64(dst.SizeInBytes()))
		}
		return e.WriteAll(dst, src, blocking)
	case src.kind == KindBuffer && dst.kind == KindBuffer:
		if err := checkSameElement(op, src, dst); err != nil {
			return err
		}
		if src.Length() != dst.Length() {
			return fmt.Errorf("%s: %w: %s has %d elements, %s has %d", op, ErrSizeMismatch,
				src.label(), int64(src.Length()), dst.label(), int64(dst.Length()))
		}
		return e.CopyLinear(src, dst, 0, 0, src.Length(), blocking)
	case src.kind == KindImage && dst.kind == KindImage:
		return fmt.Errorf("%s: %s to %s: %w", op, src.label(), dst.label(), ErrUnsupportedKind)
	}

	// Buffer and image: the image supplies the shape.
	img := src
	if dst.kind == KindImage {
		img = dst
	}
	if src.Length() != dst.Length() {
		return fmt.Errorf("%s: %w: %s has %d elements, %s has %d", op, ErrSizeMismatch,
			src.label(), int64(src.Length()), dst.label(), int64(dst.Length()))
	}
	if err := checkSameElement(op, src, dst); err != nil {
		return err
	}
	defer e.trace(op)()
	region := Region(img.shape)
	bufRect := img.rect(Origin{})
	if src.kind == KindBuffer {
		if err := e.backend.EnqueueCopyBufferToImage(e.queue, src.peer, dst.peer, blocking, bufRect, Origin{}, region); err != nil {
			return wrapBackend(e.backend, "EnqueueCopyBufferToImage", err)
		}
	} else {
		if err := e.backend.EnqueueCopyImageToBuffer(e.queue, src.peer, dst.peer, blocking, Origin{}, region, bufRect); err != nil {
			return wrapBackend(e.backend, "EnqueueCopyImageToBuffer", err)
		}
	}
	e.log.Debug("devmem: copy",
		"src", src.label(), "dst", dst.label(), "region", region.String(), "blocking", blocking)
	return e.notify(dst)
}

// Read copies elements [offset, offset+length) of a buffer into the same
// byte range of host memory. The host memory must hold at least
// offset+length elements. Read does not notify observers.
func (e *Engine) Read(s *Surface, dst HostMemory, offset, length Elements, blocking bool) error {
	const op = "read"
	defer e.trace(op)()

	if err := s.live(op); err != nil {
		return err
	}
	if err := s.requireKind(op, KindBuffer); err != nil {
		return err
	}
	if err := checkHostReadable(op, s); err != nil {
		return err
	}
	host, err := hostTarget(op, dst)
	if err != nil {
		return err
	}
	if err := checkRange(op, s, offset, length); err != nil {
		return err
	}
	if err := checkCapacity(op, host, s.BytesOf(offset+length)); err != nil {
		return err
	}

	off, size := s.BytesOf(offset), s.BytesOf(length)
	if err := e.backend.EnqueueRead(e.queue, s.peer, blocking, off, size, host); err != nil {
		return wrapBackend(e.backend, "EnqueueRead", err)
	}
	e.log.Debug("devmem: read",
		"surface", s.label(), "offset", int64(offset), "length", int64(length),
		"bytes", int64(size), "blocking", blocking)
	return nil
}

// Write copies the host bytes of elements [offset, offset+length) into
// the same range of a buffer. The host memory must hold at least
// offset+length elements.
func (e *Engine) Write(s *Surface, src HostMemory, offset, length Elements, blocking bool) error {
	const op = "write"
	defer e.trace(op)()

	if err := s.live(op); err != nil {
		return err
	}
	if err := s.requireKind(op, KindBuffer); err != nil {
		return err
	}
	if err := checkHostWritable(op, s); err != nil {
		return err
	}
	host, err := hostTarget(op, src)
	if err != nil {
		return err
	}
	if err := checkRange(op, s, offset, length); err != nil {
		return err
	}
	if err := checkCapacity(op, host, s.BytesOf(offset+length)); err != nil {
		return err
	}

	off, size := s.BytesOf(offset), s.BytesOf(length)
	if err := e.backend.EnqueueWrite(e.queue, s.peer, blocking, off, size, host); err != nil {
		return wrapBackend(e.backend, "EnqueueWrite", err)
	}
	e.log.Debug("devmem: write",
		"surface", s.label(), "offset", int64(offset), "length", int64(length),
		"bytes", int64(size), "blocking", blocking)
	return e.notify(s)
}

// ReadAll copies the whole of a buffer or image into host memory, packed
// tightly in x, y, z order.
func (e *Engine) ReadAll(s *Surface, dst HostMemory, blocking bool) error {
	const op = "read"
	if err := s.live(op); err != nil {
		return err
	}
	if s.kind == KindBuffer {
		return e.Read(s, dst, 0, s.Length(), blocking)
	}
	if err := s.requireKind(op, KindImage); err != nil {
		return err
	}
	defer e.trace(op)()
	if err := checkHostReadable(op, s); err != nil {
		return err
	}
	host, err := hostTarget(op, dst)
	if err != nil {
		return err
	}
	if err := checkCapacity(op, host, s.SizeInBytes()); err != nil {
		return err
	}
	region := Region(s.shape)
	if err := e.backend.EnqueueReadImage(e.queue, s.peer, blocking, Origin{}, region, s.rect(Origin{}), host); err != nil {
		return wrapBackend(e.backend, "EnqueueReadImage", err)
	}
	e.log.Debug("devmem: read image", "surface", s.label(), "region", region.String(), "blocking", blocking)
	return nil
}

// WriteAll copies tightly packed host memory over the whole of a buffer
// or image.
func (e *Engine) WriteAll(s *Surface, src HostMemory, blocking bool) error {
	const op = "write"
	if err := s.live(op); err != nil {
		return err
	}
	if s.kind == KindBuffer {
		return e.Write(s, src, 0, s.Length(), blocking)
	}
	if err := s.requireKind(op, KindImage); err != nil {
		return err
	}
	defer e.trace(op)()
	if err := checkHostWritable(op, s); err != nil {
		return err
	}
	host, err := hostTarget(op, src)
	if err != nil {
		return err
	}
	if err := checkCapacity(op, host, s.SizeInBytes()); err != nil {
		return err
	}
	region := Region(s.shape)
	if err := e.backend.EnqueueWriteImage(e.queue, s.peer, blocking, Origin{}, region, s.rect(Origin{}), host); err != nil {
		return wrapBackend(e.backend, "EnqueueWriteImage", err)
	}
	e.log.Debug("devmem: write image", "surface", s.label(), "region", region.String(), "blocking", blocking)
	return e.notify(s)
}
