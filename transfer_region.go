// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import "fmt"

// CopyRegion copies the box region from srcOrigin in src to dstOrigin in
// dst. Supported pairs are buffer to buffer, buffer to image and image to
// buffer; buffers are addressed with their own shape. The box must lie
// inside both surfaces and both must have the same element size.
func (e *Engine) CopyRegion(src, dst *Surface, srcOrigin, dstOrigin Origin, region Region, blocking bool) error {
	const op = "copy region"
	defer e.trace(op)()

	if err := src.live(op); err != nil {
		return err
	}
	if err := dst.live(op); err != nil {
		return err
	}
	if err := src.requireKind(op, KindBuffer, KindImage); err != nil {
		return err
	}
	if err := dst.requireKind(op, KindBuffer, KindImage); err != nil {
		return err
	}
	if src.kind == KindImage && dst.kind == KindImage {
		return fmt.Errorf("%s: %s to %s: %w", op, src.label(), dst.label(), ErrUnsupportedKind)
	}
	if err := checkSameElement(op, src, dst); err != nil {
		return err
	}
	if err := validateRegion(src.shape, srcOrigin, region); err != nil {
		return fmt.Errorf("%s: source %s: %w", op, src.label(), err)
	}
	if err := validateRegion(dst.shape, dstOrigin, region); err != nil {
		return fmt.Errorf("%s: destination %s: %w", op, dst.label(), err)
	}

	var err error
	switch {
	case src.kind == KindBuffer && dst.kind == KindBuffer:
		err = e.backend.EnqueueCopyRegion(e.queue, src.peer, dst.peer, blocking,
			src.rect(srcOrigin), dst.rect(dstOrigin), src.extent(region))
		err = wrapBackend(e.backend, "EnqueueCopyRegion", err)
	case src.kind == KindBuffer:
		err = e.backend.EnqueueCopyBufferToImage(e.queue, src.peer, dst.peer, blocking,
			src.rect(srcOrigin), dstOrigin, region)
		err = wrapBackend(e.backend, "EnqueueCopyBufferToImage", err)
	default:
		err = e.backend.EnqueueCopyImageToBuffer(e.queue, src.peer, dst.peer, blocking,
			srcOrigin, region, dst.rect(dstOrigin))
		err = wrapBackend(e.backend, "EnqueueCopyImageToBuffer", err)
	}
	if err != nil {
		return err
	}
	e.log.Debug("devmem: copy region",
		"src", src.label(), "dst", dst.label(), "src_origin", srcOrigin.String(),
		"dst_origin", dstOrigin.String(), "region", region.String(), "blocking", blocking)
	return e.notify(dst)
}

// ReadRegion copies the box region at srcOrigin of a buffer or image into
// a host surface at dstOrigin. The box must lie inside both surfaces and
// both must have the same element size. ReadRegion does not notify
// observers.
func (e *Engine) ReadRegion(src, dst *Surface, srcOrigin, dstOrigin Origin, region Region, blocking bool) error {
	const op = "read region"
	defer e.trace(op)()

	if err := src.live(op); err != nil {
		return err
	}
	if err := dst.live(op); err != nil {
		return err
	}
	if err := src.requireKind(op, KindBuffer, KindImage); err != nil {
		return err
	}
	if err := dst.requireKind(op, KindHost); err != nil {
		return err
	}
	if err := checkHostReadable(op, src); err != nil {
		return err
	}
	if err := checkSameElement(op, src, dst); err != nil {
		return err
	}
	if err := validateRegion(src.shape, srcOrigin, region); err != nil {
		return fmt.Errorf("%s: source %s: %w", op, src.label(), err)
	}
	if err := validateRegion(dst.shape, dstOrigin, region); err != nil {
		return fmt.Errorf("%s: destination %s: %w", op, dst.label(), err)
	}

	var err error
	if src.kind == KindBuffer {
		err = e.backend.EnqueueReadRegion(e.queue, src.peer, blocking,
			src.rect(srcOrigin), dst.rect(dstOrigin), src.extent(region), dst.host)
		err = wrapBackend(e.backend, "EnqueueReadRegion", err)
	} else {
		err = e.backend.EnqueueReadImage(e.queue, src.peer, blocking,
			srcOrigin, region, dst.rect(dstOrigin), dst.host)
		err = wrapBackend(e.backend, "EnqueueReadImage", err)
	}
	if err != nil {
		return err
	}
	e.log.Debug("devmem: read region",
		"src", src.label(), "dst", dst.label(), "src_origin", srcOrigin.String(),
		"dst_origin", dstOrigin.String(), "region", region.String(), "blocking", blocking)
	return nil
}

// WriteRegion copies the box region at srcOrigin of a host surface into
// a buffer or image at dstOrigin. The box must lie inside both surfaces
// and both must have the same element size.
func (e *Engine) WriteRegion(dst, src *Surface, srcOrigin, dstOrigin Origin, region Region, blocking bool) error {
	const op = "write region"
	defer e.trace(op)()

	if err := dst.live(op); err != nil {
		return err
	}
	if err := src.live(op); err != nil {
		return err
	}
	if err := dst.requireKind(op, KindBuffer, KindImage); err != nil {
		return err
	}
	if err := src.requireKind(op, KindHost); err != nil {
		return err
	}
	if err := checkHostWritable(op, dst); err != nil {
		return err
	}
	if err := checkSameElement(op, src, dst); err != nil {
		return err
	}
	if err := validateRegion(src.shape, srcOrigin, region); err != nil {
		return fmt.Errorf("%s: source %s: %w", op, src.label(), err)
	}
	if err := validateRegion(dst.shape, dstOrigin, region); err != nil {
		return fmt.Errorf("%s: destination %s: %w", op, dst.label(), err)
	}

	var err error
	if dst.kind == KindBuffer {
		err = e.backend.EnqueueWriteRegion(e.queue, dst.peer, blocking,
			dst.rect(dstOrigin), src.rect(srcOrigin), dst.extent(region), src.host)
		err = wrapBackend(e.backend, "EnqueueWriteRegion", err)
	} else {
		err = e.backend.EnqueueWriteImage(e.queue, dst.peer, blocking,
			dstOrigin, region, src.rect(srcOrigin), src.host)
		err = wrapBackend(e.backend, "EnqueueWriteImage", err)
	}
	if err != nil {
		return err
	}
	e.log.Debug("devmem: write region",
		"src", src.label(), "dst", dst.label(), "src_origin", srcOrigin.String(),
		"dst_origin", dstOrigin.String(), "region", region.String(), "blocking", blocking)
	return e.notify(dst)
}

// CopyToHostSurface copies the whole of a buffer or image into a host
// surface of exactly the same byte size, then notifies the host
// surface's observers.
func (e *Engine) CopyToHostSurface(src, dst *Surface, blocking bool) error {
	const op = "copy to host"
	defer e.trace(op)()

	if err := src.live(op); err != nil {
		return err
	}
	if err := dst.live(op); err != nil {
		return err
	}
	if err := src.requireKind(op, KindBuffer, KindImage); err != nil {
		return err
	}
	if err := dst.requireKind(op, KindHost); err != nil {
		return err
	}
	if err := checkHostReadable(op, src); err != nil {
		return err
	}
	if src.SizeInBytes() != dst.SizeInBytes() {
		return fmt.Errorf("%s: %w: %s holds %d bytes, %s holds %d", op, ErrSizeMismatch,
			src.label(), int64(src.SizeInBytes()), dst.label(), int64(dst.SizeInBytes()))
	}

	var err error
	if src.kind == KindBuffer {
		err = e.backend.EnqueueRead(e.queue, src.peer, blocking, 0, src.SizeInBytes(), dst.host)
		err = wrapBackend(e.backend, "EnqueueRead", err)
	} else {
		err = e.backend.EnqueueReadImage(e.queue, src.peer, blocking,
			Origin{}, Region(src.shape), src.rect(Origin{}), dst.host)
		err = wrapBackend(e.backend, "EnqueueReadImage", err)
	}
	if err != nil {
		return err
	}
	e.log.Debug("devmem: copy to host",
		"src", src.label(), "dst", dst.label(), "bytes", int64(src.SizeInBytes()), "blocking", blocking)
	return e.notify(dst)
}
