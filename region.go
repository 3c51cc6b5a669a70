// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import "fmt"

// MaxRank is the highest number of dimensions a surface may have.
const MaxRank = 3

// Origin is the element coordinate of a region's first element.
// Unused trailing coordinates are zero.
type Origin [MaxRank]int64

// Region is the extent of a region in elements along each axis.
// Unused trailing extents are one.
type Region [MaxRank]int64

// OriginOf builds an Origin from one to three coordinates, padding the
// rest with zero. It panics when given more than three coordinates.
func OriginOf(coords ...int64) Origin {
	if len(coords) > MaxRank {
		panic(fmt.Sprintf("devmem: origin has %d coordinates, at most %d allowed", len(coords), MaxRank))
	}
	var o Origin
	copy(o[:], coords)
	return o
}

// RegionOf builds a Region from one to three extents, padding the rest
// with one. It panics when given more than three extents.
func RegionOf(sizes ...int64) Region {
	if len(sizes) > MaxRank {
		panic(fmt.Sprintf("devmem: region has %d extents, at most %d allowed", len(sizes), MaxRank))
	}
	r := Region{1, 1, 1}
	copy(r[:], sizes)
	return r
}

// Volume returns the number of elements covered by the region.
func (r Region) Volume() Elements {
	return Elements(r[0] * r[1] * r[2])
}

// String returns the region as "WxHxD".
func (r Region) String() string {
	return fmt.Sprintf("%dx%dx%d", r[0], r[1], r[2])
}

// String returns the origin as "(x,y,z)".
func (o Origin) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o[0], o[1], o[2])
}

// validateRegion checks that the region at origin lies inside shape.
func validateRegion(shape [MaxRank]int64, origin Origin, region Region) error {
	for axis := 0; axis < MaxRank; axis++ {
		if origin[axis] < 0 {
			return fmt.Errorf("%w: origin %s is negative on axis %d", ErrInvalidRegion, origin, axis)
		}
		if region[axis] < 1 {
			return fmt.Errorf("%w: extent %s is empty on axis %d", ErrInvalidRegion, region, axis)
		}
		if region[axis] > shape[axis] || origin[axis] > shape[axis]-region[axis] {
			return fmt.Errorf("%w: region %s at %s exceeds %dx%dx%d on axis %d",
				ErrSizeMismatch, region, origin, shape[0], shape[1], shape[2], axis)
		}
	}
	return nil
}

// ByteRect locates a box inside linear memory.
type ByteRect struct {
	// Offset is the byte offset of the box's first element.
	Offset Bytes

	// RowPitch is the distance between consecutive rows.
	RowPitch Bytes

	// SlicePitch is the distance between consecutive slices.
	SlicePitch Bytes
}

// ByteExtent is the size of a box inside linear memory.
type ByteExtent struct {
	// Row is the number of bytes copied per row.
	Row Bytes

	// Rows is the number of rows per slice.
	Rows int64

	// Slices is the number of slices.
	Slices int64
}

// Size returns the number of bytes covered by the extent.
func (e ByteExtent) Size() Bytes {
	return e.Row * Bytes(e.Rows) * Bytes(e.Slices)
}

// RowOffset returns the byte offset of row y in slice z relative to r.
func (r ByteRect) RowOffset(y, z int64) Bytes {
	return r.Offset + Bytes(y)*r.RowPitch + Bytes(z)*r.SlicePitch
}

// String returns the rect as "offset+row/slice".
func (r ByteRect) String() string {
	return fmt.Sprintf("%d+%d/%d", int64(r.Offset), int64(r.RowPitch), int64(r.SlicePitch))
}

// CopyRect copies an extent between two linear byte slices.
// Backends that keep device memory in host slices use it for region
// transfers.
func CopyRect(dst []byte, dstRect ByteRect, src []byte, srcRect ByteRect, extent ByteExtent) {
	for z := int64(0); z < extent.Slices; z++ {
		for y := int64(0); y < extent.Rows; y++ {
			s := srcRect.RowOffset(y, z)
			d := dstRect.RowOffset(y, z)
			copy(dst[d:d+extent.Row], src[s:s+extent.Row])
		}
	}
}

// span returns the number of bytes from the rect's offset to one past the
// last byte touched by extent.
func (r ByteRect) span(extent ByteExtent) Bytes {
	if extent.Row == 0 || extent.Rows == 0 || extent.Slices == 0 {
		return 0
	}
	return Bytes(extent.Slices-1)*r.SlicePitch + Bytes(extent.Rows-1)*r.RowPitch + extent.Row
}

// Within reports whether extent placed at r fits in n bytes of linear
// memory. Negative or overflowing rects do not fit.
func (r ByteRect) Within(extent ByteExtent, n Bytes) bool {
	if r.Offset < 0 || r.RowPitch < 0 || r.SlicePitch < 0 || extent.Row < 0 || extent.Rows < 0 || extent.Slices < 0 {
		return false
	}
	if extent.Row == 0 || extent.Rows == 0 || extent.Slices == 0 {
		return r.Offset <= n
	}
	limit := n - r.Offset
	if limit < extent.Row {
		return false
	}
	limit -= extent.Row
	if r.RowPitch > 0 {
		if Bytes(extent.Rows-1) > limit/r.RowPitch {
			return false
		}
		limit -= Bytes(extent.Rows-1) * r.RowPitch
	}
	return r.SlicePitch == 0 || Bytes(extent.Slices-1) <= limit/r.SlicePitch
}

// End returns one past the last byte touched by extent.
func (r ByteRect) End(extent ByteExtent) Bytes {
	return r.Offset + r.span(extent)
}
