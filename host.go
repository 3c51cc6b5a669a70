// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"fmt"
	"unsafe"
)

// HostMemory is host memory that transfers read from or write into.
// The length of HostBytes is the capacity of the memory.
type HostMemory interface {
	HostBytes() []byte
}

// HostBuffer is raw host memory.
type HostBuffer []byte

// HostBytes returns the buffer itself.
func (b HostBuffer) HostBytes() []byte { return b }

// hostSlice views a typed Go slice as host memory.
type hostSlice[T Scalar] struct {
	values []T
}

// HostSlice wraps a typed slice as host memory without copying.
// Transfers see the slice's backing array in native byte order.
func HostSlice[T Scalar](values []T) HostMemory {
	return hostSlice[T]{values: values}
}

func (h hostSlice[T]) HostBytes() []byte {
	if len(h.values) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(h.values))), len(h.values)*sizeOf[T]())
}

// View returns the memory of a host surface as a slice of T.
// T must match the surface's native type; Float16 surfaces are viewed as
// uint16. The view has one value per channel and aliases the surface.
func View[T Scalar](s *Surface) ([]T, error) {
	if err := s.live("view"); err != nil {
		return nil, err
	}
	if err := s.requireKind("view", KindHost); err != nil {
		return nil, err
	}
	vt := NativeTypeOf[T]()
	if !compatibleView(s.typ, vt) {
		return nil, fmt.Errorf("view: surface %s: %w: %s cannot be viewed as %s",
			s.label(), ErrSizeMismatch, s.typ, vt)
	}
	if len(s.host) == 0 {
		return []T{}, nil
	}
	p := unsafe.Pointer(unsafe.SliceData(s.host))
	if uintptr(p)%uintptr(sizeOf[T]()) != 0 {
		return nil, fmt.Errorf("view: surface %s: %w for %s", s.label(), ErrMisaligned, vt)
	}
	return unsafe.Slice((*T)(p), len(s.host)/sizeOf[T]()), nil
}

// sizeOf returns the size of T in bytes.
func sizeOf[T Scalar]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// alignedBytes allocates n zeroed bytes aligned to eight bytes.
func alignedBytes(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
}
