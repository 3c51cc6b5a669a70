// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import "fmt"

// Elements counts surface elements. One element covers every channel of
// a single position, so a four-channel image of 8x8 has 64 elements.
type Elements int64

// Bytes counts raw bytes as seen by a backend.
type Bytes int64

// String returns the count with its unit.
func (n Elements) String() string { return fmt.Sprintf("%d elements", int64(n)) }

// String returns the count with its unit.
func (n Bytes) String() string { return fmt.Sprintf("%d bytes", int64(n)) }

// Scalar is the set of Go types that can view host surface memory.
type Scalar interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// NativeType is the scalar type of one channel of a surface element.
type NativeType uint8

// Native element types.
const (
	Int8 NativeType = iota + 1
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float16
	Float32
	Float64
)

// Size returns the size of one channel value.
// It returns 0 for an unknown type.
func (t NativeType) Size() Bytes {
	switch t {
	case Int8, UInt8:
		return 1
	case Int16, UInt16, Float16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Int64, UInt64, Float64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether t is one of the defined native types.
func (t NativeType) Valid() bool { return t.Size() > 0 }

// Float reports whether t is a floating point type.
func (t NativeType) Float() bool {
	return t == Float16 || t == Float32 || t == Float64
}

// Signed reports whether t can hold negative values.
func (t NativeType) Signed() bool {
	switch t {
	case Int8, Int16, Int32, Int64, Float16, Float32, Float64:
		return true
	default:
		return false
	}
}

// String returns a human-readable name for the native type.
func (t NativeType) String() string {
	switch t {
	case Int8:
		return "Int8"
	case UInt8:
		return "UInt8"
	case Int16:
		return "Int16"
	case UInt16:
		return "UInt16"
	case Int32:
		return "Int32"
	case UInt32:
		return "UInt32"
	case Int64:
		return "Int64"
	case UInt64:
		return "UInt64"
	case Float16:
		return "Float16"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	default:
		return fmt.Sprintf("NativeType(%d)", uint8(t))
	}
}

// NativeTypeOf returns the native type that matches the Go scalar type T.
// Float16 has no Go counterpart; its storage is viewed as uint16.
func NativeTypeOf[T Scalar]() NativeType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return UInt8
	case int16:
		return Int16
	case uint16:
		return UInt16
	case int32:
		return Int32
	case uint32:
		return UInt32
	case int64:
		return Int64
	case uint64:
		return UInt64
	case float32:
		return Float32
	case float64:
		return Float64
	}
	return nativeTypeOfUnderlying[T]()
}

// nativeTypeOfUnderlying resolves named types such as "type Gray uint8"
// through their size and kind.
func nativeTypeOfUnderlying[T Scalar]() NativeType {
	var zero T
	var minusOne T
	minusOne--
	signed := minusOne < zero
	half := 0.5
	isFloat := T(half) != zero
	switch sizeOf[T]() {
	case 1:
		if signed {
			return Int8
		}
		return UInt8
	case 2:
		if signed {
			return Int16
		}
		return UInt16
	case 4:
		switch {
		case isFloat:
			return Float32
		case signed:
			return Int32
		default:
			return UInt32
		}
	default:
		switch {
		case isFloat:
			return Float64
		case signed:
			return Int64
		default:
			return UInt64
		}
	}
}

// compatibleView reports whether values of native type v may view storage
// of native type t.
func compatibleView(t, v NativeType) bool {
	if t == v {
		return true
	}
	return t == Float16 && v == UInt16
}
