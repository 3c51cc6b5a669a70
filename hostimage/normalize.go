// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hostimage

import (
	"fmt"
	"math"

	"github.com/gogpu/devmem"
)

// Normalize linearly rescales every sample of a host surface in place so
// that its smallest sample becomes lo and its largest becomes hi. Integer
// samples are rounded and clamped to their type's range. A surface whose
// samples are all equal is set to lo.
func Normalize(s *devmem.Surface, lo, hi float64) error {
	if s.Kind() != devmem.KindHost {
		return fmt.Errorf("hostimage: normalize: %w: %s", devmem.ErrUnsupportedKind, s)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return fmt.Errorf("hostimage: normalize: %w: range [%v, %v]", devmem.ErrInvalidRegion, lo, hi)
	}
	switch s.NativeType() {
	case devmem.Int8:
		return normalize[int8](s, lo, hi, math.MinInt8, math.MaxInt8, true)
	case devmem.UInt8:
		return normalize[uint8](s, lo, hi, 0, math.MaxUint8, true)
	case devmem.Int16:
		return normalize[int16](s, lo, hi, math.MinInt16, math.MaxInt16, true)
	case devmem.UInt16:
		return normalize[uint16](s, lo, hi, 0, math.MaxUint16, true)
	case devmem.Int32:
		return normalize[int32](s, lo, hi, math.MinInt32, math.MaxInt32, true)
	case devmem.UInt32:
		return normalize[uint32](s, lo, hi, 0, math.MaxUint32, true)
	case devmem.Int64:
		return normalize[int64](s, lo, hi, math.MinInt64, math.MaxInt64, true)
	case devmem.UInt64:
		return normalize[uint64](s, lo, hi, 0, math.MaxUint64, true)
	case devmem.Float32:
		return normalize[float32](s, lo, hi, -math.MaxFloat32, math.MaxFloat32, false)
	case devmem.Float64:
		return normalize[float64](s, lo, hi, -math.MaxFloat64, math.MaxFloat64, false)
	}
	return fmt.Errorf("hostimage: normalize: %w: type %s", ErrUnsupportedLayout, s.NativeType())
}

func normalize[T devmem.Scalar](s *devmem.Surface, lo, hi float64, tmin, tmax T, integer bool) error {
	v, err := devmem.View[T](s)
	if err != nil {
		return fmt.Errorf("hostimage: normalize: %w", err)
	}
	if len(v) == 0 {
		return nil
	}
	minV, maxV := float64(v[0]), float64(v[0])
	for _, x := range v[1:] {
		f := float64(x)
		minV = math.Min(minV, f)
		maxV = math.Max(maxV, f)
	}
	var scale float64
	if maxV > minV {
		scale = (hi - lo) / (maxV - minV)
	}
	for i, x := range v {
		f := (float64(x)-minV)*scale + lo
		if integer {
			f = math.Round(f)
		}
		switch {
		case f <= float64(tmin):
			v[i] = tmin
		case f >= float64(tmax):
			v[i] = tmax
		default:
			v[i] = T(f)
		}
	}
	return nil
}
