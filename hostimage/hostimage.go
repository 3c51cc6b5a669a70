// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hostimage converts between image.Image and 2D host surfaces.
//
// Surfaces have one (gray) or four (RGBA) channels of UInt8, UInt16,
// Float32 or Float64. Integer samples keep their range; float samples are
// normalized to [0, 1].
package hostimage

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/devmem"
	xdraw "golang.org/x/image/draw"
)

// ErrUnsupportedLayout is returned for surfaces or requests whose type,
// channel count or rank have no image equivalent.
var ErrUnsupportedLayout = errors.New("hostimage: unsupported layout")

// FromImage scales img to width x height and stores it in a new host
// surface of type t with 1 or 4 channels.
func FromImage(img image.Image, t devmem.NativeType, channels int64, width, height int) (*devmem.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("hostimage: from image: %w: %dx%d", devmem.ErrInvalidShape, width, height)
	}
	if err := checkLayout(t, channels); err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, width, height)
	if channels == 1 {
		dst := image.NewGray16(bounds)
		xdraw.CatmullRom.Scale(dst, bounds, img, img.Bounds(), xdraw.Src, nil)
		return fromSamples(t, channels, width, height, len(dst.Pix)/2, func(i int) uint16 {
			return uint16(dst.Pix[2*i])<<8 | uint16(dst.Pix[2*i+1])
		})
	}
	dst := image.NewNRGBA64(bounds)
	xdraw.CatmullRom.Scale(dst, bounds, img, img.Bounds(), xdraw.Src, nil)
	return fromSamples(t, channels, width, height, len(dst.Pix)/2, func(i int) uint16 {
		return uint16(dst.Pix[2*i])<<8 | uint16(dst.Pix[2*i+1])
	})
}

// fromSamples fills a new surface with n 16-bit samples.
func fromSamples(t devmem.NativeType, channels int64, width, height, n int, sample func(int) uint16) (*devmem.Surface, error) {
	s, err := devmem.NewHostSurface(t, channels, int64(width), int64(height))
	if err != nil {
		return nil, fmt.Errorf("hostimage: from image: %w", err)
	}
	switch t {
	case devmem.UInt8:
		v, err := devmem.View[uint8](s)
		if err != nil {
			return nil, fmt.Errorf("hostimage: from image: %w", err)
		}
		for i := 0; i < n; i++ {
			v[i] = uint8(sample(i) >> 8)
		}
	case devmem.UInt16:
		v, err := devmem.View[uint16](s)
		if err != nil {
			return nil, fmt.Errorf("hostimage: from image: %w", err)
		}
		for i := 0; i < n; i++ {
			v[i] = sample(i)
		}
	case devmem.Float32:
		v, err := devmem.View[float32](s)
		if err != nil {
			return nil, fmt.Errorf("hostimage: from image: %w", err)
		}
		for i := 0; i < n; i++ {
			v[i] = float32(sample(i)) / 0xffff
		}
	case devmem.Float64:
		v, err := devmem.View[float64](s)
		if err != nil {
			return nil, fmt.Errorf("hostimage: from image: %w", err)
		}
		for i := 0; i < n; i++ {
			v[i] = float64(sample(i)) / 0xffff
		}
	}
	return s, nil
}

// ToImage returns a copy of a 2D host surface as an image. One-channel
// surfaces become *image.Gray16 and four-channel surfaces *image.NRGBA64.
func ToImage(s *devmem.Surface) (image.Image, error) {
	if s.Kind() != devmem.KindHost {
		return nil, fmt.Errorf("hostimage: to image: %w: %s", devmem.ErrUnsupportedKind, s)
	}
	if s.Rank() > 2 && s.Depth() != 1 {
		return nil, fmt.Errorf("hostimage: to image: %w: %s is three-dimensional", ErrUnsupportedLayout, s)
	}
	if err := checkLayout(s.NativeType(), s.Channels()); err != nil {
		return nil, err
	}
	sample, err := samples(s)
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, int(s.Width()), int(s.Height()))
	var pix []uint8
	var img image.Image
	if s.Channels() == 1 {
		g := image.NewGray16(bounds)
		pix, img = g.Pix, g
	} else {
		c := image.NewNRGBA64(bounds)
		pix, img = c.Pix, c
	}
	for i := 0; i < len(pix)/2; i++ {
		v := sample(i)
		pix[2*i] = uint8(v >> 8)
		pix[2*i+1] = uint8(v)
	}
	return img, nil
}

// samples returns a reader of the i-th sample of s as 16 bits.
func samples(s *devmem.Surface) (func(int) uint16, error) {
	switch s.NativeType() {
	case devmem.UInt8:
		v, err := devmem.View[uint8](s)
		return func(i int) uint16 { return uint16(v[i]) * 0x101 }, err
	case devmem.UInt16:
		v, err := devmem.View[uint16](s)
		return func(i int) uint16 { return v[i] }, err
	case devmem.Float32:
		v, err := devmem.View[float32](s)
		return func(i int) uint16 { return unit(float64(v[i])) }, err
	default:
		v, err := devmem.View[float64](s)
		return func(i int) uint16 { return unit(v[i]) }, err
	}
}

// unit maps [0, 1] to a 16-bit sample, clamping out-of-range values.
func unit(f float64) uint16 {
	switch {
	case f <= 0 || math.IsNaN(f):
		return 0
	case f >= 1:
		return 0xffff
	}
	return uint16(f*0xffff + 0.5)
}

func checkLayout(t devmem.NativeType, channels int64) error {
	switch t {
	case devmem.UInt8, devmem.UInt16, devmem.Float32, devmem.Float64:
	default:
		return fmt.Errorf("hostimage: %w: type %s", ErrUnsupportedLayout, t)
	}
	if channels != 1 && channels != 4 {
		return fmt.Errorf("hostimage: %w: %d channels", ErrUnsupportedLayout, channels)
	}
	return nil
}

// Gray returns the luminance of a 1-channel UInt8 surface pixel, for
// quick inspection in tools and tests.
func Gray(s *devmem.Surface, x, y int) (color.Gray, error) {
	if s.NativeType() != devmem.UInt8 || s.Channels() != 1 {
		return color.Gray{}, fmt.Errorf("hostimage: gray: %w: %s", ErrUnsupportedLayout, s)
	}
	if x < 0 || y < 0 || int64(x) >= s.Width() || int64(y) >= s.Height() {
		return color.Gray{}, fmt.Errorf("hostimage: gray: %w: (%d,%d) outside %s", devmem.ErrInvalidRegion, x, y, s)
	}
	v, err := devmem.View[uint8](s)
	if err != nil {
		return color.Gray{}, err
	}
	return color.Gray{Y: v[y*int(s.Width())+x]}, nil
}
