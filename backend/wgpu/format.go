// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/devmem"
	"github.com/gogpu/gputypes"
)

// CopyPitchAlignment is the row pitch alignment, in bytes, of buffer and
// texture copies.
const CopyPitchAlignment = 256

type formatKey struct {
	typ      devmem.NativeType
	channels int64
}

var textureFormats = map[formatKey]gputypes.TextureFormat{
	{devmem.Int8, 1}:    gputypes.TextureFormatR8Sint,
	{devmem.Int8, 2}:    gputypes.TextureFormatRG8Sint,
	{devmem.Int8, 4}:    gputypes.TextureFormatRGBA8Sint,
	{devmem.UInt8, 1}:   gputypes.TextureFormatR8Uint,
	{devmem.UInt8, 2}:   gputypes.TextureFormatRG8Uint,
	{devmem.UInt8, 4}:   gputypes.TextureFormatRGBA8Uint,
	{devmem.Int16, 1}:   gputypes.TextureFormatR16Sint,
	{devmem.Int16, 2}:   gputypes.TextureFormatRG16Sint,
	{devmem.Int16, 4}:   gputypes.TextureFormatRGBA16Sint,
	{devmem.UInt16, 1}:  gputypes.TextureFormatR16Uint,
	{devmem.UInt16, 2}:  gputypes.TextureFormatRG16Uint,
	{devmem.UInt16, 4}:  gputypes.TextureFormatRGBA16Uint,
	{devmem.Float16, 1}: gputypes.TextureFormatR16Float,
	{devmem.Float16, 2}: gputypes.TextureFormatRG16Float,
	{devmem.Float16, 4}: gputypes.TextureFormatRGBA16Float,
	{devmem.Int32, 1}:   gputypes.TextureFormatR32Sint,
	{devmem.Int32, 2}:   gputypes.TextureFormatRG32Sint,
	{devmem.Int32, 4}:   gputypes.TextureFormatRGBA32Sint,
	{devmem.UInt32, 1}:  gputypes.TextureFormatR32Uint,
	{devmem.UInt32, 2}:  gputypes.TextureFormatRG32Uint,
	{devmem.UInt32, 4}:  gputypes.TextureFormatRGBA32Uint,
	{devmem.Float32, 1}: gputypes.TextureFormatR32Float,
	{devmem.Float32, 2}: gputypes.TextureFormatRG32Float,
	{devmem.Float32, 4}: gputypes.TextureFormatRGBA32Float,
}

// TextureFormat returns the texture format that stores channels elements
// of t per texel. 64-bit types and three-channel layouts have no texture
// format.
func TextureFormat(t devmem.NativeType, channels int64) (gputypes.TextureFormat, error) {
	f, ok := textureFormats[formatKey{t, channels}]
	if !ok {
		return gputypes.TextureFormatUndefined, fmt.Errorf("%w: %s with %d channels", ErrUnsupportedFormat, t, channels)
	}
	return f, nil
}

func textureDimension(rank int) gputypes.TextureDimension {
	switch rank {
	case 1:
		return gputypes.TextureDimension1D
	case 3:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

func bufferUsage(p devmem.AccessPolicy) gputypes.BufferUsage {
	u := gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	if p.Kernel != devmem.NoAccess {
		u |= gputypes.BufferUsageStorage
	}
	return u
}

func textureUsage(p devmem.AccessPolicy) gputypes.TextureUsage {
	u := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	if p.Kernel.Readable() {
		u |= gputypes.TextureUsageTextureBinding
	}
	if p.Kernel.Writable() {
		u |= gputypes.TextureUsageStorageBinding
	}
	return u
}

func alignPitch(row uint64) uint64 {
	return (row + CopyPitchAlignment - 1) &^ (CopyPitchAlignment - 1)
}
