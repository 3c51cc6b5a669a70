// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestSurfaceSizeIdentity(t *testing.T) {
	tests := []struct {
		name     string
		typ      NativeType
		channels int64
		dims     []int64
		want     Bytes
	}{
		{"int32 vector", Int32, 1, []int64{16}, 64},
		{"rgba8 image", UInt8, 4, []int64{8, 8}, 256},
		{"float16 volume", Float16, 1, []int64{4, 4, 4}, 128},
		{"float64 pairs", Float64, 2, []int64{3, 5}, 240},
		{"default channels", Int16, 0, []int64{10}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewHostSurface(tt.typ, tt.channels, tt.dims...)
			if err != nil {
				t.Fatalf("NewHostSurface() error = %v", err)
			}
			if got := s.SizeInBytes(); got != tt.want {
				t.Errorf("SizeInBytes() = %d, want %d", got, tt.want)
			}
			volume := int64(1)
			for _, d := range tt.dims {
				volume *= d
			}
			identity := Bytes(volume*s.Channels()) * tt.typ.Size()
			if s.SizeInBytes() != identity {
				t.Errorf("SizeInBytes() = %d, volume*channels*size = %d", s.SizeInBytes(), identity)
			}
			if got := Bytes(len(s.HostBytes())); got != tt.want {
				t.Errorf("len(HostBytes()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSurfaceShape(t *testing.T) {
	s, err := NewHostSurface(Float32, 1, 7, 3)
	if err != nil {
		t.Fatalf("NewHostSurface() error = %v", err)
	}
	if s.Rank() != 2 {
		t.Errorf("Rank() = %d, want 2", s.Rank())
	}
	if got := s.Shape(); got != [MaxRank]int64{7, 3, 1} {
		t.Errorf("Shape() = %v", got)
	}
	if s.Width() != 7 || s.Height() != 3 || s.Depth() != 1 {
		t.Errorf("Width/Height/Depth = %d/%d/%d", s.Width(), s.Height(), s.Depth())
	}
	dims := s.Dimensions()
	dims[0] = 100
	if s.Width() != 7 {
		t.Error("Dimensions() must return a copy")
	}
	if s.Length() != 21 {
		t.Errorf("Length() = %d, want 21", s.Length())
	}
}

func TestSurfaceInvalidShape(t *testing.T) {
	tests := []struct {
		name string
		typ  NativeType
		ch   int64
		dims []int64
	}{
		{"no dims", Int32, 1, nil},
		{"four dims", Int32, 1, []int64{1, 1, 1, 1}},
		{"zero dim", Int32, 1, []int64{4, 0}},
		{"negative channels", Int32, -1, []int64{4}},
		{"bad type", NativeType(0), 1, []int64{4}},
		{"volume overflows", UInt8, 1, []int64{1 << 32, 1 << 32}},
		{"bytes overflow", Float64, 4, []int64{1 << 30, 1 << 30}},
		{"channels overflow", Float64, math.MaxInt64 / 4, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHostSurface(tt.typ, tt.ch, tt.dims...)
			if !errors.Is(err, ErrInvalidShape) {
				t.Errorf("NewHostSurface() error = %v, want ErrInvalidShape", err)
			}
		})
	}
}

func TestNewSurfaceRejectsHostKind(t *testing.T) {
	_, err := NewSurface(SurfaceDescriptor{Kind: KindHost, NativeType: Int8, Dimensions: []int64{1}}, struct{}{}, nil)
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("NewSurface(KindHost) error = %v, want ErrUnsupportedKind", err)
	}
	_, err = NewSurface(SurfaceDescriptor{Kind: KindBuffer, NativeType: Int8, Dimensions: []int64{1}}, nil, nil)
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("NewSurface(nil peer) error = %v, want ErrInvalidShape", err)
	}
}

func TestSurfaceReleaseOnce(t *testing.T) {
	released := 0
	s, err := NewSurface(SurfaceDescriptor{
		Kind:       KindBuffer,
		NativeType: Int32,
		Dimensions: []int64{4},
		Policy:     FullAccess,
	}, "peer", func(p PeerHandle) error {
		if p != "peer" {
			t.Errorf("release got peer %v", p)
		}
		released++
		return nil
	})
	if err != nil {
		t.Fatalf("NewSurface() error = %v", err)
	}
	s.Subscribe(ObserverFunc(func(ChangeEvent) error { return nil }))

	if err := s.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := s.Release(); !errors.Is(err, ErrUseAfterRelease) {
		t.Errorf("second Release() error = %v, want ErrUseAfterRelease", err)
	}
	if released != 1 {
		t.Errorf("release func called %d times, want 1", released)
	}
	if _, err := s.Peer(); !errors.Is(err, ErrUseAfterRelease) {
		t.Errorf("Peer() after release error = %v, want ErrUseAfterRelease", err)
	}
	if s.Observers() != 0 {
		t.Errorf("Observers() after release = %d, want 0", s.Observers())
	}
	if !s.Released() {
		t.Error("Released() = false after Release")
	}
	if s.SizeInBytes() != 16 {
		t.Errorf("SizeInBytes() after release = %d, want 16", s.SizeInBytes())
	}
}

func TestSurfaceReleaseError(t *testing.T) {
	boom := errors.New("boom")
	s, err := NewSurface(SurfaceDescriptor{Kind: KindImage, NativeType: UInt8, Dimensions: []int64{2, 2}},
		1, func(PeerHandle) error { return boom })
	if err != nil {
		t.Fatalf("NewSurface() error = %v", err)
	}
	if err := s.Release(); !errors.Is(err, boom) {
		t.Errorf("Release() error = %v, want boom", err)
	}
	if !s.Released() {
		t.Error("a failed release must still consume the surface")
	}
}

func TestSurfaceString(t *testing.T) {
	s, err := NewSurface(SurfaceDescriptor{
		Label:      "weights",
		Kind:       KindBuffer,
		NativeType: Float32,
		Channels:   2,
		Dimensions: []int64{8, 4},
		Policy:     HostReadOnly,
	}, 1, nil)
	if err != nil {
		t.Fatalf("NewSurface() error = %v", err)
	}
	got := s.String()
	for _, want := range []string{"Buffer#", "(weights)", "Float32x2", "8x4", "host=ReadOnly"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestWrapHost(t *testing.T) {
	values := make([]int32, 12)
	s, err := WrapHost(HostSlice(values), Int32, 1, 4, 3)
	if err != nil {
		t.Fatalf("WrapHost() error = %v", err)
	}
	view, err := View[int32](s)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	view[5] = 42
	if values[5] != 42 {
		t.Error("WrapHost must alias the wrapped memory")
	}

	if _, err := WrapHost(HostSlice(values), Int32, 1, 4, 4); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("WrapHost(too small) error = %v, want ErrSizeMismatch", err)
	}
}
