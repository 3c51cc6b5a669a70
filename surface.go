// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// Kind says where a surface lives and how it is addressed.
type Kind uint8

// Surface kinds.
const (
	// KindBuffer is a linearly addressed device buffer.
	KindBuffer Kind = iota + 1

	// KindImage is a device image addressed by coordinates.
	KindImage

	// KindHost is host memory with a shape, used as the host side of
	// region transfers and as the target of whole-surface copies.
	KindHost
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "Buffer"
	case KindImage:
		return "Image"
	case KindHost:
		return "Host"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Device reports whether surfaces of this kind live on a device.
func (k Kind) Device() bool { return k == KindBuffer || k == KindImage }

// PeerHandle is the backend's handle for the memory behind a device
// surface. Only the backend that issued it may interpret it.
type PeerHandle any

// SurfaceDescriptor describes a surface to create.
type SurfaceDescriptor struct {
	// Label is an optional name used in logs and errors.
	Label string

	// Kind is the surface kind.
	Kind Kind

	// NativeType is the scalar type of each channel.
	NativeType NativeType

	// Channels is the number of channels per element. Zero means one.
	Channels int64

	// Dimensions holds one to three positive sizes, in elements.
	Dimensions []int64

	// Policy is the host and kernel access policy.
	Policy AccessPolicy
}

// shape validates d and returns its padded shape and rank.
func (d SurfaceDescriptor) shape() ([MaxRank]int64, int, error) {
	shape := [MaxRank]int64{1, 1, 1}
	if !d.NativeType.Valid() {
		return shape, 0, fmt.Errorf("%w: unknown native type %s", ErrInvalidShape, d.NativeType)
	}
	if d.Channels < 0 {
		return shape, 0, fmt.Errorf("%w: %d channels", ErrInvalidShape, d.Channels)
	}
	rank := len(d.Dimensions)
	if rank < 1 || rank > MaxRank {
		return shape, 0, fmt.Errorf("%w: %d dimensions, want 1 to %d", ErrInvalidShape, rank, MaxRank)
	}
	channels := d.Channels
	if channels == 0 {
		channels = 1
	}
	if channels > math.MaxInt64/int64(d.NativeType.Size()) {
		return shape, 0, fmt.Errorf("%w: %d channels", ErrInvalidShape, d.Channels)
	}
	size := channels * int64(d.NativeType.Size())
	for i, n := range d.Dimensions {
		if n < 1 {
			return shape, 0, fmt.Errorf("%w: dimension %d is %d", ErrInvalidShape, i, n)
		}
		if n > math.MaxInt64/size {
			return shape, 0, fmt.Errorf("%w: %v overflows the addressable size", ErrInvalidShape, d.Dimensions)
		}
		size *= n
		shape[i] = n
	}
	return shape, rank, nil
}

// nextSurfaceID numbers surfaces for logs.
var nextSurfaceID atomic.Uint64

// Surface is a typed, shaped block of device or host memory.
//
// A Surface is safe for concurrent use by transfers, but it must not be
// released while a transfer that uses it is being issued. After Release,
// every transfer involving the surface fails with ErrUseAfterRelease.
type Surface struct {
	id       uint64
	name     string
	kind     Kind
	typ      NativeType
	channels int64
	shape    [MaxRank]int64
	rank     int
	policy   AccessPolicy

	peer    PeerHandle
	host    []byte
	release func(PeerHandle) error

	released atomic.Bool
	notifier notifier
}

// NewSurface wraps a peer handle allocated by a backend into a device
// surface. release is called once, by Release, to free the peer; it may
// be nil.
//
// Most callers allocate through a [Context] instead.
func NewSurface(desc SurfaceDescriptor, peer PeerHandle, release func(PeerHandle) error) (*Surface, error) {
	if !desc.Kind.Device() {
		return nil, fmt.Errorf("new surface: %w: %s is not a device kind", ErrUnsupportedKind, desc.Kind)
	}
	if peer == nil {
		return nil, fmt.Errorf("new surface: %w: nil peer handle", ErrInvalidShape)
	}
	s, err := newSurface(desc)
	if err != nil {
		return nil, fmt.Errorf("new surface: %w", err)
	}
	s.peer = peer
	s.release = release
	return s, nil
}

// NewHostSurface allocates zeroed host memory shaped like dims.
// Host surfaces are readable and writable by the host and invisible to
// kernels. The storage is aligned for any [Scalar] view.
func NewHostSurface(t NativeType, channels int64, dims ...int64) (*Surface, error) {
	s, err := newSurface(SurfaceDescriptor{
		Kind:       KindHost,
		NativeType: t,
		Channels:   channels,
		Dimensions: dims,
		Policy:     AccessPolicy{Host: ReadWrite, Kernel: NoAccess},
	})
	if err != nil {
		return nil, fmt.Errorf("new host surface: %w", err)
	}
	s.host = alignedBytes(int(s.SizeInBytes()))
	return s, nil
}

// WrapHost shapes existing host memory as a host surface without copying.
// The memory must hold at least the surface's size in bytes.
func WrapHost(mem HostMemory, t NativeType, channels int64, dims ...int64) (*Surface, error) {
	s, err := newSurface(SurfaceDescriptor{
		Kind:       KindHost,
		NativeType: t,
		Channels:   channels,
		Dimensions: dims,
		Policy:     AccessPolicy{Host: ReadWrite, Kernel: NoAccess},
	})
	if err != nil {
		return nil, fmt.Errorf("wrap host: %w", err)
	}
	b := mem.HostBytes()
	if Bytes(len(b)) < s.SizeInBytes() {
		return nil, fmt.Errorf("wrap host: %w: %d bytes of host memory, surface needs %d",
			ErrSizeMismatch, len(b), int64(s.SizeInBytes()))
	}
	s.host = b[:s.SizeInBytes()]
	return s, nil
}

func newSurface(desc SurfaceDescriptor) (*Surface, error) {
	shape, rank, err := desc.shape()
	if err != nil {
		return nil, err
	}
	channels := desc.Channels
	if channels == 0 {
		channels = 1
	}
	return &Surface{
		id:       nextSurfaceID.Add(1),
		name:     desc.Label,
		kind:     desc.Kind,
		typ:      desc.NativeType,
		channels: channels,
		shape:    shape,
		rank:     rank,
		policy:   desc.Policy,
	}, nil
}

// ID returns the process-unique surface number.
func (s *Surface) ID() uint64 { return s.id }

// Label returns the surface label, which may be empty.
func (s *Surface) Label() string { return s.name }

// Kind returns the surface kind.
func (s *Surface) Kind() Kind { return s.kind }

// NativeType returns the scalar type of each channel.
func (s *Surface) NativeType() NativeType { return s.typ }

// Channels returns the number of channels per element.
func (s *Surface) Channels() int64 { return s.channels }

// Rank returns the number of dimensions the surface was created with.
func (s *Surface) Rank() int { return s.rank }

// Dimensions returns the sizes the surface was created with.
func (s *Surface) Dimensions() []int64 {
	out := make([]int64, s.rank)
	copy(out, s.shape[:s.rank])
	return out
}

// Shape returns the sizes padded to three dimensions with ones.
func (s *Surface) Shape() [MaxRank]int64 { return s.shape }

// Width returns the size along the first axis.
func (s *Surface) Width() int64 { return s.shape[0] }

// Height returns the size along the second axis.
func (s *Surface) Height() int64 { return s.shape[1] }

// Depth returns the size along the third axis.
func (s *Surface) Depth() int64 { return s.shape[2] }

// Length returns the number of elements in the surface.
func (s *Surface) Length() Elements {
	return Elements(s.shape[0] * s.shape[1] * s.shape[2])
}

// ElementSize returns the size of one element: channels times the size
// of the native type.
func (s *Surface) ElementSize() Bytes {
	return Bytes(s.channels) * s.typ.Size()
}

// SizeInBytes returns the size of the whole surface.
func (s *Surface) SizeInBytes() Bytes { return s.BytesOf(s.Length()) }

// BytesOf converts an element count of this surface to bytes.
func (s *Surface) BytesOf(n Elements) Bytes { return Bytes(n) * s.ElementSize() }

// Policy returns the access policy.
func (s *Surface) Policy() AccessPolicy { return s.policy }

// HostAccess returns the host side of the access policy.
func (s *Surface) HostAccess() Access { return s.policy.Host }

// KernelAccess returns the kernel side of the access policy.
func (s *Surface) KernelAccess() Access { return s.policy.Kernel }

// Peer returns the backend handle of a device surface.
func (s *Surface) Peer() (PeerHandle, error) {
	if err := s.live("peer"); err != nil {
		return nil, err
	}
	return s.peer, nil
}

// HostBytes returns the memory of a host surface.
// It returns nil for device surfaces and released surfaces.
func (s *Surface) HostBytes() []byte {
	if s.kind != KindHost || s.released.Load() {
		return nil
	}
	return s.host
}

// Released reports whether Release has been called.
func (s *Surface) Released() bool { return s.released.Load() }

// Release frees the surface. It may be called once; later calls and any
// later transfer involving the surface return ErrUseAfterRelease.
// Observers are dropped.
func (s *Surface) Release() error {
	if s.released.Swap(true) {
		return fmt.Errorf("release surface %s: %w", s.label(), ErrUseAfterRelease)
	}
	var err error
	if s.release != nil {
		err = s.release(s.peer)
	}
	s.peer = nil
	s.host = nil
	s.notifier.clear()
	if err != nil {
		return fmt.Errorf("release surface %s: %w", s.label(), err)
	}
	return nil
}

// Subscribe registers an observer that is told after every mutating
// transfer targeting the surface. The returned function unsubscribes it.
func (s *Surface) Subscribe(o Observer) (unsubscribe func()) {
	id := s.notifier.add(o)
	return func() { s.notifier.remove(id) }
}

// Observers returns the number of registered observers.
func (s *Surface) Observers() int { return s.notifier.len() }

// String returns a human-readable description of the surface.
func (s *Surface) String() string {
	var sb strings.Builder
	sb.WriteString(s.label())
	fmt.Fprintf(&sb, "[%sx%d ", s.typ, s.channels)
	for i := 0; i < s.rank; i++ {
		if i > 0 {
			sb.WriteByte('x')
		}
		fmt.Fprintf(&sb, "%d", s.shape[i])
	}
	fmt.Fprintf(&sb, " %s", s.policy)
	if s.released.Load() {
		sb.WriteString(" released")
	}
	sb.WriteByte(']')
	return sb.String()
}

// label returns the kind and number of the surface, with its label when set.
func (s *Surface) label() string {
	if s == nil {
		return "<nil>"
	}
	if s.name != "" {
		return fmt.Sprintf("%s#%d(%s)", s.kind, s.id, s.name)
	}
	return fmt.Sprintf("%s#%d", s.kind, s.id)
}

// live fails with ErrUseAfterRelease when s has been released.
func (s *Surface) live(op string) error {
	if s == nil {
		return fmt.Errorf("%s: %w: nil surface", op, ErrInvalidShape)
	}
	if s.released.Load() {
		return fmt.Errorf("%s: surface %s: %w", op, s.label(), ErrUseAfterRelease)
	}
	return nil
}

// requireKind fails with ErrUnsupportedKind unless s has one of kinds.
func (s *Surface) requireKind(op string, kinds ...Kind) error {
	for _, k := range kinds {
		if s.kind == k {
			return nil
		}
	}
	return fmt.Errorf("%s: surface %s: %w", op, s.label(), ErrUnsupportedKind)
}

// rect returns the linear byte layout of the box at origin.
func (s *Surface) rect(origin Origin) ByteRect {
	es := s.ElementSize()
	row := Bytes(s.shape[0]) * es
	slice := row * Bytes(s.shape[1])
	return ByteRect{
		Offset:     Bytes(origin[0])*es + Bytes(origin[1])*row + Bytes(origin[2])*slice,
		RowPitch:   row,
		SlicePitch: slice,
	}
}

// extent returns the byte extent of region for this surface.
func (s *Surface) extent(region Region) ByteExtent {
	return ByteExtent{
		Row:    Bytes(region[0]) * s.ElementSize(),
		Rows:   region[1],
		Slices: region[2],
	}
}
