// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu_test

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/devmem"
	"github.com/gogpu/devmem/backend"
	"github.com/gogpu/devmem/backend/wgpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"
)

// The CPU HAL stores every texel in four bytes and copies whole images,
// so image tests use 4-byte formats, full regions and 64-texel rows.

func openSoftware(t *testing.T) (*wgpu.Backend, *devmem.Context) {
	t.Helper()
	b, err := wgpu.OpenSoftware(wgpu.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSoftware() error = %v", err)
	}
	ctx, err := devmem.NewContext(b)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return b, ctx
}

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.WGPU) {
		t.Errorf("IsRegistered(%q) = false, want true", backend.WGPU)
	}
}

func TestTextureFormat(t *testing.T) {
	tests := []struct {
		typ      devmem.NativeType
		channels int64
		want     gputypes.TextureFormat
	}{
		{devmem.UInt8, 1, gputypes.TextureFormatR8Uint},
		{devmem.UInt8, 4, gputypes.TextureFormatRGBA8Uint},
		{devmem.Int16, 2, gputypes.TextureFormatRG16Sint},
		{devmem.Float16, 4, gputypes.TextureFormatRGBA16Float},
		{devmem.Float32, 1, gputypes.TextureFormatR32Float},
		{devmem.Int32, 2, gputypes.TextureFormatRG32Sint},
		{devmem.UInt32, 4, gputypes.TextureFormatRGBA32Uint},
	}
	for _, tt := range tests {
		got, err := wgpu.TextureFormat(tt.typ, tt.channels)
		if err != nil {
			t.Errorf("TextureFormat(%s, %d) error = %v", tt.typ, tt.channels, err)
			continue
		}
		if got != tt.want {
			t.Errorf("TextureFormat(%s, %d) = %v, want %v", tt.typ, tt.channels, got, tt.want)
		}
	}
}

func TestTextureFormatUnsupported(t *testing.T) {
	tests := []struct {
		typ      devmem.NativeType
		channels int64
	}{
		{devmem.Float64, 1},
		{devmem.Int64, 2},
		{devmem.Float32, 3},
	}
	for _, tt := range tests {
		if _, err := wgpu.TextureFormat(tt.typ, tt.channels); !errors.Is(err, wgpu.ErrUnsupportedFormat) {
			t.Errorf("TextureFormat(%s, %d) error = %v, want ErrUnsupportedFormat", tt.typ, tt.channels, err)
		}
	}
}

func TestCreateImageUnsupportedFormat(t *testing.T) {
	_, ctx := openSoftware(t)
	_, err := ctx.CreateImage(devmem.FullAccess, devmem.Float64, 1, 8, 8)
	if !errors.Is(err, wgpu.ErrUnsupportedFormat) {
		t.Errorf("CreateImage(Float64) error = %v, want ErrUnsupportedFormat", err)
	}
	if !errors.Is(err, devmem.ErrBackendFault) {
		t.Errorf("CreateImage(Float64) error = %v, want ErrBackendFault", err)
	}
	if got := ctx.Stats().UsedBytes; got != 0 {
		t.Errorf("UsedBytes after failed create = %d, want 0", got)
	}
}

func TestFillAndRead(t *testing.T) {
	_, ctx := openSoftware(t)
	buf, err := ctx.CreateBuffer(devmem.FullAccess, devmem.Int32, 1, 16)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	e := ctx.Engine()
	if err := e.FillAll(buf, []byte{0}, true); err != nil {
		t.Fatalf("FillAll(0) error = %v", err)
	}
	if err := e.Fill(buf, []byte{0xFF}, 4, 4, true); err != nil {
		t.Fatalf("Fill(0xFF) error = %v", err)
	}
	got := make([]int32, 16)
	if err := e.ReadAll(buf, devmem.HostSlice(got), true); err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	for i, v := range got {
		want := int32(0)
		if i >= 4 && i < 8 {
			want = -1
		}
		if v != want {
			t.Errorf("element %d = %d, want %d", i, v, want)
		}
	}
}

func TestWriteCopyRead(t *testing.T) {
	_, ctx := openSoftware(t)
	e := ctx.Engine()
	src, err := ctx.CreateBuffer(devmem.FullAccess, devmem.Float32, 1, 8)
	if err != nil {
		t.Fatal(err)
	}
	dst, err := ctx.CreateBuffer(devmem.FullAccess, devmem.Float32, 1, 8)
	if err != nil {
		t.Fatal(err)
	}
	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := e.WriteAll(src, devmem.HostSlice(in), true); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := e.CopyLinear(src, dst, 2, 0, 4, true); err != nil {
		t.Fatalf("CopyLinear() error = %v", err)
	}
	out := make([]float32, 8)
	if err := e.Read(dst, devmem.HostSlice(out), 0, 4, true); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []float32{3, 4, 5, 6, 0, 0, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestBufferRegions(t *testing.T) {
	_, ctx := openSoftware(t)
	e := ctx.Engine()
	buf, err := ctx.CreateBuffer(devmem.FullAccess, devmem.UInt16, 1, 6, 4)
	if err != nil {
		t.Fatal(err)
	}
	host, err := ctx.CreateHostSurface(devmem.UInt16, 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	v, err := devmem.View[uint16](host)
	if err != nil {
		t.Fatal(err)
	}
	copy(v, []uint16{10, 11, 12, 13})
	if err := e.WriteRegion(buf, host, devmem.OriginOf(), devmem.OriginOf(3, 1), devmem.RegionOf(2, 2), true); err != nil {
		t.Fatalf("WriteRegion() error = %v", err)
	}

	all := make([]uint16, 24)
	if err := e.ReadAll(buf, devmem.HostSlice(all), true); err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	cells := []struct {
		x, y int
		want uint16
	}{
		{3, 1, 10}, {4, 1, 11}, {3, 2, 12}, {4, 2, 13}, {0, 0, 0}, {5, 1, 0},
	}
	for _, c := range cells {
		if got := all[c.y*6+c.x]; got != c.want {
			t.Errorf("buf(%d,%d) = %d, want %d", c.x, c.y, got, c.want)
		}
	}

	back, err := ctx.CreateHostSurface(devmem.UInt16, 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.ReadRegion(buf, back, devmem.OriginOf(3, 1), devmem.OriginOf(), devmem.RegionOf(2, 2), true); err != nil {
		t.Fatalf("ReadRegion() error = %v", err)
	}
	got, _ := devmem.View[uint16](back)
	for i, want := range []uint16{10, 11, 12, 13} {
		if got[i] != want {
			t.Errorf("back[%d] = %d, want %d", i, got[i], want)
		}
	}
}

func TestImageRoundTrip(t *testing.T) {
	_, ctx := openSoftware(t)
	e := ctx.Engine()
	img, err := ctx.CreateImage(devmem.FullAccess, devmem.Float32, 1, 64, 2)
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	in := make([]float32, 128)
	for i := range in {
		in[i] = float32(i) * 0.5
	}
	if err := e.WriteAll(img, devmem.HostSlice(in), true); err != nil {
		t.Fatalf("WriteAll(image) error = %v", err)
	}
	out := make([]float32, 128)
	if err := e.ReadAll(img, devmem.HostSlice(out), true); err != nil {
		t.Fatalf("ReadAll(image) error = %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestBufferImageBufferCopy(t *testing.T) {
	_, ctx := openSoftware(t)
	e := ctx.Engine()
	src, err := ctx.CreateBuffer(devmem.FullAccess, devmem.UInt8, 4, 64, 2)
	if err != nil {
		t.Fatal(err)
	}
	img, err := ctx.CreateImage(devmem.FullAccess, devmem.UInt8, 4, 64, 2)
	if err != nil {
		t.Fatal(err)
	}
	dst, err := ctx.CreateBuffer(devmem.FullAccess, devmem.UInt8, 4, 64, 2)
	if err != nil {
		t.Fatal(err)
	}
	in := make([]byte, src.SizeInBytes())
	for i := range in {
		in[i] = byte(i * 7)
	}
	if err := e.WriteAll(src, devmem.HostBuffer(in), true); err != nil {
		t.Fatal(err)
	}
	if err := e.Copy(src, img, true); err != nil {
		t.Fatalf("Copy(buffer, image) error = %v", err)
	}
	if err := e.Copy(img, dst, true); err != nil {
		t.Fatalf("Copy(image, buffer) error = %v", err)
	}
	out := make([]byte, dst.SizeInBytes())
	if err := e.ReadAll(dst, devmem.HostBuffer(out), true); err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestNonBlockingReadCompletesOnFinish(t *testing.T) {
	_, ctx := openSoftware(t)
	e := ctx.Engine()
	buf, err := ctx.CreateBuffer(devmem.FullAccess, devmem.UInt32, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.WriteAll(buf, devmem.HostSlice([]uint32{9, 8, 7, 6}), true); err != nil {
		t.Fatal(err)
	}
	out := make([]uint32, 4)
	if err := e.ReadAll(buf, devmem.HostSlice(out), false); err != nil {
		t.Fatalf("ReadAll(non-blocking) error = %v", err)
	}
	q := e.Queue().(*wgpu.Queue)
	if got := q.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
	if out[0] != 0 {
		t.Errorf("out[0] before Finish = %d, want 0", out[0])
	}
	if err := e.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if got := q.Pending(); got != 0 {
		t.Errorf("Pending() after Finish = %d, want 0", got)
	}
	for i, want := range []uint32{9, 8, 7, 6} {
		if out[i] != want {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want)
		}
	}
}

func TestQueues(t *testing.T) {
	b, _ := openSoftware(t)
	if got := b.DefaultQueue().Name(); got != "wgpu/default" {
		t.Errorf("DefaultQueue().Name() = %q, want %q", got, "wgpu/default")
	}
	q, err := b.NewQueue("upload")
	if err != nil {
		t.Fatalf("NewQueue() error = %v", err)
	}
	if got := q.Name(); got != "wgpu/upload" {
		t.Errorf("Name() = %q, want %q", got, "wgpu/upload")
	}
	if err := b.Finish(q); err != nil {
		t.Errorf("Finish() error = %v", err)
	}
}

func TestReleaseAndForeignHandles(t *testing.T) {
	b, err := wgpu.OpenSoftware(wgpu.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	peer, err := b.CreateBuffer(devmem.BufferDescriptor{Label: "tmp", Size: 64, Policy: devmem.FullAccess})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Live(); got != 1 {
		t.Errorf("Live() = %d, want 1", got)
	}
	if err := b.Release(peer); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := b.Release(peer); !errors.Is(err, wgpu.ErrReleased) {
		t.Errorf("second Release() error = %v, want ErrReleased", err)
	}
	if got := b.Live(); got != 0 {
		t.Errorf("Live() after release = %d, want 0", got)
	}
	err = b.EnqueueFill(b.DefaultQueue(), peer, true, 0, 4, []byte{1})
	if !errors.Is(err, wgpu.ErrReleased) {
		t.Errorf("EnqueueFill(released) error = %v, want ErrReleased", err)
	}
	err = b.EnqueueFill(b.DefaultQueue(), "not a handle", true, 0, 4, []byte{1})
	if !errors.Is(err, wgpu.ErrForeignHandle) {
		t.Errorf("EnqueueFill(foreign) error = %v, want ErrForeignHandle", err)
	}
}

func TestOutOfBounds(t *testing.T) {
	b, err := wgpu.OpenSoftware(wgpu.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	peer, err := b.CreateBuffer(devmem.BufferDescriptor{Size: 16, Policy: devmem.FullAccess})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release(peer)

	host := make([]byte, 8)
	if err := b.EnqueueRead(b.DefaultQueue(), peer, true, 0, 16, host); !errors.Is(err, wgpu.ErrOutOfBounds) {
		t.Errorf("EnqueueRead(short host) error = %v, want ErrOutOfBounds", err)
	}
	if err := b.EnqueueCopy(b.DefaultQueue(), peer, peer, true, 8, 12, 8); !errors.Is(err, wgpu.ErrOutOfBounds) {
		t.Errorf("EnqueueCopy(past end) error = %v, want ErrOutOfBounds", err)
	}
	if err := b.EnqueueFill(b.DefaultQueue(), peer, true, math.MaxInt64, 1, []byte{1}); !errors.Is(err, wgpu.ErrOutOfBounds) {
		t.Errorf("EnqueueFill(overflowing offset) error = %v, want ErrOutOfBounds", err)
	}
	huge := devmem.ByteRect{Offset: math.MaxInt64 - 1}
	if err := b.EnqueueCopyRegion(b.DefaultQueue(), peer, peer, true, huge, devmem.ByteRect{}, devmem.ByteExtent{Row: 4, Rows: 1, Slices: 1}); !errors.Is(err, wgpu.ErrOutOfBounds) {
		t.Errorf("EnqueueCopyRegion(overflowing rect) error = %v, want ErrOutOfBounds", err)
	}
}

func TestClosed(t *testing.T) {
	b, err := wgpu.OpenSoftware(wgpu.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := b.CreateBuffer(devmem.BufferDescriptor{Size: 4}); !errors.Is(err, wgpu.ErrClosed) {
		t.Errorf("CreateBuffer() after Close error = %v, want ErrClosed", err)
	}
	if _, err := b.NewQueue("late"); !errors.Is(err, wgpu.ErrClosed) {
		t.Errorf("NewQueue() after Close error = %v, want ErrClosed", err)
	}
}

// appProvider hands out a device the way an application embedding the
// library would.
type appProvider struct {
	device gpucontext.Device
	queue  gpucontext.Queue
}

func (p *appProvider) Device() gpucontext.Device             { return p.device }
func (p *appProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *appProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *appProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (p *appProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "app", Type: gpucontext.AdapterTypeSoftware}
}

// openCPUDevice opens the CPU HAL the way an application would, outside
// the backend.
func openCPUDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	inst, err := software.API{}.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		t.Fatal("EnumerateAdapters() returned no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, adapters[0].Capabilities.Limits)
	if err != nil {
		inst.Destroy()
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		open.Device.Destroy()
		inst.Destroy()
	})
	return open.Device, open.Queue
}

func TestNewFromProvider(t *testing.T) {
	device, queue := openCPUDevice(t)
	b, err := wgpu.NewFromProvider(&appProvider{device: device, queue: queue}, wgpu.DefaultConfig())
	if err != nil {
		t.Fatalf("NewFromProvider() error = %v", err)
	}
	if b.Adapter() != "app" {
		t.Errorf("Adapter() = %q, want %q", b.Adapter(), "app")
	}
	if b.Device() != device {
		t.Error("Device() is not the provider's device")
	}

	ctx, err := devmem.NewContext(b)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	defer ctx.Close()
	buf, err := ctx.CreateBuffer(devmem.FullAccess, devmem.UInt16, 1, 8)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	defer buf.Release()
	in := []uint16{1, 2, 3, 4, 5, 6, 7, 8}
	if err := ctx.Engine().WriteAll(buf, devmem.HostSlice(in), true); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	out := make([]uint16, 8)
	if err := ctx.Engine().ReadAll(buf, devmem.HostSlice(out), true); err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestNewFromProviderForeignDevice(t *testing.T) {
	device, queue := openCPUDevice(t)
	tests := []struct {
		name string
		p    *appProvider
	}{
		{"device", &appProvider{device: "not a device", queue: queue}},
		{"queue", &appProvider{device: device, queue: struct{}{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := wgpu.NewFromProvider(tt.p, wgpu.DefaultConfig()); !errors.Is(err, wgpu.ErrForeignHandle) {
				t.Errorf("NewFromProvider() error = %v, want ErrForeignHandle", err)
			}
		})
	}
}
