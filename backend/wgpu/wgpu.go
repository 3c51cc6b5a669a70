// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/devmem"
	"github.com/gogpu/devmem/backend"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"
)

// Backend errors.
var (
	// ErrClosed is returned when the backend is used after Close.
	ErrClosed = errors.New("wgpu: backend closed")

	// ErrNoAdapter is returned by Open when no linked HAL backend exposes
	// an adapter.
	ErrNoAdapter = errors.New("wgpu: no adapter")

	// ErrForeignHandle is returned for peer handles or queues that this
	// backend did not issue.
	ErrForeignHandle = errors.New("wgpu: foreign handle")

	// ErrReleased is returned when a released allocation is used.
	ErrReleased = errors.New("wgpu: allocation released")

	// ErrUnsupportedFormat is returned when an image layout has no
	// texture format.
	ErrUnsupportedFormat = errors.New("wgpu: unsupported image format")

	// ErrOutOfBounds is returned when a request exceeds an allocation or
	// the host memory passed with it.
	ErrOutOfBounds = errors.New("wgpu: out of bounds")
)

// nativeVariants is the order in which Open tries HAL backends.
var nativeVariants = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
}

func init() {
	backend.Register(backend.WGPU, func() (devmem.Backend, error) {
		b, err := Open(DefaultConfig())
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}

// Config holds the wgpu backend configuration.
type Config struct {
	// Label prefixes the debug labels of HAL objects.
	Label string

	// Timeout bounds every wait for a submission.
	Timeout time.Duration

	// Software allows Open to fall back to the CPU HAL when no native
	// backend has an adapter.
	Software bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Label:   "devmem",
		Timeout: 5 * time.Second,
	}
}

// Backend is a devmem.Backend on a HAL device.
// It is safe for concurrent use.
type Backend struct {
	cfg      Config
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // owned; nil when the device was supplied
	adapter  string
	log      atomic.Pointer[slog.Logger]

	mu     sync.Mutex
	queues []*Queue
	live   int
	closed bool
}

// New creates a backend on an existing device and queue. The caller keeps
// ownership of both.
func New(device hal.Device, queue hal.Queue, cfg Config) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, errors.New("wgpu: new: nil device or queue")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	b := &Backend{cfg: cfg, device: device, queue: queue}
	b.log.Store(devmem.Logger())
	b.queues = []*Queue{{name: "wgpu/default", owner: b}}
	return b, nil
}

// NewFromProvider creates a backend on the device of an application that
// implements gpucontext.DeviceProvider. The provider must hand out HAL
// devices and queues.
func NewFromProvider(p gpucontext.DeviceProvider, cfg Config) (*Backend, error) {
	device, ok := p.Device().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("wgpu: %w: provider device %T is not a hal.Device", ErrForeignHandle, p.Device())
	}
	queue, ok := p.Queue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("wgpu: %w: provider queue %T is not a hal.Queue", ErrForeignHandle, p.Queue())
	}
	b, err := New(device, queue, cfg)
	if err != nil {
		return nil, err
	}
	info := p.AdapterInfo()
	b.adapter = info.Name
	b.log.Load().Info("wgpu: using provider device", "adapter", info.Name, "type", info.Type.String())
	return b, nil
}

// Open opens the first adapter of the first native HAL backend linked into
// the program. With cfg.Software it falls back to the CPU HAL.
func Open(cfg Config) (*Backend, error) {
	var errs []error
	for _, v := range nativeVariants {
		api, ok := hal.GetBackend(v)
		if !ok {
			continue
		}
		b, err := openAPI(api, cfg)
		if err == nil {
			return b, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", v, err))
	}
	if cfg.Software {
		return openAPI(software.API{}, cfg)
	}
	return nil, errors.Join(append([]error{ErrNoAdapter}, errs...)...)
}

// OpenSoftware opens the CPU implementation of the HAL.
func OpenSoftware(cfg Config) (*Backend, error) {
	return openAPI(software.API{}, cfg)
}

func openAPI(api hal.Backend, cfg Config) (*Backend, error) {
	inst, err := api.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		return nil, ErrNoAdapter
	}
	a := adapters[0]
	open, err := a.Adapter.Open(0, a.Capabilities.Limits)
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("wgpu: open %s: %w", a.Info.Name, err)
	}
	b, err := New(open.Device, open.Queue, cfg)
	if err != nil {
		open.Device.Destroy()
		inst.Destroy()
		return nil, err
	}
	b.instance = inst
	b.adapter = a.Info.Name
	b.log.Load().Info("wgpu: opened adapter",
		"adapter", a.Info.Name,
		"vendor", a.Info.Vendor,
		"type", a.Info.DeviceType.String(),
		"backend", a.Info.Backend.String(),
		"driver", a.Info.Driver)
	return b, nil
}

// SetLogger sets the backend logger. Engines created WithLogger call it.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l != nil {
		b.log.Store(l)
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.WGPU }

// Adapter returns the adapter name, or "" when unknown.
func (b *Backend) Adapter() string { return b.adapter }

// Device returns the HAL device.
func (b *Backend) Device() hal.Device { return b.device }

// DefaultQueue returns the queue created with the backend.
func (b *Backend) DefaultQueue() devmem.Queue { return b.queues[0] }

// NewQueue creates an additional logical queue.
func (b *Backend) NewQueue(label string) (devmem.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if label == "" {
		label = fmt.Sprintf("queue-%d", len(b.queues))
	}
	q := &Queue{name: "wgpu/" + label, owner: b}
	b.queues = append(b.queues, q)
	return q, nil
}

// Live returns the number of allocations not yet released.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// Finish waits for every submission of q and completes its host reads.
func (b *Backend) Finish(q devmem.Queue) error {
	wq, err := b.resolveQueue(q)
	if err != nil {
		return err
	}
	return wq.drain()
}

// Close finishes every queue and destroys the device when the backend
// opened it.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	queues := append([]*Queue(nil), b.queues...)
	live := b.live
	b.mu.Unlock()

	var errs []error
	for _, q := range queues {
		if err := q.drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if live > 0 {
		b.log.Load().Warn("wgpu: closed with live allocations", "allocations", live)
	}
	if b.instance != nil {
		if err := b.device.WaitIdle(); err != nil {
			errs = append(errs, fmt.Errorf("wgpu: wait idle: %w", err))
		}
		b.device.Destroy()
		b.instance.Destroy()
	}
	return errors.Join(errs...)
}

func (b *Backend) resolveQueue(q devmem.Queue) (*Queue, error) {
	wq, ok := q.(*Queue)
	if !ok || wq.owner != b {
		return nil, fmt.Errorf("%w: queue %T", ErrForeignHandle, q)
	}
	return wq, nil
}

func (b *Backend) label(s string) string {
	if b.cfg.Label == "" {
		return s
	}
	return b.cfg.Label + "/" + s
}

// Queue is a logical queue of the wgpu backend.
type Queue struct {
	name  string
	owner *Backend

	mu       sync.Mutex
	inflight []*submission
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Pending returns the number of submissions not yet retired.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

func (q *Queue) track(s *submission) {
	q.mu.Lock()
	q.inflight = append(q.inflight, s)
	q.mu.Unlock()
}

// drain waits for every inflight submission and retires it in order.
func (q *Queue) drain() error {
	q.mu.Lock()
	batch := q.inflight
	q.inflight = nil
	q.mu.Unlock()

	var errs []error
	for _, s := range batch {
		if err := q.owner.retire(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ devmem.Backend = (*Backend)(nil)
