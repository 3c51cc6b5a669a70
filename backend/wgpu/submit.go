// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/devmem"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const pollInterval = 50 * time.Microsecond

// submission is one command buffer in flight on a logical queue.
type submission struct {
	index   uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer

	// staging buffers are destroyed when the submission retires.
	staging []hal.Buffer

	// readback, when set, is mapped after completion and handed to deliver.
	readback hal.Buffer
	size     uint64
	deliver  func(mapped []byte)
}

// stage creates a staging buffer owned by s.
func (b *Backend) stage(s *submission, op string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	b.mu.Lock()
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label(op + " staging"),
		Size:  size,
		Usage: usage,
	})
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("wgpu: %s: staging buffer: %w", op, err)
	}
	s.staging = append(s.staging, buf)
	return buf, nil
}

// readbackInto makes s deliver size bytes of a new mappable buffer.
func (b *Backend) readbackInto(s *submission, op string, size uint64, deliver func([]byte)) (hal.Buffer, error) {
	buf, err := b.stage(s, op, size, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	s.readback, s.size, s.deliver = buf, size, deliver
	return buf, nil
}

// discard destroys the staging buffers of a submission that was never
// submitted.
func (b *Backend) discard(s *submission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, buf := range s.staging {
		b.device.DestroyBuffer(buf)
	}
	s.staging = nil
}

// submit records s on a new encoder and submits it. Blocking submissions
// drain the queue before returning.
func (b *Backend) submit(q devmem.Queue, blocking bool, op string, s *submission, record func(enc hal.CommandEncoder)) error {
	wq, err := b.resolveQueue(q)
	if err != nil {
		b.discard(s)
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.discard(s)
		return ErrClosed
	}
	err = b.encodeAndSubmit(op, s, record)
	b.mu.Unlock()
	if err != nil {
		b.discard(s)
		return err
	}

	wq.track(s)
	if blocking {
		return wq.drain()
	}
	return nil
}

// encodeAndSubmit must be called with b.mu held.
func (b *Backend) encodeAndSubmit(op string, s *submission, record func(enc hal.CommandEncoder)) error {
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: b.label(op)})
	if err != nil {
		return fmt.Errorf("wgpu: %s: create encoder: %w", op, err)
	}
	if err := enc.BeginEncoding(b.label(op)); err != nil {
		enc.Destroy()
		return fmt.Errorf("wgpu: %s: begin encoding: %w", op, err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.DiscardEncoding()
		enc.Destroy()
		return fmt.Errorf("wgpu: %s: end encoding: %w", op, err)
	}
	index, err := b.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		b.device.FreeCommandBuffer(cmd)
		enc.Destroy()
		return fmt.Errorf("wgpu: %s: submit: %w", op, err)
	}
	s.index, s.encoder, s.cmd = index, enc, cmd
	return nil
}

// immediate runs a queue write. Writes are ordered with submissions of
// every logical queue; blocking writes also drain q.
func (b *Backend) immediate(q devmem.Queue, blocking bool, op string, write func(hal.Queue) error) error {
	wq, err := b.resolveQueue(q)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	err = write(b.queue)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("wgpu: %s: %w", op, err)
	}
	if blocking {
		return wq.drain()
	}
	return nil
}

// retire waits for s, delivers its readback and frees its resources.
func (b *Backend) retire(s *submission) error {
	if err := b.wait(s.index); err != nil {
		return err
	}
	var err error
	if s.readback != nil {
		err = b.deliverReadback(s)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s.encoder != nil {
		s.encoder.ResetAll([]hal.CommandBuffer{s.cmd})
		b.device.FreeCommandBuffer(s.cmd)
		s.encoder.Destroy()
		s.encoder, s.cmd = nil, nil
	}
	for _, buf := range s.staging {
		b.device.DestroyBuffer(buf)
	}
	s.staging = nil
	return err
}

func (b *Backend) wait(index uint64) error {
	if b.queue.PollCompleted() >= index {
		return nil
	}
	deadline := time.Now().Add(b.cfg.Timeout)
	for b.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("wgpu: submission %d after %s: %w", index, b.cfg.Timeout, hal.ErrTimeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

func (b *Backend) deliverReadback(s *submission) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.device.MapBuffer(s.readback, 0, s.size)
	if err != nil {
		return fmt.Errorf("wgpu: map readback: %w", err)
	}
	s.deliver(unsafe.Slice((*byte)(m.Ptr), s.size))
	if err := b.device.UnmapBuffer(s.readback); err != nil {
		return fmt.Errorf("wgpu: unmap readback: %w", err)
	}
	return nil
}
