// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandler(t *testing.T) {
	var h slog.Handler = nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.Int("bytes", 64)}).(nopHandler); !ok {
		t.Error("WithAttrs() did not return a nopHandler")
	}
	if _, ok := h.WithGroup("transfer").(nopHandler); !ok {
		t.Error("WithGroup() did not return a nopHandler")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{"custom", slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})), true},
		{"nil restores silence", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogger(tt.logger)
			got := Logger()
			if got == nil {
				t.Fatal("Logger() = nil")
			}
			if tt.logger != nil && got != tt.logger {
				t.Error("Logger() did not return the logger passed to SetLogger")
			}
			if e := got.Enabled(context.Background(), slog.LevelDebug); e != tt.enabled {
				t.Errorf("Enabled(Debug) = %v, want %v", e, tt.enabled)
			}
		})
	}
}

func TestContextLogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	_, err := NewContext(&loggingBackend{}, WithMemoryBudget(1024), WithEngineOptions(WithLogger(l)))
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "context opened") || !strings.Contains(out, "backend=logging") {
		t.Errorf("log = %q, want context opened with backend name", out)
	}
}

// testQueue is a named queue for tests that never reach a backend.
type testQueue string

func (q testQueue) Name() string { return string(q) }

// loggingBackend records the logger handed to it.
type loggingBackend struct {
	Backend
	logger *slog.Logger
}

func (b *loggingBackend) SetLogger(l *slog.Logger) { b.logger = l }
func (b *loggingBackend) DefaultQueue() Queue      { return testQueue("default") }
func (b *loggingBackend) Name() string             { return "logging" }

func TestWithLoggerPropagatesToBackend(t *testing.T) {
	b := &loggingBackend{}
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	e := NewEngine(b, WithLogger(custom))

	if b.logger != custom {
		t.Error("WithLogger did not propagate to backend via loggerSetter")
	}
	if e.log != custom {
		t.Error("engine did not keep the WithLogger logger")
	}
}

func TestEngineUsesPackageLoggerByDefault(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)

	b := &loggingBackend{}
	e := NewEngine(b)

	if e.log != custom {
		t.Error("NewEngine did not pick up the package logger")
	}
	if b.logger != nil {
		t.Error("NewEngine without WithLogger should not touch the backend logger")
	}
}

func TestTimingLogsElapsed(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewEngine(&loggingBackend{}, WithLogger(l), WithTiming(true))

	e.trace("fill")()

	if !strings.Contains(buf.String(), "op=fill") || !strings.Contains(buf.String(), "elapsed=") {
		t.Errorf("timing output = %q, want op and elapsed attributes", buf.String())
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	const goroutines = 64

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l := Logger(); l == nil {
				t.Error("Logger() = nil during concurrent access")
			} else {
				l.Debug("devmem: concurrent read", "bytes", 64)
			}
		}()
	}
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}

	wg.Wait()
}

func BenchmarkDisabledTransferLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("devmem: fill", "surface", "Buffer#1", "bytes", int64(64), "blocking", true)
	}
}
