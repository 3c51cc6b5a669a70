// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command devmem-probe exercises a devmem backend: it uploads a gradient
// into a buffer, copies it through an image, reads it back and prints the
// memory accounting.
package main

import (
	"flag"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/devmem"
	"github.com/gogpu/devmem/backend"
	_ "github.com/gogpu/devmem/backend/software"
	_ "github.com/gogpu/devmem/backend/wgpu"
	"github.com/gogpu/devmem/hostimage"
	"github.com/gogpu/devmem/mirror"
)

func main() {
	var (
		name    = flag.String("backend", "", "backend name (default: best available)")
		width   = flag.Int("width", 64, "surface width")
		height  = flag.Int("height", 64, "surface height")
		budget  = flag.Int64("budget", 0, "device memory budget in bytes (0 = unlimited)")
		output  = flag.String("output", "", "write the read-back surface to this PNG file")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	devmem.SetLogger(logger)

	b, err := openBackend(*name)
	if err != nil {
		log.Fatalf("open backend: %v", err)
	}
	ctx, err := devmem.NewContext(b,
		devmem.WithMemoryBudget(devmem.Bytes(*budget)),
		devmem.WithEngineOptions(devmem.WithLogger(logger), devmem.WithTiming(*verbose)))
	if err != nil {
		log.Fatalf("new context: %v", err)
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	if err := run(ctx, *width, *height, *output); err != nil {
		log.Fatalf("probe: %v", err)
	}
	log.Printf("backend %s: %s", b.Name(), ctx.Stats())
}

func openBackend(name string) (devmem.Backend, error) {
	if name == "" {
		return backend.Default()
	}
	return backend.Open(name)
}

func run(ctx *devmem.Context, w, h int, output string) error {
	e := ctx.Engine()
	dims := []int64{int64(w), int64(h)}

	buf, err := ctx.CreateBuffer(devmem.FullAccess, devmem.Float32, 1, dims...)
	if err != nil {
		return err
	}
	defer buf.Release()
	img, err := ctx.CreateImage(devmem.FullAccess, devmem.Float32, 1, dims...)
	if err != nil {
		return err
	}
	defer img.Release()

	src, err := devmem.NewHostSurface(devmem.Float32, 1, dims...)
	if err != nil {
		return err
	}
	v, err := devmem.View[float32](src)
	if err != nil {
		return err
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v[y*w+x] = float32(x+y) / float32(w+h-2)
		}
	}

	m := mirror.New(e, 0)
	if err := m.Track(img); err != nil {
		return err
	}
	defer m.Clear()

	if err := e.Copy(src, buf, false); err != nil {
		return err
	}
	if err := e.Copy(buf, img, false); err != nil {
		return err
	}
	if err := e.Finish(); err != nil {
		return err
	}

	back, err := m.Get(img)
	if err != nil {
		return err
	}
	got, err := devmem.View[float32](back)
	if err != nil {
		return err
	}
	mismatches := 0
	for i := range v {
		if got[i] != v[i] {
			mismatches++
		}
	}
	log.Printf("round trip of %s: %d mismatches", img, mismatches)

	if output == "" {
		return nil
	}
	pic, err := hostimage.ToImage(back)
	if err != nil {
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, pic); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("saved %s (%dx%d)", output, w, h)
	return nil
}
