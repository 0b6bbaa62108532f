// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package profiler writes CPU and heap profiles of the engine process.
package profiler

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"golang.org/x/sync/errgroup"
)

const (
	cpuProfileFile = "cpu.profile"
	memProfileFile = "mem.profile"

	dirPerms  = 0o750
	filePerms = 0o600
)

var (
	errCPUProfilerRunning    = errors.New("cpu profiler already running")
	errCPUProfilerNotRunning = errors.New("cpu profiler doesn't exist")
)

// Profiler is not safe for concurrent use.
type Profiler struct {
	dir        string
	cpuProfile *os.File
}

// New returns a Profiler that writes to dir.
func New(dir string) *Profiler {
	return &Profiler{dir: dir}
}

func (p *Profiler) StartCPUProfiler() error {
	if p.cpuProfile != nil {
		return errCPUProfilerRunning
	}
	file, err := p.create(cpuProfileFile)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(file); err != nil {
		return errors.Join(err, file.Close())
	}
	p.cpuProfile = file
	return nil
}

func (p *Profiler) StopCPUProfiler() error {
	if p.cpuProfile == nil {
		return errCPUProfilerNotRunning
	}

	pprof.StopCPUProfile()
	err := p.cpuProfile.Close()
	p.cpuProfile = nil
	return err
}

func (p *Profiler) MemoryProfile() error {
	file, err := p.create(memProfileFile)
	if err != nil {
		return err
	}

	runtime.GC()
	return errors.Join(pprof.WriteHeapProfile(file), file.Close())
}

// Stop ends CPU profiling and writes a heap profile.
func (p *Profiler) Stop() error {
	g := errgroup.Group{}
	g.Go(p.StopCPUProfiler)
	g.Go(p.MemoryProfile)
	return g.Wait()
}

func (p *Profiler) create(name string) (*os.File, error) {
	if err := os.MkdirAll(p.dir, dirPerms); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(p.dir, name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, filePerms)
}
