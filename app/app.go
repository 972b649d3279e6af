// Package app assembles the station: every singleton lives here and is
// handed to components by reference, which keeps the tests hermetic.
package app

import (
	"fmt"
	"runtime"

	"conductor/core/adc"
	"conductor/core/clock"
	"conductor/core/console"
	"conductor/core/constants"
	"conductor/core/dcc"
	"conductor/core/district"
	"conductor/core/errlog"
	"conductor/core/hci"
	"conductor/core/kernel"
	"conductor/hal"
	"conductor/internal/config"
)

// stepBudget bounds the scheduler passes made per host frame.
const stepBudget = 64

// Station owns the firmware singletons.
type Station struct {
	h   hal.HAL
	sch *kernel.Scheduler

	store  *constants.Store
	faults *errlog.Log
	clk    *clock.Service
	conv   *adc.Manager
	ring   *dcc.Ring
	gen    *dcc.Generator
	drv    *dcc.Driver
	dists  *district.Controller
	cons   *console.Service
	panel  *hci.Service

	reporter *faultReporter
}

// New builds and starts the station, returning the per-frame step hook.
func New(h hal.HAL, cfg *config.Config) (func() error, error) {
	s, err := build(h, cfg)
	if err != nil {
		return nil, err
	}
	return s.step, nil
}

func build(h hal.HAL, cfg *config.Config) (*Station, error) {
	s := &Station{h: h, sch: kernel.New()}

	// Constants first: everything else tunes itself from the block.
	s.store = constants.NewStore(h.Flash())
	if !s.store.Load() {
		h.Logger().WriteLineString("constants: checksum reset to defaults")
	}

	s.faults = errlog.New()
	s.faults.OnTerminate = func(code errlog.Code, at string) {
		h.Logger().WriteLineString("TERMINAL " + code.String() + " at " + at)
	}

	s.clk = clock.New(h.Time())
	s.conv = adc.New(h.ADC())

	s.ring = dcc.NewRing()
	s.gen = dcc.NewGenerator(s.ring, s.store.Values())
	s.drv = dcc.NewDriver(s.ring, h.Track())

	s.dists = district.New(h.Track(), s.conv, s.clk, s.store.Values(), s.faults)
	for _, d := range cfg.Districts {
		zone := district.ZoneMain
		if d.Zone == "programming" {
			zone = district.ZoneProgramming
		}
		if !s.dists.Add(d.Name, zone, d.Pin) {
			return nil, fmt.Errorf("district table full at %q", d.Name)
		}
	}

	s.cons = console.New(h.Console(), s.gen, s.dists, s.store, s.faults)
	s.panel = hci.New(s.gen, s.drv, s.dists, s.clk, freeMemory)
	s.reporter = &faultReporter{faults: s.faults, logger: h.Logger()}

	// Registration order is dispatch order: timebase, conversions,
	// districts, console, the display, then the fault reporter.
	if !s.clk.Start(s.sch) ||
		!s.conv.Start(s.sch) ||
		!s.dists.Start(s.sch) ||
		!s.cons.Start(s.sch) ||
		!s.panel.Start(s.sch, s.store.Values().LineRefreshInterval) ||
		!s.reporter.start(s.sch, s.clk, s.store.Values().PeriodicInterval) {
		return nil, fmt.Errorf("scheduler table full")
	}

	if disp := h.Display(); disp != nil {
		s.panel.AttachDisplay(hci.NewRenderer(disp.Framebuffer()))
	}

	// The waveform starts last so the ring is never observed half-built.
	s.drv.Start(h.Wave())

	return s, nil
}

// step runs a bounded burst of scheduler passes. Called once per host
// frame; on hardware the run loop calls it forever.
func (s *Station) step() error {
	for i := 0; i < stepBudget; i++ {
		if !s.sch.RunOnce() {
			break
		}
	}
	return nil
}

// freeMemory feeds the panel's M cell.
func freeMemory() uint32 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	free := m.HeapSys - m.HeapAlloc
	if free > 0xFFFFFFFF {
		free = 0xFFFFFFFF
	}
	return uint32(free)
}

// faultReporter drains the error cache to the log on the periodic tick.
type faultReporter struct {
	faults *errlog.Log
	logger hal.Logger
	sig    *kernel.Signal
}

func (r *faultReporter) start(sch *kernel.Scheduler, clk *clock.Service, intervalMS uint16) bool {
	r.sig = kernel.NewSignal()
	if !sch.AddTask(r, r.sig, 0) {
		return false
	}
	_, ok := clk.Every(uint32(intervalMS), r.sig)
	return ok
}

func (r *faultReporter) Process(handle uint8) {
	_ = handle
	for {
		code, arg, repeats, ok := r.faults.Peek()
		if !ok {
			return
		}
		r.logger.WriteLineString(fmt.Sprintf("fault %d (%s) arg=%d x%d", uint16(code), code, arg, repeats))
		r.faults.Drop()
	}
}
