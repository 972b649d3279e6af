// Package hci keeps the 20x4 status panel current: one line per
// dispatch, so the refresh never hogs the scheduler.
package hci

import (
	"conductor/core/clock"
	"conductor/core/dcc"
	"conductor/core/district"
	"conductor/core/kernel"
)

// Service composes the panel from live station state.
type Service struct {
	grid *Grid
	rend *Renderer

	gen   *dcc.Generator
	drv   *dcc.Driver
	dists *district.Controller
	clk   *clock.Service

	// freeMemory reports the free heap for the M cell; host and target
	// differ, so the app injects it.
	freeMemory func() uint32

	refresh *kernel.Signal

	slot    uint8
	spinner bool
	scan    int

	lastPackets uint32
	lastSample  uint32
	pps         uint32
}

// New builds the panel service; the renderer attaches separately once a
// framebuffer exists.
func New(gen *dcc.Generator, drv *dcc.Driver, dists *district.Controller, clk *clock.Service, freeMemory func() uint32) *Service {
	return &Service{
		grid:       NewGrid(),
		gen:        gen,
		drv:        drv,
		dists:      dists,
		clk:        clk,
		freeMemory: freeMemory,
		refresh:    kernel.NewSignal(),
	}
}

// Grid exposes the character buffer.
func (s *Service) Grid() *Grid { return s.grid }

// Start registers the refresh task on the line cadence.
func (s *Service) Start(sch *kernel.Scheduler, lineRefreshMS uint16) bool {
	if !sch.AddTask(s, s.refresh, 0) {
		return false
	}
	if s.clk != nil {
		if _, ok := s.clk.Every(uint32(lineRefreshMS), s.refresh); !ok {
			return false
		}
	}
	return true
}

// Refresh is the signal driving the line updates; exposed for tests.
func (s *Service) Refresh() *kernel.Signal { return s.refresh }

// Process updates one display slot per dispatch: the four rows in turn,
// then one step of the buffer scan.
func (s *Service) Process(handle uint8) {
	_ = handle
	switch s.slot {
	case 0, 1, 2, 3:
		line := int(s.slot)
		s.updateStatus(line)
		s.updateDistrict(line)
		s.present(line)
	default:
		s.updateBufferScan()
	}
	s.slot++
	if s.slot > Rows {
		s.slot = 0
	}
}

func (s *Service) present(line int) {
	if s.rend != nil && s.grid.TakeDirty(line) {
		s.rend.drawLine(s.grid, line)
	}
}

func (s *Service) updateStatus(line int) {
	var buf [statusWidth]byte
	switch line {
	case 0:
		s.spinner = !s.spinner
		buf[0] = 'F'
		backfill(buf[1:3], uint32(s.gen.Ring().FreeCount()), false)
		buf[3] = 'P'
		buf[4] = '0'
		if _, on := s.dists.ProgrammingActive(); on {
			buf[4] = '1'
		}
	case 1:
		buf[0] = 'T'
		s.samplePackets()
		backfill(buf[1:], s.pps, false)
	case 2:
		buf[0] = 'M'
		f := uint32(0)
		if s.freeMemory != nil {
			f = s.freeMemory()
		}
		if f < 10000 {
			backfill(buf[1:], f, false)
		} else {
			backfill(buf[1:4], f>>10, false)
			buf[4] = 'K'
		}
	case 3:
		secs := s.clk.Now() / 1000
		m := (secs / 60) % 60
		h := secs / 3600
		sep := byte(':')
		if h > 0 {
			if s.spinner {
				sep = 'h'
			}
			backfill(buf[0:2], h, false)
			buf[2] = sep
			backfill(buf[3:5], m, true)
		} else {
			if s.spinner {
				sep = 'm'
			}
			backfill(buf[0:2], m, false)
			buf[2] = sep
			backfill(buf[3:5], secs%60, true)
		}
	}
	s.grid.Write(line, statusColumn, buf[:])
}

// fillDistrict renders one district into len bytes: the state symbol
// then the load average.
func (s *Service) fillDistrict(buf []byte, d int) {
	for i := range buf {
		buf[i] = ' '
	}
	if d >= s.dists.Count() {
		return
	}
	buf[0] = s.dists.StateOf(d).Symbol()
	backfill(buf[1:], uint32(s.dists.Load(d)), false)
}

func (s *Service) updateDistrict(line int) {
	var buf [districtWidth]byte
	if s.dists.Count() > Rows {
		// Two districts of three characters per row.
		s.fillDistrict(buf[:districtHalf], line)
		s.fillDistrict(buf[districtHalf:], line+Rows)
	} else {
		s.fillDistrict(buf[:], line)
	}
	s.grid.Write(line, districtColumn, buf[:])
}

// updateBufferScan advances the ring window one row per full refresh
// cycle.
func (s *Service) updateBufferScan() {
	row := s.scan % Rows
	idx := s.scan
	var buf [bufferWidth]byte
	for i := range buf {
		buf[i] = ' '
	}

	addr, action, repeats, ok := s.gen.Ring().Scan(idx)
	if ok {
		buf[0] = action.String()[0]
		backfill(buf[1:5], uint32(addr), false)
		backfill(buf[5:], uint32(repeats), false)
	}
	s.grid.Write(row, bufferColumn, buf[:])
	s.present(row)

	s.scan++
	if s.scan >= s.gen.Ring().ActiveCount() || s.scan >= 4*Rows {
		s.scan = 0
	}
}

// samplePackets derives packets-per-second from the driver counter.
func (s *Service) samplePackets() {
	now := s.clk.Now()
	total := s.drv.Packets()
	if s.lastSample == 0 {
		s.lastSample = now
		s.lastPackets = total
		return
	}
	dt := now - s.lastSample
	if dt < 1000 {
		return
	}
	s.pps = (total - s.lastPackets) * 1000 / dt
	s.lastSample = now
	s.lastPackets = total
}

// AttachDisplay connects the framebuffer renderer.
func (s *Service) AttachDisplay(r *Renderer) {
	s.rend = r
	if r != nil {
		r.clear()
		for line := 0; line < Rows; line++ {
			r.drawLine(s.grid, line)
		}
	}
}
