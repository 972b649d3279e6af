// Package clock keeps the millisecond time-of-day and delivers one-shot
// and periodic events by raising client Signals.
package clock

import (
	"conductor/core/kernel"
	"conductor/hal"
)

const maxEvents = 16

type event struct {
	inUse  bool
	due    uint32
	period uint32 // 0 for one-shot
	sig    *kernel.Signal
}

// Service advances time from the HAL tick stream and fires due events.
// One scheduler dispatch corresponds to one elapsed millisecond.
type Service struct {
	ht   hal.Time
	tick *kernel.Signal

	now    uint32
	events [maxEvents]event
}

// New creates the clock over a HAL tick source (nil for tests).
func New(ht hal.Time) *Service {
	return &Service{ht: ht, tick: kernel.NewSignal()}
}

// TickSignal is raised once per hardware millisecond tick.
func (s *Service) TickSignal() *kernel.Signal { return s.tick }

// Start registers the clock task and begins pumping hardware ticks into
// the tick signal.
func (s *Service) Start(sch *kernel.Scheduler) bool {
	if !sch.AddTask(s, s.tick, 0) {
		return false
	}
	if s.ht != nil {
		if ch := s.ht.Ticks(); ch != nil {
			go func() {
				for range ch {
					s.tick.Raise()
				}
			}()
		}
	}
	return true
}

// Process advances the time-of-day one millisecond and delivers whatever
// became due.
func (s *Service) Process(handle uint8) {
	_ = handle
	s.now++
	for i := range s.events {
		e := &s.events[i]
		if !e.inUse || int32(s.now-e.due) < 0 {
			continue
		}
		e.sig.Raise()
		if e.period == 0 {
			*e = event{}
		} else {
			e.due += e.period
		}
	}
}

// Now returns milliseconds since startup.
func (s *Service) Now() uint32 { return s.now }

// After arms a one-shot event ms milliseconds from now. It reports false
// when the event table is full.
func (s *Service) After(ms uint32, sig *kernel.Signal) bool {
	_, ok := s.arm(ms, 0, sig)
	return ok
}

// Every arms a periodic event and returns its slot for Cancel.
func (s *Service) Every(ms uint32, sig *kernel.Signal) (int, bool) {
	if ms == 0 {
		return 0, false
	}
	return s.arm(ms, ms, sig)
}

func (s *Service) arm(ms, period uint32, sig *kernel.Signal) (int, bool) {
	if sig == nil {
		return 0, false
	}
	for i := range s.events {
		if s.events[i].inUse {
			continue
		}
		s.events[i] = event{inUse: true, due: s.now + ms, period: period, sig: sig}
		return i, true
	}
	return 0, false
}

// Cancel disarms a periodic event.
func (s *Service) Cancel(slot int) {
	if slot >= 0 && slot < maxEvents {
		s.events[slot] = event{}
	}
}

// Pause burns tick signals until ms milliseconds have passed. Startup
// splash use only; steady-state code waits on Signals instead.
func (s *Service) Pause(ms uint32) {
	deadline := s.now + ms
	for int32(s.now-deadline) < 0 {
		if s.tick.Consume() {
			s.Process(0)
		}
	}
}
