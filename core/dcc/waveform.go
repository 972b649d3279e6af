package dcc

import (
	"sync/atomic"

	"conductor/core/kernel"
	"conductor/hal"
)

// Driver turns the active ring into the track waveform. Interrupt is the
// compare-match service routine: it runs in driver context, never
// allocates, and never calls task code; completion and refill interest
// surface as Signals.
type Driver struct {
	ring  *Ring
	track hal.Track

	cur   *Buffer
	pos   int
	phase bool

	// Pre-encoded idle stream used whenever the ring is empty.
	idle    Bitstream
	onIdle  bool
	packets atomic.Uint32

	refill *kernel.Signal
}

// NewDriver builds the driver and its static idle stream.
func NewDriver(ring *Ring, track hal.Track) *Driver {
	d := &Driver{ring: ring, track: track, refill: kernel.NewSignal()}
	idle := Idle()
	if !Encode(idle.Bytes(), false, &d.idle) {
		// The idle packet always fits; an encode failure here is a
		// build defect, not a runtime condition.
		panic("dcc: idle packet does not encode")
	}
	// Nothing is in flight yet: the first interrupt selects a stream.
	d.pos = d.idle.Len()
	return d
}

// Refill is raised each time the driver falls back to the idle stream.
func (d *Driver) Refill() *kernel.Signal { return d.refill }

// Packets returns the number of complete packet transmissions.
func (d *Driver) Packets() uint32 { return d.packets.Load() }

// Start hooks the driver onto the half-cycle timer.
func (d *Driver) Start(w hal.Wave) {
	if w != nil {
		w.Start(d.Interrupt)
	}
}

func (d *Driver) stream() *Bitstream {
	if d.cur != nil {
		return &d.cur.bits
	}
	return &d.idle
}

// Interrupt emits one half-cycle: it flips the track phase and returns
// the duration to the next compare match in microseconds.
func (d *Driver) Interrupt() uint32 {
	if d.pos >= d.stream().Len() {
		d.advance()
	}

	dur := d.stream().At(d.pos)
	d.pos++
	if d.pos >= d.stream().Len() {
		d.packets.Add(1)
	}

	d.phase = !d.phase
	if d.track != nil {
		d.track.SetPhase(d.phase)
	}
	return uint32(dur)
}

// advance retires the finished transmission and selects the next buffer,
// falling back to the synthesised idle stream on an empty ring.
func (d *Driver) advance() {
	d.ring.crit.Enter()
	if d.cur != nil {
		d.ring.finishLocked(d.cur)
		d.cur = nil
	}
	d.cur = d.ring.takeLocked()
	d.ring.crit.Leave()

	d.pos = 0
	if d.cur == nil {
		if !d.onIdle {
			d.refill.Raise()
		}
		d.onIdle = true
		return
	}
	d.onIdle = false
}
