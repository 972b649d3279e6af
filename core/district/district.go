// Package district supervises the H-bridge power stages: overload and
// spike detection, phase correction, and load averaging per output.
package district

import (
	"conductor/core/adc"
	"conductor/core/clock"
	"conductor/core/constants"
	"conductor/core/errlog"
	"conductor/core/kernel"
	"conductor/hal"
)

// State of one district's power stage.
type State uint8

const (
	Off State = iota
	On
	Shorted
	Inverted
	Paused
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case On:
		return "on"
	case Shorted:
		return "shorted"
	case Inverted:
		return "inverted"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Symbol is the display glyph for a state.
func (s State) Symbol() byte {
	switch s {
	case Off:
		return '.'
	case On:
		return '*'
	case Shorted:
		return '!'
	case Inverted:
		return '~'
	case Paused:
		return 'p'
	default:
		return '?'
	}
}

// Zone partitions districts into the operating track and the programming
// track.
type Zone uint8

const (
	ZoneMain Zone = iota
	ZoneProgramming
)

// Consecutive faults (the first trip plus each failed phase test) after
// which a district parks itself in Paused and waits for the operator.
const maxPhaseAttempts = 3

const maxDistricts = 8

type district struct {
	name string
	zone Zone
	pin  uint8

	state    State
	sample   uint16
	avg      uint16
	inverted bool

	enabledAt   uint32
	resetAt     uint32
	phaseTestAt uint32
	attempts    uint8
}

// Controller advances every district's state machine from periodic ADC
// samples.
type Controller struct {
	track  hal.Track
	conv   *adc.Manager
	clk    *clock.Service
	tuning *constants.Values
	faults *errlog.Log

	ds    [maxDistricts]district
	count int

	sampleSig *kernel.Signal
	kickSig   *kernel.Signal
	confirm   *kernel.Signal

	reading  uint16
	cursor   int
	inFlight bool
}

// Handles distinguishing the controller's two scheduler registrations.
const (
	handleSample = 0
	handleKick   = 1
)

// New wires the controller to its collaborators.
func New(track hal.Track, conv *adc.Manager, clk *clock.Service, tuning *constants.Values, faults *errlog.Log) *Controller {
	return &Controller{
		track:     track,
		conv:      conv,
		clk:       clk,
		tuning:    tuning,
		faults:    faults,
		sampleSig: kernel.NewSignal(),
		kickSig:   kernel.NewSignal(),
		confirm:   kernel.NewSignal(),
	}
}

// Add registers a district over an ADC pin. It reports false when the
// table is full.
func (c *Controller) Add(name string, zone Zone, pin uint8) bool {
	if c.count >= maxDistricts {
		return false
	}
	c.ds[c.count] = district{name: name, zone: zone, pin: pin}
	c.count++
	return true
}

// Count returns the number of registered districts.
func (c *Controller) Count() int { return c.count }

// Name returns a district's configured name.
func (c *Controller) Name(i int) string {
	if i < 0 || i >= c.count {
		return ""
	}
	return c.ds[i].name
}

// StateOf returns a district's power state.
func (c *Controller) StateOf(i int) State {
	if i < 0 || i >= c.count {
		return Off
	}
	return c.ds[i].state
}

// ZoneOf returns a district's zone.
func (c *Controller) ZoneOf(i int) Zone {
	if i < 0 || i >= c.count {
		return ZoneMain
	}
	return c.ds[i].zone
}

// Load returns a district's moving-average load.
func (c *Controller) Load(i int) uint16 {
	if i < 0 || i >= c.count {
		return 0
	}
	return c.ds[i].avg
}

// Confirm is raised once per positive load delta of at least
// MINIMUM_DELTA_AMPS: the decoder acknowledgement pulse in service mode.
func (c *Controller) Confirm() *kernel.Signal { return c.confirm }

// ProgrammingActive reports the enabled programming-zone district.
func (c *Controller) ProgrammingActive() (int, bool) {
	for i := 0; i < c.count; i++ {
		d := &c.ds[i]
		if d.zone == ZoneProgramming && d.state != Off && d.state != Paused {
			return i, true
		}
	}
	return 0, false
}

// Start registers the controller's tasks and begins the sampling chain.
func (c *Controller) Start(sch *kernel.Scheduler) bool {
	if !sch.AddTask(c, c.sampleSig, handleSample) {
		return false
	}
	if !sch.AddTask(c, c.kickSig, handleKick) {
		return false
	}
	if c.clk != nil {
		if _, ok := c.clk.Every(uint32(c.tuning.PeriodicInterval), c.kickSig); !ok {
			return false
		}
	}
	c.kickSig.Raise()
	return true
}

// Enable energises a district. Only one programming-zone district may be
// on at a time.
func (c *Controller) Enable(i int) errlog.Code {
	if i < 0 || i >= c.count {
		return errlog.ErrInvalidArgument
	}
	d := &c.ds[i]
	if d.zone == ZoneProgramming {
		if j, on := c.ProgrammingActive(); on && j != i {
			return errlog.ErrPowerNotOff
		}
	}
	d.state = On
	d.avg = 0
	d.attempts = 0
	d.enabledAt = c.now()
	c.track.SetBrake(i, false)
	c.track.SetEnable(i, true)
	return errlog.NoError
}

// Disable de-energises a district from any state.
func (c *Controller) Disable(i int) errlog.Code {
	if i < 0 || i >= c.count {
		return errlog.ErrInvalidArgument
	}
	d := &c.ds[i]
	d.state = Off
	c.track.SetEnable(i, false)
	c.track.SetBrake(i, true)
	return errlog.NoError
}

func (c *Controller) now() uint32 {
	if c.clk == nil {
		return 0
	}
	return c.clk.Now()
}

// Process handles both registrations: sample completions advance the
// active district's state machine; the periodic kick restarts a stalled
// sampling chain.
func (c *Controller) Process(handle uint8) {
	switch handle {
	case handleSample:
		c.inFlight = false
		i := c.cursor
		c.cursor = (c.cursor + 1) % max(c.count, 1)
		if i < c.count {
			c.step(i, c.reading)
		}
		c.requestNext()
	case handleKick:
		if !c.inFlight {
			c.requestNext()
		}
	}
}

func (c *Controller) requestNext() {
	if c.count == 0 || c.conv == nil {
		return
	}
	if c.conv.Read(c.ds[c.cursor].pin, c.sampleSig, &c.reading) {
		c.inFlight = true
	}
}

// trip cuts power after a fault and schedules the recovery attempt.
func (c *Controller) trip(i int, code errlog.Code) {
	d := &c.ds[i]
	d.state = Shorted
	d.attempts++
	d.resetAt = c.now() + uint32(c.tuning.DriverResetPeriod)
	c.track.SetEnable(i, false)
	c.track.SetBrake(i, true)
	c.faults.Record(code, uint16(i))
}

// step is the per-sample state machine.
func (c *Controller) step(i int, sample uint16) {
	d := &c.ds[i]
	d.sample = sample
	now := c.now()

	switch d.state {
	case On:
		old := d.avg
		d.avg = fold(d.avg, sample)

		if delta := int32(sample) - int32(old); delta >= int32(c.tuning.MinimumDeltaAmps) {
			c.confirm.Raise()
		}

		if now-d.enabledAt < uint32(c.tuning.PowerGracePeriod) {
			return
		}
		if sample >= c.tuning.InstantCurrentLimit {
			c.trip(i, errlog.ErrPowerSpike)
			return
		}
		if d.avg >= c.tuning.AverageCurrentLimit {
			c.trip(i, errlog.ErrPowerOverload)
		}

	case Shorted:
		if int32(now-d.resetAt) < 0 {
			return
		}
		if d.attempts >= maxPhaseAttempts {
			d.state = Paused
			return
		}
		// Try the opposite phase: flip, re-energise, and watch the
		// current for the test window.
		d.inverted = !d.inverted
		c.track.SetPolarity(i, d.inverted)
		c.track.SetBrake(i, false)
		c.track.SetEnable(i, true)
		d.state = Inverted
		d.phaseTestAt = now + uint32(c.tuning.DriverPhasePeriod)

	case Inverted:
		if sample >= c.tuning.InstantCurrentLimit {
			c.trip(i, errlog.ErrPowerSpike)
			return
		}
		if int32(now-d.phaseTestAt) >= 0 {
			d.state = On
			d.attempts = 0
			d.enabledAt = now
		}

	case Off, Paused:
		// Power is off; nothing to supervise.
	}
}

// fold is the single-pole moving average: one eighth of each new sample.
func fold(avg, sample uint16) uint16 {
	return uint16(int32(avg) + (int32(sample)-int32(avg))/8)
}
