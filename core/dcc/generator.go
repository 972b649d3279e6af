package dcc

import (
	"conductor/core/constants"
	"conductor/core/errlog"
	"conductor/core/kernel"
)

// Generator is the station-facing DCC API: it validates operations,
// composes their packets, and places them on the ring with the right
// priority and repeat policy.
type Generator struct {
	ring   *Ring
	tuning *constants.Values

	fns map[uint16]*FunctionState
}

// NewGenerator binds the API to its ring and tuning block.
func NewGenerator(ring *Ring, tuning *constants.Values) *Generator {
	return &Generator{ring: ring, tuning: tuning, fns: make(map[uint16]*FunctionState)}
}

// Ring exposes the transmission ring for stats and the display scan.
func (g *Generator) Ring() *Ring { return g.ring }

func validMobileAddress(addr uint16) bool {
	return addr >= 1 && addr <= MaxLongAddress
}

// SetSpeed holds a mobile decoder at the given speed and direction. The
// buffer is persistent: later writes to the same address refresh it in
// place.
func (g *Generator) SetSpeed(addr uint16, speed uint8, forward bool) errlog.Code {
	if !validMobileAddress(addr) {
		return errlog.ErrInvalidAddress
	}
	if speed > MaxSpeed {
		return errlog.ErrInvalidSpeed
	}

	p := SpeedAndDirection(addr, speed, forward)
	if g.ring.Refresh(addr, ActionSpeed, p, RepeatContinuous) {
		return errlog.NoError
	}
	if g.ring.Submit(PriorityMobile, addr, ActionSpeed, p, RepeatContinuous, true, nil) == nil {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}

// EmergencyStop overrides a decoder's speed hold with the e-stop
// instruction.
func (g *Generator) EmergencyStop(addr uint16, forward bool) errlog.Code {
	if !validMobileAddress(addr) {
		return errlog.ErrInvalidAddress
	}
	p := EmergencyStop(addr, forward)
	if g.ring.Refresh(addr, ActionSpeed, p, RepeatContinuous) {
		return errlog.NoError
	}
	if g.ring.Submit(PriorityMobile, addr, ActionSpeed, p, RepeatContinuous, true, nil) == nil {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}

// ReleaseSpeed withdraws the persistent speed hold for an address; the
// driver drops the buffer at its next boundary.
func (g *Generator) ReleaseSpeed(addr uint16) {
	g.ring.crit.Enter()
	for i := range g.ring.pool {
		b := &g.ring.pool[i]
		if b.state == stateFree || !b.persistent || b.addr != addr || b.action != ActionSpeed {
			continue
		}
		b.repeats = 0
		b.persistent = false
		if b.state == statePending && !g.ring.onRingLocked(b) {
			// A parked buffer has no driver boundary to retire it.
			b.state = stateFree
			b.next = g.ring.free
			g.ring.free = b
		}
		break
	}
	g.ring.crit.Leave()
}

// SetFunction records the function state and emits the refreshed group.
func (g *Generator) SetFunction(addr uint16, fn uint8, on bool) errlog.Code {
	if !validMobileAddress(addr) {
		return errlog.ErrInvalidAddress
	}
	if fn > MaxFunction {
		return errlog.ErrInvalidFunction
	}

	fs := g.fns[addr]
	if fs == nil {
		fs = &FunctionState{}
		g.fns[addr] = fs
	}
	fs.Set(fn, on)

	p := Function(addr, fn, fs)
	if g.ring.Submit(PriorityMobile, addr, ActionFunction, p, g.tuning.TransientCommandRepeats, false, nil) == nil {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}

// FunctionIsSet reports the cached state of one function.
func (g *Generator) FunctionIsSet(addr uint16, fn uint8) bool {
	fs := g.fns[addr]
	return fs != nil && fs.Get(fn)
}

// SetAccessory switches a stationary decoder output.
func (g *Generator) SetAccessory(adr uint16, on bool) errlog.Code {
	if adr < 1 || adr > MaxAccessory {
		return errlog.ErrInvalidAddress
	}
	p := Accessory(adr, on)
	if g.ring.Submit(PriorityAccessory, adr, ActionAccessory, p, g.tuning.TransientCommandRepeats, false, nil) == nil {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}

func validCV(cv uint16) bool { return cv >= 1 && cv <= MaxCV }

// WriteCVByte queues the full service sequence for a byte write; done is
// raised when the trailing reset run completes.
func (g *Generator) WriteCVByte(cv uint16, value uint8, done *kernel.Signal) errlog.Code {
	if !validCV(cv) {
		return errlog.ErrInvalidCV
	}
	if !g.ring.SubmitService(WriteCV(cv, value), ActionWriteCV,
		g.tuning.ServiceModeResetRepeats, g.tuning.ServiceModeCommandRepeats, done) {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}

// VerifyCVByte queues the service sequence probing a byte value; the
// decoder answers with a current-draw confirmation pulse.
func (g *Generator) VerifyCVByte(cv uint16, value uint8, done *kernel.Signal) errlog.Code {
	if !validCV(cv) {
		return errlog.ErrInvalidCV
	}
	if !g.ring.SubmitService(VerifyCV(cv, value), ActionVerifyCV,
		g.tuning.ServiceModeResetRepeats, g.tuning.ServiceModeCommandRepeats, done) {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}

// VerifyCVBitValue queues the service sequence probing one CV bit; a
// district confirmation pulse during the run means the bit matches.
func (g *Generator) VerifyCVBitValue(cv uint16, bit uint8, value bool, done *kernel.Signal) errlog.Code {
	if !validCV(cv) {
		return errlog.ErrInvalidCV
	}
	if bit > 7 {
		return errlog.ErrInvalidBit
	}
	if !g.ring.SubmitService(VerifyCVBit(cv, bit, value), ActionVerifyCV,
		g.tuning.ServiceModeResetRepeats, g.tuning.ServiceModeCommandRepeats, done) {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}

// WriteCVChange converts a planned mask/value pair into wire commands:
// a full mask becomes one byte write, anything narrower one bit write
// per masked bit. done is raised as the final sequence completes.
func (g *Generator) WriteCVChange(cv uint16, mask, value uint8, done *kernel.Signal) errlog.Code {
	if mask == 0xFF {
		return g.WriteCVByte(cv, value, done)
	}
	last := uint8(0)
	for bit := uint8(0); bit < 8; bit++ {
		if mask&(1<<bit) != 0 {
			last = bit
		}
	}
	for bit := uint8(0); bit < 8; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		var sig *kernel.Signal
		if bit == last {
			sig = done
		}
		if code := g.WriteCVBit(cv, bit, value&(1<<bit) != 0, sig); code != errlog.NoError {
			return code
		}
	}
	return errlog.NoError
}

// WriteCVBit queues the service sequence for a single-bit write.
func (g *Generator) WriteCVBit(cv uint16, bit uint8, value bool, done *kernel.Signal) errlog.Code {
	if !validCV(cv) {
		return errlog.ErrInvalidCV
	}
	if bit > 7 {
		return errlog.ErrInvalidBit
	}
	if !g.ring.SubmitService(WriteCVBit(cv, bit, value), ActionWriteBit,
		g.tuning.ServiceModeResetRepeats, g.tuning.ServiceModeCommandRepeats, done) {
		return errlog.ErrTransmissionBusy
	}
	return errlog.NoError
}
