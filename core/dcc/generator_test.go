package dcc

import (
	"testing"

	"conductor/core/constants"
	"conductor/core/errlog"
	"conductor/core/kernel"
)

func newGen() *Generator {
	v := constants.Defaults()
	return NewGenerator(NewRing(), &v)
}

func TestSetSpeedValidation(t *testing.T) {
	g := newGen()
	if g.SetSpeed(0, 5, true) != errlog.ErrInvalidAddress {
		t.Fatal("address zero must be rejected")
	}
	if g.SetSpeed(10240, 5, true) != errlog.ErrInvalidAddress {
		t.Fatal("address above the long range must be rejected")
	}
	if g.SetSpeed(3, MaxSpeed+1, true) != errlog.ErrInvalidSpeed {
		t.Fatal("over-range speed must be rejected")
	}
	if g.SetSpeed(3, 14, true) != errlog.NoError {
		t.Fatal("valid speed rejected")
	}
}

func TestSetSpeedRefreshesNotAllocates(t *testing.T) {
	g := newGen()
	g.SetSpeed(3, 5, true)
	g.SetSpeed(3, 14, true)
	g.SetSpeed(3, 7, false)
	if g.Ring().ActiveCount() != 1 {
		t.Fatalf("active = %d, speed writes to one address must share a buffer", g.Ring().ActiveCount())
	}

	g.SetSpeed(4, 5, true)
	if g.Ring().ActiveCount() != 2 {
		t.Fatal("distinct addresses need distinct holds")
	}
}

func TestFunctionStateCarriesAcrossEdits(t *testing.T) {
	g := newGen()
	if g.SetFunction(3, 0, true) != errlog.NoError {
		t.Fatal("F0 rejected")
	}
	if g.SetFunction(3, 2, true) != errlog.NoError {
		t.Fatal("F2 rejected")
	}
	if !g.FunctionIsSet(3, 0) || !g.FunctionIsSet(3, 2) || g.FunctionIsSet(3, 1) {
		t.Fatal("cached function state wrong")
	}
	if g.SetFunction(3, 29, true) != errlog.ErrInvalidFunction {
		t.Fatal("F29 must be rejected")
	}
}

func TestServiceWriteQueuesTriple(t *testing.T) {
	g := newGen()
	done := kernel.NewSignal()
	if g.WriteCVByte(29, 0x06, done) != errlog.NoError {
		t.Fatal("write rejected")
	}
	if g.Ring().ActiveCount() != 3 {
		t.Fatalf("active = %d, want the contiguous service triple", g.Ring().ActiveCount())
	}

	_, a0, r0, _ := g.Ring().Scan(0)
	_, a1, r1, _ := g.Ring().Scan(1)
	_, a2, r2, _ := g.Ring().Scan(2)
	if a0 != ActionReset || a1 != ActionWriteCV || a2 != ActionReset {
		t.Fatalf("order = %v %v %v", a0, a1, a2)
	}
	if r0 != 20 || r1 != 10 || r2 != 20 {
		t.Fatalf("repeats = %d %d %d, want 20 10 20", r0, r1, r2)
	}
}

func TestServiceValidation(t *testing.T) {
	g := newGen()
	if g.WriteCVByte(0, 1, nil) != errlog.ErrInvalidCV {
		t.Fatal("cv 0 must be rejected")
	}
	if g.WriteCVByte(1025, 1, nil) != errlog.ErrInvalidCV {
		t.Fatal("cv 1025 must be rejected")
	}
	if g.WriteCVBit(29, 8, true, nil) != errlog.ErrInvalidBit {
		t.Fatal("bit 8 must be rejected")
	}
}

func TestAccessoryRepeatsFromTuning(t *testing.T) {
	g := newGen()
	if g.SetAccessory(42, true) != errlog.NoError {
		t.Fatal("accessory rejected")
	}
	_, action, repeats, ok := g.Ring().Scan(0)
	if !ok || action != ActionAccessory || repeats != 8 {
		t.Fatalf("scan = (%v, %d, %v), want (accessory, 8)", action, repeats, ok)
	}
	if g.SetAccessory(0, true) != errlog.ErrInvalidAddress {
		t.Fatal("accessory address zero must be rejected")
	}
}

func TestEmergencyStopOverridesHold(t *testing.T) {
	g := newGen()
	g.SetSpeed(3, 14, true)
	if g.EmergencyStop(3, true) != errlog.NoError {
		t.Fatal("e-stop rejected")
	}
	if g.Ring().ActiveCount() != 1 {
		t.Fatal("e-stop must refresh the existing hold")
	}
}

func TestReleaseSpeedWithdraws(t *testing.T) {
	g := newGen()
	g.SetSpeed(3, 14, true)
	g.ReleaseSpeed(3)
	_, _, repeats, ok := g.Ring().Scan(0)
	if !ok || repeats != 0 {
		t.Fatalf("scan = (repeats=%d, ok=%v), want withdrawn buffer", repeats, ok)
	}
}

func TestVerifyCVByteQueues(t *testing.T) {
	g := newGen()
	done := kernel.NewSignal()
	if g.VerifyCVByte(8, 145, done) != errlog.NoError {
		t.Fatal("verify rejected")
	}
	if g.Ring().ActiveCount() != 3 {
		t.Fatal("verify must queue the service triple")
	}
}

func TestTransmissionBusySurfaces(t *testing.T) {
	g := newGen()
	for a := uint16(1); ; a++ {
		code := g.SetSpeed(a, 5, true)
		if code == errlog.ErrTransmissionBusy {
			break
		}
		if code != errlog.NoError {
			t.Fatalf("unexpected code %v", code)
		}
		if a > poolSize+1 {
			t.Fatal("pool never exhausted")
		}
	}
}
