package console

import (
	"strings"
	"testing"

	"conductor/core/adc"
	"conductor/core/clock"
	"conductor/core/constants"
	"conductor/core/dcc"
	"conductor/core/district"
	"conductor/core/errlog"
)

type fakeIO struct {
	out strings.Builder
}

func (f *fakeIO) Read(p []byte) (int, error)  { return 0, nil }
func (f *fakeIO) Write(p []byte) (int, error) { f.out.Write(p); return len(p), nil }

type nullTrack struct{}

func (nullTrack) Districts() int               { return 4 }
func (nullTrack) SetEnable(d int, on bool)     {}
func (nullTrack) SetBrake(d int, on bool)      {}
func (nullTrack) SetPolarity(d int, inv bool)  {}
func (nullTrack) SetPhase(level bool)          {}

type fixture struct {
	s      *Service
	io     *fakeIO
	gen    *dcc.Generator
	dists  *district.Controller
	store  *constants.Store
	faults *errlog.Log
	drv    *dcc.Driver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{io: &fakeIO{}}
	f.store = constants.NewStore(nil)
	f.store.Values().ServiceModeResetRepeats = 1
	f.store.Values().ServiceModeCommandRepeats = 1
	f.faults = errlog.New()

	ring := dcc.NewRing()
	f.gen = dcc.NewGenerator(ring, f.store.Values())
	f.drv = dcc.NewDriver(ring, nil)

	clk := clock.New(nil)
	conv := adc.New(nil)
	f.dists = district.New(nullTrack{}, conv, clk, f.store.Values(), f.faults)
	f.dists.Add("A", district.ZoneMain, 0)
	f.dists.Add("PROG", district.ZoneProgramming, 1)

	f.s = New(f.io, f.gen, f.dists, f.store, f.faults)
	return f
}

func (f *fixture) lastLine(t *testing.T) string {
	t.Helper()
	lines := strings.Split(strings.TrimRight(f.io.out.String(), "\n"), "\n")
	return lines[len(lines)-1]
}

// drain plays the waveform driver until the ring is idle again.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 1_000_000; i++ {
		if f.gen.Ring().ActiveCount() == 0 {
			// Run on to the buffer boundary so the final buffer retires.
			for j := 0; j < 4096; j++ {
				f.drv.Interrupt()
			}
			return
		}
		f.drv.Interrupt()
	}
	t.Fatal("ring never drained")
}

func TestSpeedCommand(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("S 3 14 1")
	if got := f.lastLine(t); got != "OK S 3 14 1" {
		t.Fatalf("reply = %q", got)
	}
	if f.gen.Ring().ActiveCount() != 1 {
		t.Fatal("speed hold not queued")
	}
}

func TestSpeedValidationReplies(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("S 0 5 1")
	if got := f.lastLine(t); got != "ERR 9" {
		t.Fatalf("reply = %q, want ERR 9", got)
	}
	f.s.Execute("S 3 99 1")
	if got := f.lastLine(t); got != "ERR 10" {
		t.Fatalf("reply = %q, want ERR 10", got)
	}
	f.s.Execute("S 3 5 x")
	if got := f.lastLine(t); got != "ERR 11" {
		t.Fatalf("reply = %q, want ERR 11", got)
	}
}

func TestUnrecognisedCommand(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("Q 1 2 3")
	if got := f.lastLine(t); got != "ERR 6" {
		t.Fatalf("reply = %q, want ERR 6", got)
	}
	code, _, _, ok := f.faults.Peek()
	if !ok || code != errlog.ErrUnrecognised {
		t.Fatal("unrecognised command not logged")
	}
}

func TestWriteCVNeedsProgrammingTrack(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("W 29 6")
	if got := f.lastLine(t); got != "ERR 23" {
		t.Fatalf("reply = %q, want ERR 23", got)
	}

	f.s.Execute("P PROG on")
	if got := f.lastLine(t); got != "OK P PROG on" {
		t.Fatalf("reply = %q", got)
	}

	f.s.Execute("W 29 6")
	if got := f.lastLine(t); got != "OK W 29 6" {
		t.Fatalf("reply = %q", got)
	}
	if f.gen.Ring().ActiveCount() != 3 {
		t.Fatalf("active = %d, want service triple", f.gen.Ring().ActiveCount())
	}
}

func TestPowerByIndexAndName(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("P 0 on")
	if f.dists.StateOf(0) != district.On {
		t.Fatal("district 0 not enabled")
	}
	f.s.Execute("P A off")
	if f.dists.StateOf(0) != district.Off {
		t.Fatal("district A not disabled")
	}
	f.s.Execute("P NOPE on")
	if got := f.lastLine(t); got != "ERR 8" {
		t.Fatalf("reply = %q, want ERR 8", got)
	}
}

func TestConstantListAndSet(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("C")
	if !strings.Contains(f.io.out.String(), "instant_current_limit 850") {
		t.Fatalf("listing missing defaults:\n%s", f.io.out.String())
	}

	// No flash behind the store: the save fails and the command reports it.
	f.s.Execute("C instant_current_limit 900")
	if got := f.lastLine(t); got != "ERR 2" {
		t.Fatalf("reply = %q, want ERR 2 without backing flash", got)
	}
	if f.store.Values().InstantCurrentLimit != 900 {
		t.Fatal("value must still be applied in memory")
	}

	f.s.Execute("C no_such 1")
	if got := f.lastLine(t); got != "ERR 8" {
		t.Fatalf("reply = %q, want ERR 8", got)
	}
}

func TestHaltedConsoleRefuses(t *testing.T) {
	f := newFixture(t)
	f.faults.Terminate(errlog.ErrAbort, "x.go", 1)
	f.s.Execute("S 3 5 1")
	if got := f.lastLine(t); got != "ERR 99" {
		t.Fatalf("reply = %q, want ERR 99", got)
	}
}

func TestVariableCommandPlansWrites(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("P PROG on")
	f.s.Execute("V long_address 2000")
	if got := f.lastLine(t); got != "OK V long_address 2000" {
		t.Fatalf("reply = %q", got)
	}
	// Four planned CVs: three byte writes and one bit write, each a
	// contiguous triple.
	if f.gen.Ring().ActiveCount() != 12 {
		t.Fatalf("active = %d, want 12", f.gen.Ring().ActiveCount())
	}
}

func TestReadCVTransaction(t *testing.T) {
	f := newFixture(t)
	f.s.Execute("P PROG on")

	f.s.Execute("R 29")
	if strings.Contains(f.lastLine(t), "ERR") {
		t.Fatalf("read rejected: %q", f.lastLine(t))
	}

	// Confirm bits 1 and 2: decoder acknowledges those verify runs.
	for bit := 0; bit < 8; bit++ {
		f.drain(t)
		if bit == 1 || bit == 2 {
			f.dists.Confirm().Raise()
		}
		f.s.Process(handleRead)
	}

	if got := f.lastLine(t); got != "OK R 29 6" {
		t.Fatalf("reply = %q, want OK R 29 6", got)
	}
}
