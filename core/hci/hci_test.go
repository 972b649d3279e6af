package hci

import (
	"strings"
	"testing"

	"conductor/core/clock"
	"conductor/core/constants"
	"conductor/core/dcc"
	"conductor/core/district"
	"conductor/core/errlog"
)

type nullTrack struct{}

func (nullTrack) Districts() int              { return 4 }
func (nullTrack) SetEnable(d int, on bool)    {}
func (nullTrack) SetBrake(d int, on bool)     {}
func (nullTrack) SetPolarity(d int, on bool)  {}
func (nullTrack) SetPhase(level bool)         {}

type fixture struct {
	s     *Service
	gen   *dcc.Generator
	clk   *clock.Service
	dists *district.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v := constants.Defaults()
	tuning := &v

	ring := dcc.NewRing()
	gen := dcc.NewGenerator(ring, tuning)
	drv := dcc.NewDriver(ring, nil)
	clk := clock.New(nil)
	dists := district.New(nullTrack{}, nil, clk, tuning, errlog.New())
	dists.Add("A", district.ZoneMain, 0)
	dists.Add("P", district.ZoneProgramming, 1)

	s := New(gen, drv, dists, clk, func() uint32 { return 2048 })
	return &fixture{s: s, gen: gen, clk: clk, dists: dists}
}

func (f *fixture) cycle() {
	for i := 0; i <= Rows; i++ {
		f.s.Process(0)
	}
}

func TestOneSlotPerDispatch(t *testing.T) {
	f := newFixture(t)
	f.s.Process(0)

	// Only the first row can have content after a single dispatch.
	for r := 1; r < Rows; r++ {
		if strings.TrimSpace(f.s.Grid().Line(r)) != "" {
			t.Fatalf("row %d updated on the first dispatch: %q", r, f.s.Grid().Line(r))
		}
	}
}

func TestStatusCells(t *testing.T) {
	f := newFixture(t)
	f.cycle()

	line0 := f.s.Grid().Line(0)
	if !strings.HasPrefix(line0, "F12P0") {
		t.Fatalf("line0 = %q, want free count 12 and zone 0", line0)
	}

	line2 := f.s.Grid().Line(2)
	if !strings.HasPrefix(line2, "M2048") {
		t.Fatalf("line2 = %q, want M2048", line2)
	}

	f.dists.Enable(1)
	f.cycle()
	if !strings.HasPrefix(f.s.Grid().Line(0), "F12P1") {
		t.Fatalf("line0 = %q, want programming zone lit", f.s.Grid().Line(0))
	}
}

func TestUptimeCell(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 65*1000; i++ {
		f.clk.Process(0)
	}
	f.cycle()
	got := f.s.Grid().Line(3)[:statusWidth]
	if got != " 1:05" && got != " 1m05" {
		t.Fatalf("uptime cell = %q", got)
	}
}

func TestDistrictColumn(t *testing.T) {
	f := newFixture(t)
	f.dists.Enable(0)
	f.cycle()

	cell := f.s.Grid().Line(0)[districtColumn : districtColumn+districtWidth]
	if cell[0] != '*' {
		t.Fatalf("district cell = %q, want on symbol", cell)
	}

	cell = f.s.Grid().Line(1)[districtColumn : districtColumn+districtWidth]
	if cell[0] != '.' {
		t.Fatalf("district cell = %q, want off symbol", cell)
	}
}

func TestBufferScan(t *testing.T) {
	f := newFixture(t)
	f.gen.SetSpeed(3, 9, true)
	f.cycle()

	cell := f.s.Grid().Line(0)[bufferColumn:]
	if cell[0] != 'S' || !strings.Contains(cell, "3") {
		t.Fatalf("buffer cell = %q, want speed entry for address 3", cell)
	}
}

func TestFreeCountTracksRing(t *testing.T) {
	f := newFixture(t)
	f.gen.SetAccessory(1, true)
	f.gen.SetAccessory(2, true)
	f.cycle()
	if !strings.HasPrefix(f.s.Grid().Line(0), "F10") {
		t.Fatalf("line0 = %q, want F10", f.s.Grid().Line(0))
	}
}

func TestBackfill(t *testing.T) {
	var b2 [2]byte
	if !backfill(b2[:], 42, false) || string(b2[:]) != "42" {
		t.Fatalf("backfill 42 = %q", b2)
	}
	if backfill(b2[:], 123, false) || string(b2[:]) != "##" {
		t.Fatalf("overflow backfill = %q", b2)
	}
	var b4 [4]byte
	backfill(b4[:], 7, true)
	if string(b4[:]) != "0007" {
		t.Fatalf("zero pad = %q", b4)
	}
	backfill(b4[:], 7, false)
	if string(b4[:]) != "   7" {
		t.Fatalf("space pad = %q", b4)
	}
}
