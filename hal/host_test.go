//go:build !tinygo

package hal

import (
	"path/filepath"
	"testing"
)

func TestHostFlashRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.eeprom")
	f := newHostFlash(path)
	if f.SizeBytes() == 0 {
		t.Fatal("flash not sized")
	}

	data := []byte{1, 2, 3, 4, 5}
	if _, err := f.WriteAt(data, 10); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, len(data))
	if _, err := f.ReadAt(got, 10); err != nil {
		t.Fatal(err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("read back %v, want %v", got, data)
		}
	}

	// A second instance sees the persisted bytes.
	f2 := newHostFlash(path)
	got2 := make([]byte, len(data))
	if _, err := f2.ReadAt(got2, 10); err != nil {
		t.Fatal(err)
	}
	if got2[0] != 1 || got2[4] != 5 {
		t.Fatalf("reopened flash lost data: %v", got2)
	}
}

func TestHostFlashBounds(t *testing.T) {
	f := newHostFlash(filepath.Join(t.TempDir(), "b.eeprom"))
	if _, err := f.ReadAt(make([]byte, 4), f.SizeBytes()); err == nil {
		t.Fatal("read past the end must fail")
	}
	if _, err := f.WriteAt(make([]byte, 4), f.SizeBytes()+1); err == nil {
		t.Fatal("write past the end must fail")
	}
}

func TestHostTrackSimulation(t *testing.T) {
	tr := newHostTrack(2)
	tr.SetLoad(0, 700)

	// Disabled district senses nothing.
	if !tr.Start(0) {
		t.Fatal("conversion rejected")
	}
	s := <-tr.Results()
	if s.Value != 0 {
		t.Fatalf("disabled district sensed %d", s.Value)
	}

	tr.SetEnable(0, true)
	tr.Start(0)
	s = <-tr.Results()
	if s.Value != 700 {
		t.Fatalf("sensed %d, want 700", s.Value)
	}
	if !tr.Enabled(0) || tr.Enabled(1) {
		t.Fatal("enable bookkeeping wrong")
	}
}
