package errlog

import "testing"

func TestTraceDisabledByDefault(t *testing.T) {
	var tr Trace
	tr.Push("a")
	if len(tr.Snapshot()) != 0 {
		t.Fatal("disabled trace recorded a breadcrumb")
	}
}

func TestTraceOrder(t *testing.T) {
	var tr Trace
	tr.Enable(true)
	tr.Push("a")
	tr.Push("b")
	tr.Push("c")
	got := tr.Snapshot()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestTraceWraps(t *testing.T) {
	var tr Trace
	tr.Enable(true)
	for _, s := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"} {
		tr.Push(s)
	}
	got := tr.Snapshot()
	if len(got) != 8 || got[0] != "3" || got[7] != "10" {
		t.Fatalf("snapshot = %v", got)
	}
}
