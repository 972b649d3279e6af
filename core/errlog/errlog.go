// Package errlog caches faults at the point of detection so they can be
// reported at a point of convenience.
package errlog

import "fmt"

const cacheSize = 4

type record struct {
	code    Code
	arg     uint16
	repeats uint8
}

// Log is a bounded, deduplicating fault cache.
//
// Logging the same code as the most recently logged entry bumps that
// entry's repeat counter instead of consuming a slot. When the cache is
// full the overrun is discarded and the newest slot is replaced by an
// ErrLogOverflow marker.
type Log struct {
	cache [cacheSize]record
	count uint8
	in    uint8
	out   uint8

	last Code

	halted   bool
	haltCode Code
	haltAt   string

	// OnTerminate, when set, is called once on the first terminal fault.
	OnTerminate func(code Code, at string)
}

// New creates an empty fault cache.
func New() *Log {
	return &Log{}
}

// Record logs a fault with supporting data.
func (l *Log) Record(code Code, arg uint16) {
	if l.count > 0 && l.last == code {
		prev := &l.cache[(l.in+cacheSize-1)%cacheSize]
		if prev.repeats < 0xFF {
			prev.repeats++
		}
		return
	}
	if l.count >= cacheSize {
		// Replace the newest slot with the overflow marker; the new
		// fault itself is lost.
		newest := &l.cache[(l.in+cacheSize-1)%cacheSize]
		if newest.code != ErrLogOverflow {
			*newest = record{code: ErrLogOverflow, arg: uint16(code), repeats: 1}
			l.last = ErrLogOverflow
		}
		return
	}
	l.cache[l.in] = record{code: code, arg: arg, repeats: 1}
	l.in = (l.in + 1) % cacheSize
	l.count++
	l.last = code
}

// Pending returns the number of cached faults.
func (l *Log) Pending() int { return int(l.count) }

// Peek returns the oldest cached fault without removing it.
func (l *Log) Peek() (code Code, arg uint16, repeats uint8, ok bool) {
	if l.count == 0 {
		return 0, 0, 0, false
	}
	r := &l.cache[l.out]
	return r.code, r.arg, r.repeats, true
}

// Drop discards the oldest cached fault after it has been consumed.
func (l *Log) Drop() {
	if l.count == 0 {
		return
	}
	l.out = (l.out + 1) % cacheSize
	l.count--
	if l.count == 0 {
		l.last = NoError
	}
}

// Terminate records a terminal fault and latches the halted state. The
// waveform driver keeps running; everything accepting new work should
// check Halted and refuse.
func (l *Log) Terminate(code Code, file string, line int) {
	at := fmt.Sprintf("%s:%d", file, line)
	l.Record(code, uint16(line))
	if l.halted {
		return
	}
	l.halted = true
	l.haltCode = code
	l.haltAt = at
	if l.OnTerminate != nil {
		l.OnTerminate(code, at)
	}
}

// Halted reports whether a terminal fault has been recorded.
func (l *Log) Halted() bool { return l.halted }

// HaltReason returns the first terminal fault and its origin.
func (l *Log) HaltReason() (Code, string) { return l.haltCode, l.haltAt }

// Assert terminates with ErrAssertFailed when cond is false.
func (l *Log) Assert(cond bool, file string, line int) {
	if !cond {
		l.Terminate(ErrAssertFailed, file, line)
	}
}
