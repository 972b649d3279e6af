// Package adc multiplexes one-shot analogue conversions across callers,
// notifying each requester through its Signal when its reading lands.
package adc

import (
	"unsafe"

	"conductor/core/kernel"
	"conductor/hal"
)

const poolSize = 8

type request struct {
	pin    uint8
	result *uint16
	sig    *kernel.Signal
	next   *request
}

// Manager owns the conversion queue. Requests are served in order; the
// hardware runs at most one conversion at a time.
type Manager struct {
	hw hal.ADC

	crit kernel.Section

	head *request
	tail *request
	free *request

	// Hand-off slot between the completion pump and the task: single
	// producer, single consumer, guarded by crit.
	slot     hal.Sample
	slotFull bool

	irq  *kernel.Signal
	pool [poolSize]request

	released int
}

// New creates the manager over the conversion hardware (nil for tests
// that feed completions by hand).
func New(hw hal.ADC) *Manager {
	m := &Manager{hw: hw, irq: kernel.NewSignal()}
	for i := range m.pool {
		m.pool[i].next = m.free
		m.free = &m.pool[i]
	}
	return m
}

// Signal is raised once per completed conversion.
func (m *Manager) Signal() *kernel.Signal { return m.irq }

// Start registers the manager task and begins pumping hardware
// completions into the hand-off slot.
func (m *Manager) Start(sch *kernel.Scheduler) bool {
	if !sch.AddTask(m, m.irq, 0) {
		return false
	}
	if m.hw != nil {
		if ch := m.hw.Results(); ch != nil {
			go func() {
				for smp := range ch {
					m.Complete(smp)
				}
			}()
		}
	}
	return true
}

// Read queues a conversion of pin; on completion the value is stored at
// result and sig is raised. It reports false when the request pool is
// exhausted.
func (m *Manager) Read(pin uint8, sig *kernel.Signal, result *uint16) bool {
	if result == nil {
		return false
	}

	m.crit.Enter()
	r := m.free
	if r == nil {
		m.crit.Leave()
		return false
	}
	m.free = r.next
	*r = request{pin: pin, result: result, sig: sig}

	wasIdle := m.head == nil
	if wasIdle {
		m.head = r
	} else {
		m.tail.next = r
	}
	m.tail = r
	m.crit.Leave()

	if wasIdle && m.hw != nil {
		m.hw.Start(pin)
	}
	return true
}

// Complete delivers one hardware conversion result. Driver context.
func (m *Manager) Complete(smp hal.Sample) {
	m.crit.Enter()
	m.slot = smp
	m.slotFull = true
	m.crit.Leave()
	m.irq.Raise()
}

// Process drains the hand-off slot, finishes the head request, and kicks
// off the next queued conversion.
func (m *Manager) Process(handle uint8) {
	_ = handle

	m.crit.Enter()
	if !m.slotFull {
		m.crit.Leave()
		return
	}
	smp := m.slot
	m.slotFull = false

	r := m.head
	if r != nil {
		m.head = r.next
		if m.head == nil {
			m.tail = nil
		}
	}
	next := m.head
	m.crit.Leave()

	if r == nil {
		return
	}
	*r.result = smp.Value
	sig := r.sig

	m.crit.Enter()
	r.next = m.free
	m.free = r
	m.crit.Leave()

	if sig != nil {
		sig.Raise()
	}
	if next != nil && m.hw != nil {
		m.hw.Start(next.pin)
	}
}

// CachedBytes reports the memory held in the free-request pool.
func (m *Manager) CachedBytes() int {
	m.crit.Enter()
	defer m.crit.Leave()
	n := 0
	for r := m.free; r != nil; r = r.next {
		n++
	}
	return n * int(unsafe.Sizeof(request{}))
}

// Release gives up free-pool records until n bytes are covered. Records
// given up never return; the queue just runs shallower.
func (m *Manager) Release(n int) bool {
	recBytes := int(unsafe.Sizeof(request{}))
	m.crit.Enter()
	defer m.crit.Leave()
	for n > 0 && m.free != nil {
		m.free = m.free.next
		m.released++
		n -= recBytes
	}
	return n <= 0
}
