package dcc

import "conductor/core/kernel"

// Priority classes a transmission buffer through the display and stats.
type Priority uint8

const (
	PriorityIdle Priority = iota
	PriorityMobile
	PriorityAccessory
	PriorityServiceReset
	PriorityServiceCommand
	PriorityTransient
)

func (p Priority) String() string {
	switch p {
	case PriorityIdle:
		return "idle"
	case PriorityMobile:
		return "mobile"
	case PriorityAccessory:
		return "accessory"
	case PriorityServiceReset:
		return "svc_reset"
	case PriorityServiceCommand:
		return "svc_command"
	case PriorityTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Action tags what a buffer is doing, for the display scan and for the
// persistent-buffer refresh key.
type Action uint8

const (
	ActionNone Action = iota
	ActionSpeed
	ActionFunction
	ActionAccessory
	ActionWriteCV
	ActionVerifyCV
	ActionWriteBit
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "-"
	case ActionSpeed:
		return "S"
	case ActionFunction:
		return "F"
	case ActionAccessory:
		return "A"
	case ActionWriteCV:
		return "W"
	case ActionVerifyCV:
		return "R"
	case ActionWriteBit:
		return "B"
	case ActionReset:
		return "Z"
	default:
		return "?"
	}
}

type bufferState uint8

const (
	stateFree bufferState = iota
	statePending
	stateTransmitting
)

// RepeatContinuous marks a buffer that retransmits until withdrawn or
// refreshed; the driver never decrements it.
const RepeatContinuous = 0xFF

// Buffer is one transmission slot: a composed packet, its encoded
// bit-stream, and its ring bookkeeping.
type Buffer struct {
	payload [MaxPacketBytes]byte
	plen    uint8
	bits    Bitstream

	repeats    uint8
	prio       Priority
	addr       uint16
	action     Action
	done       *kernel.Signal
	persistent bool

	// Staged replacement applied at the next transmission boundary, so
	// an in-flight packet is never torn.
	staged    Bitstream
	stagedPay [MaxPacketBytes]byte
	stagedLen uint8
	hasStaged bool

	state bufferState
	next  *Buffer
}

// Payload returns the composed packet bytes.
func (b *Buffer) Payload() []byte { return b.payload[:b.plen] }

// Address returns the buffer's target address.
func (b *Buffer) Address() uint16 { return b.addr }

// ActionTag returns the buffer's semantic tag.
func (b *Buffer) ActionTag() Action { return b.action }

// Repeats returns the remaining repeat count.
func (b *Buffer) Repeats() uint8 { return b.repeats }

const poolSize = 12

// Ring owns every transmission buffer: a free list plus the active list
// the waveform driver walks. All list mutation happens inside the shared
// critical section.
type Ring struct {
	crit kernel.Section

	pool [poolSize]Buffer
	free *Buffer
	head *Buffer
	tail *Buffer

	completed *kernel.Signal
}

// NewRing creates the ring with every buffer free.
func NewRing() *Ring {
	r := &Ring{completed: kernel.NewSignal()}
	for i := range r.pool {
		r.pool[i].next = r.free
		r.free = &r.pool[i]
	}
	return r
}

// Completed is raised by the driver each time a buffer finishes its last
// repeat.
func (r *Ring) Completed() *kernel.Signal { return r.completed }

// FreeCount returns the number of unallocated buffers.
func (r *Ring) FreeCount() int {
	r.crit.Enter()
	defer r.crit.Leave()
	n := 0
	for b := r.free; b != nil; b = b.next {
		n++
	}
	return n
}

// ActiveCount returns the number of buffers on the active list.
func (r *Ring) ActiveCount() int {
	r.crit.Enter()
	defer r.crit.Leave()
	n := 0
	for b := r.head; b != nil; b = b.next {
		n++
	}
	return n
}

// Scan visits active buffer i (0-based) for the display, returning its
// address, tag and remaining repeats.
func (r *Ring) Scan(i int) (addr uint16, action Action, repeats uint8, ok bool) {
	r.crit.Enter()
	defer r.crit.Leave()
	b := r.head
	for ; b != nil && i > 0; b = b.next {
		i--
	}
	if b == nil {
		return 0, ActionNone, 0, false
	}
	return b.addr, b.action, b.repeats, true
}

func (r *Ring) allocLocked() *Buffer {
	b := r.free
	if b == nil {
		return nil
	}
	r.free = b.next
	b.next = nil
	return b
}

func (r *Ring) appendLocked(b *Buffer) {
	b.state = statePending
	b.next = nil
	if r.head == nil {
		r.head = b
	} else {
		r.tail.next = b
	}
	r.tail = b
}

func fill(b *Buffer, prio Priority, addr uint16, action Action, payload []byte, repeats uint8, persistent bool, done *kernel.Signal) bool {
	if !Encode(payload, prio == PriorityServiceReset || prio == PriorityServiceCommand, &b.bits) {
		return false
	}
	copy(b.payload[:], payload)
	b.plen = uint8(len(payload))
	b.repeats = repeats
	b.prio = prio
	b.addr = addr
	b.action = action
	b.done = done
	b.persistent = persistent
	b.hasStaged = false
	return true
}

// Submit encodes the packet and appends one buffer at the tail. It
// returns nil when the pool is exhausted (transmission busy) or the
// packet does not encode (buffer overflow); the ring is unchanged either
// way.
func (r *Ring) Submit(prio Priority, addr uint16, action Action, p Packet, repeats uint8, persistent bool, done *kernel.Signal) *Buffer {
	r.crit.Enter()
	defer r.crit.Leave()

	b := r.allocLocked()
	if b == nil {
		return nil
	}
	if !fill(b, prio, addr, action, p.Bytes(), repeats, persistent, done) {
		b.next = r.free
		r.free = b
		return nil
	}
	r.appendLocked(b)
	return b
}

// SubmitService appends the service-mode run as one contiguous group:
// reset preamble, the command, reset postamble. Either all three buffers
// are queued or none are.
func (r *Ring) SubmitService(cmd Packet, action Action, resetRepeats, cmdRepeats uint8, done *kernel.Signal) bool {
	reset := Reset()

	r.crit.Enter()
	defer r.crit.Leave()

	var bufs [3]*Buffer
	for i := range bufs {
		bufs[i] = r.allocLocked()
		if bufs[i] == nil {
			for _, b := range bufs {
				if b != nil {
					b.next = r.free
					r.free = b
				}
			}
			return false
		}
	}

	ok := fill(bufs[0], PriorityServiceReset, 0, ActionReset, reset.Bytes(), resetRepeats, false, nil) &&
		fill(bufs[1], PriorityServiceCommand, 0, action, cmd.Bytes(), cmdRepeats, false, nil) &&
		fill(bufs[2], PriorityServiceReset, 0, ActionReset, reset.Bytes(), resetRepeats, false, done)
	if !ok {
		for _, b := range bufs {
			b.next = r.free
			r.free = b
		}
		return false
	}
	for _, b := range bufs {
		r.appendLocked(b)
	}
	return true
}

// Refresh finds the persistent buffer keyed by (addr, action) and updates
// it in place. A buffer mid-transmission keeps its in-flight packet and
// the new one takes over at the next ring cycle; an exhausted parked
// buffer is relinked. It reports whether a buffer was found.
func (r *Ring) Refresh(addr uint16, action Action, p Packet, repeats uint8) bool {
	payload := p.Bytes()

	r.crit.Enter()
	defer r.crit.Leave()

	var found *Buffer
	for i := range r.pool {
		b := &r.pool[i]
		if b.state != stateFree && b.persistent && b.addr == addr && b.action == action {
			found = b
			break
		}
	}
	if found == nil {
		return false
	}

	if found.state == stateTransmitting {
		// The driver owns the live bit-stream; stage the replacement.
		if !Encode(payload, false, &found.staged) {
			return false
		}
		copy(found.stagedPay[:], payload)
		found.stagedLen = uint8(len(payload))
		found.hasStaged = true
		found.repeats = repeats
		return true
	}

	if !Encode(payload, false, &found.bits) {
		return false
	}
	copy(found.payload[:], payload)
	found.plen = uint8(len(payload))
	found.repeats = repeats
	if !r.onRingLocked(found) {
		// A parked buffer rejoins the ring.
		r.appendLocked(found)
	}
	return true
}

func (r *Ring) onRingLocked(target *Buffer) bool {
	for b := r.head; b != nil; b = b.next {
		if b == target {
			return true
		}
	}
	return false
}

// Withdraw zeroes a buffer's remaining repeats; the driver drops it at
// the next buffer boundary.
func (r *Ring) Withdraw(b *Buffer) {
	r.crit.Enter()
	defer r.crit.Leave()
	b.repeats = 0
	b.persistent = false
}

// takeLocked pops the head buffer for transmission. Driver context, crit
// held by the caller.
func (r *Ring) takeLocked() *Buffer {
	b := r.head
	if b == nil {
		return nil
	}
	r.head = b.next
	if r.head == nil {
		r.tail = nil
	}
	b.next = nil
	b.state = stateTransmitting
	if b.hasStaged {
		b.bits = b.staged
		copy(b.payload[:], b.stagedPay[:b.stagedLen])
		b.plen = b.stagedLen
		b.hasStaged = false
	}
	return b
}

// finishLocked retires a buffer after one complete transmission,
// re-queueing, parking or freeing it per its repeat count. Driver
// context, crit held by the caller.
func (r *Ring) finishLocked(b *Buffer) {
	if b.repeats != RepeatContinuous && b.repeats > 0 {
		b.repeats--
	}
	if b.repeats > 0 {
		r.appendLocked(b)
		return
	}

	if b.done != nil {
		b.done.Raise()
	}
	r.completed.Raise()

	if b.persistent {
		b.state = statePending
		return
	}
	b.state = stateFree
	b.next = r.free
	r.free = b
}
