package console

import (
	"strconv"

	"conductor/core/errlog"
	"conductor/core/kernel"
)

// readTransaction recovers a CV byte over service mode one bit at a
// time: each verify sequence asserts the bit is one, and the decoder's
// current-draw confirmation (the district delta signal) decides it.
type readTransaction struct {
	active bool
	cv     uint16
	bit    uint8
	value  uint8
	done   *kernel.Signal
}

func (s *Service) startRead(cv uint16) errlog.Code {
	if s.read.active {
		return errlog.ErrTransmissionBusy
	}

	// Stale confirmations from earlier load changes must not count.
	for s.districts.Confirm().Consume() {
	}

	if code := s.gen.VerifyCVBitValue(cv, 0, true, s.read.done); code != errlog.NoError {
		return code
	}
	s.read = readTransaction{active: true, cv: cv, done: s.read.done}
	return pendingReply
}

// stepRead runs once per completed verify sequence.
func (s *Service) stepRead() {
	if !s.read.active {
		return
	}

	confirmed := false
	for s.districts.Confirm().Consume() {
		confirmed = true
	}
	if confirmed {
		s.read.value |= 1 << s.read.bit
	}

	s.read.bit++
	if s.read.bit >= 8 {
		s.read.active = false
		s.write("OK R " + strconv.Itoa(int(s.read.cv)) + " " + strconv.Itoa(int(s.read.value)) + "\n")
		return
	}

	if code := s.gen.VerifyCVBitValue(s.read.cv, s.read.bit, true, s.read.done); code != errlog.NoError {
		s.read.active = false
		s.replyErr(code)
	}
}
