// Package console implements the line-oriented ASCII command surface.
// Every reply is either "OK <echo>" or "ERR <code>".
package console

import (
	"strconv"
	"strings"

	"conductor/core/constants"
	"conductor/core/dcc"
	"conductor/core/district"
	"conductor/core/errlog"
	"conductor/core/kernel"
	"conductor/hal"
)

const maxLine = 80

// Service parses command lines and drives the station API.
type Service struct {
	io        hal.Console
	gen       *dcc.Generator
	districts *district.Controller
	store     *constants.Store
	faults    *errlog.Log

	reg *registry

	crit    kernel.Section
	pending []string
	lineSig *kernel.Signal

	read readTransaction
}

// New wires the console to its collaborators.
func New(io hal.Console, gen *dcc.Generator, districts *district.Controller, store *constants.Store, faults *errlog.Log) *Service {
	s := &Service{
		io:        io,
		gen:       gen,
		districts: districts,
		store:     store,
		faults:    faults,
		lineSig:   kernel.NewSignal(),
	}
	s.read.done = kernel.NewSignal()
	s.reg = newRegistry()
	return s
}

// Handles for the console's scheduler registrations.
const (
	handleLine = 0
	handleRead = 1
)

// Start registers the console task and begins the reader pump.
func (s *Service) Start(sch *kernel.Scheduler) bool {
	if !sch.AddTask(s, s.lineSig, handleLine) {
		return false
	}
	if !sch.AddTask(s, s.read.done, handleRead) {
		return false
	}
	if s.io != nil {
		go s.pump()
	}
	return true
}

// pump assembles input bytes into lines and hands them to the task.
func (s *Service) pump() {
	var line []byte
	buf := make([]byte, 64)
	for {
		n, err := s.io.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			switch b {
			case '\r':
			case '\n':
				s.push(string(line))
				line = line[:0]
			default:
				if len(line) < maxLine {
					line = append(line, b)
				}
			}
		}
	}
}

func (s *Service) push(line string) {
	s.crit.Enter()
	s.pending = append(s.pending, line)
	s.crit.Leave()
	s.lineSig.Raise()
}

// Process dispatches one queued command line per line signal, and steps
// the CV read transaction on its signal.
func (s *Service) Process(handle uint8) {
	switch handle {
	case handleLine:
		s.crit.Enter()
		if len(s.pending) == 0 {
			s.crit.Leave()
			return
		}
		line := s.pending[0]
		s.pending = s.pending[1:]
		s.crit.Leave()
		s.Execute(line)
	case handleRead:
		s.stepRead()
	}
}

// Execute runs one command line and writes the reply.
func (s *Service) Execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if s.faults.Halted() {
		code, _ := s.faults.HaltReason()
		s.replyErr(code)
		return
	}

	fields := strings.Fields(line)
	cmd, ok := s.reg.resolve(fields[0])
	if !ok {
		s.faults.Record(errlog.ErrUnrecognised, 0)
		s.replyErr(errlog.ErrUnrecognised)
		return
	}
	switch code := cmd.run(s, fields[1:]); code {
	case errlog.NoError:
		s.replyOK(line)
	case pendingReply:
		// The command completes asynchronously and replies itself.
	default:
		s.replyErr(code)
	}
}

func (s *Service) write(text string) {
	if s.io != nil {
		_, _ = s.io.Write([]byte(text))
	}
}

func (s *Service) replyOK(echo string) {
	s.write("OK " + echo + "\n")
}

func (s *Service) replyErr(code errlog.Code) {
	s.write("ERR " + strconv.Itoa(int(code)) + "\n")
}
