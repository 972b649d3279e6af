//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"

	"go.bug.st/serial"
)

// Options selects host-side wiring that has no equivalent on hardware.
type Options struct {
	Districts int
	// ConsolePort names a serial device for the console ("" = stdio).
	ConsolePort string
	ConsoleBaud int
	FlashPath   string
	// TimeScale slows the simulated DCC half-cycle timer by this factor
	// (1 = real microseconds).
	TimeScale int
}

type hostHAL struct {
	logger  *hostLogger
	fb      *hostFramebuffer
	flash   *hostFlash
	t       *hostTime
	console Console
	track   *hostTrack
	wave    *hostWave
}

// New returns a host HAL implementation.
func New(opt Options) (HAL, error) {
	if opt.Districts <= 0 {
		opt.Districts = 2
	}
	if opt.TimeScale <= 0 {
		opt.TimeScale = 1
	}

	logger := &hostLogger{w: os.Stdout}

	var console Console
	if opt.ConsolePort != "" {
		baud := opt.ConsoleBaud
		if baud == 0 {
			baud = 115200
		}
		mode := &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(opt.ConsolePort, mode)
		if err != nil {
			return nil, fmt.Errorf("console port %s: %w", opt.ConsolePort, err)
		}
		console = port
	} else {
		console = &stdioConsole{r: os.Stdin, w: os.Stdout}
	}

	track := newHostTrack(opt.Districts)
	return &hostHAL{
		logger:  logger,
		fb:      newHostFramebuffer(20*glyphCellW+2*panelMargin, 4*glyphCellH+2*panelMargin),
		flash:   newHostFlash(opt.FlashPath),
		t:       newHostTime(),
		console: console,
		track:   track,
		wave:    newHostWave(opt.TimeScale),
	}, nil
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Flash() Flash     { return h.flash }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Console() Console { return h.console }
func (h *hostHAL) ADC() ADC         { return h.track }
func (h *hostHAL) Track() Track     { return h.track }
func (h *hostHAL) Wave() Wave       { return h.wave }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type stdioConsole struct {
	mu sync.Mutex
	r  *os.File
	w  *os.File
}

func (s *stdioConsole) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, ErrNotImplemented
	}
	return s.r.Read(p)
}

func (s *stdioConsole) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
