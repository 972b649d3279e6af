package console

import (
	"strconv"
	"strings"

	"conductor/core/cvdb"
	"conductor/core/errlog"
)

// pendingReply marks a command that completes asynchronously and writes
// its own reply.
const pendingReply = errlog.Code(0xFFFF)

type cmdFunc func(s *Service, args []string) errlog.Code

type command struct {
	name  string
	usage string
	run   cmdFunc
}

type registry struct {
	cmds map[string]command
}

func newRegistry() *registry {
	r := &registry{cmds: make(map[string]command)}
	for _, c := range []command{
		{"S", "S <adr> <speed> <dir>", cmdSpeed},
		{"F", "F <adr> <func> <on|off>", cmdFunction},
		{"A", "A <adr> <on|off>", cmdAccessory},
		{"W", "W <cv> <val>", cmdWriteCV},
		{"R", "R <cv>", cmdReadCV},
		{"P", "P <district> <on|off>", cmdPower},
		{"C", "C [<name> <val>]", cmdConstant},
		{"V", "V <name> <val>", cmdVariable},
		{"H", "H", cmdHelp},
	} {
		r.cmds[c.name] = c
	}
	return r
}

func (r *registry) resolve(name string) (command, bool) {
	c, ok := r.cmds[strings.ToUpper(name)]
	return c, ok
}

func parseUint(s string, max uint64) (uint16, bool) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || v > max {
		return 0, false
	}
	return uint16(v), true
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "on":
		return true, true
	case "0", "off":
		return false, true
	}
	return false, false
}

func cmdSpeed(s *Service, args []string) errlog.Code {
	if len(args) != 3 {
		return errlog.ErrInvalidArgument
	}
	adr, ok := parseUint(args[0], 0xFFFF)
	if !ok {
		return errlog.ErrInvalidAddress
	}
	speed, ok := parseUint(args[1], 0xFF)
	if !ok {
		return errlog.ErrInvalidSpeed
	}
	var forward bool
	switch strings.ToLower(args[2]) {
	case "1", "f":
		forward = true
	case "0", "r":
		forward = false
	default:
		return errlog.ErrInvalidDirection
	}
	return s.gen.SetSpeed(adr, uint8(speed), forward)
}

func cmdFunction(s *Service, args []string) errlog.Code {
	if len(args) != 3 {
		return errlog.ErrInvalidArgument
	}
	adr, ok := parseUint(args[0], 0xFFFF)
	if !ok {
		return errlog.ErrInvalidAddress
	}
	fn, ok := parseUint(args[1], 0xFF)
	if !ok {
		return errlog.ErrInvalidFunction
	}
	on, ok := parseOnOff(args[2])
	if !ok {
		return errlog.ErrInvalidArgument
	}
	return s.gen.SetFunction(adr, uint8(fn), on)
}

func cmdAccessory(s *Service, args []string) errlog.Code {
	if len(args) != 2 {
		return errlog.ErrInvalidArgument
	}
	adr, ok := parseUint(args[0], 0xFFFF)
	if !ok {
		return errlog.ErrInvalidAddress
	}
	on, ok := parseOnOff(args[1])
	if !ok {
		return errlog.ErrInvalidState
	}
	return s.gen.SetAccessory(adr, on)
}

// serviceReady gates the programming commands on an energised
// programming-zone district.
func (s *Service) serviceReady() errlog.Code {
	if _, on := s.districts.ProgrammingActive(); !on {
		return errlog.ErrNoProgrammingTrack
	}
	return errlog.NoError
}

func cmdWriteCV(s *Service, args []string) errlog.Code {
	if len(args) != 2 {
		return errlog.ErrInvalidArgument
	}
	cv, ok := parseUint(args[0], 1024)
	if !ok {
		return errlog.ErrInvalidCV
	}
	val, ok := parseUint(args[1], 0xFF)
	if !ok {
		return errlog.ErrInvalidByteValue
	}
	if code := s.serviceReady(); code != errlog.NoError {
		return code
	}
	return s.gen.WriteCVByte(cv, uint8(val), nil)
}

func cmdReadCV(s *Service, args []string) errlog.Code {
	if len(args) != 1 {
		return errlog.ErrInvalidArgument
	}
	cv, ok := parseUint(args[0], 1024)
	if !ok {
		return errlog.ErrInvalidCV
	}
	if code := s.serviceReady(); code != errlog.NoError {
		return code
	}
	return s.startRead(cv)
}

func cmdPower(s *Service, args []string) errlog.Code {
	if len(args) != 2 {
		return errlog.ErrInvalidArgument
	}
	idx := s.findDistrict(args[0])
	if idx < 0 {
		return errlog.ErrInvalidArgument
	}
	on, ok := parseOnOff(args[1])
	if !ok {
		return errlog.ErrInvalidState
	}
	if on {
		return s.districts.Enable(idx)
	}
	return s.districts.Disable(idx)
}

func (s *Service) findDistrict(key string) int {
	for i := 0; i < s.districts.Count(); i++ {
		if strings.EqualFold(s.districts.Name(i), key) {
			return i
		}
	}
	if v, err := strconv.Atoi(key); err == nil && v >= 0 && v < s.districts.Count() {
		return v
	}
	return -1
}

func cmdConstant(s *Service, args []string) errlog.Code {
	switch len(args) {
	case 0:
		for i := 0; ; i++ {
			d, ok := s.store.Find(i)
			if !ok {
				break
			}
			if d.Byte != nil {
				s.write(d.Name + " " + strconv.Itoa(int(*d.Byte)) + "\n")
			} else {
				s.write(d.Name + " " + strconv.Itoa(int(*d.Word)) + "\n")
			}
		}
		return errlog.NoError
	case 2:
		val, ok := parseUint(args[1], 0xFFFF)
		if !ok {
			return errlog.ErrInvalidWordValue
		}
		if !s.store.Set(args[0], val) {
			return errlog.ErrInvalidArgument
		}
		if err := s.store.Save(); err != nil {
			return errlog.ErrReportFail
		}
		return errlog.NoError
	default:
		return errlog.ErrInvalidArgument
	}
}

// cmdVariable plans a logical CV edit through the database and queues
// the minimal write sequence.
func cmdVariable(s *Service, args []string) errlog.Code {
	if len(args) == 0 {
		cvdb.Names(func(name string, writable bool) {
			tag := ""
			if !writable {
				tag = " ro"
			}
			s.write(name + tag + "\n")
		})
		return errlog.NoError
	}
	if len(args) != 2 {
		return errlog.ErrInvalidArgument
	}
	val, ok := parseUint(args[1], 0xFFFF)
	if !ok {
		return errlog.ErrInvalidWordValue
	}
	if code := s.serviceReady(); code != errlog.NoError {
		return code
	}

	var list [8]cvdb.Change
	if code := cvdb.Apply(list[:], args[0], val); code != errlog.NoError {
		return code
	}
	for _, ch := range cvdb.Changes(list[:]) {
		if code := s.gen.WriteCVChange(ch.CV, ch.Mask, ch.Value, nil); code != errlog.NoError {
			return code
		}
	}
	return errlog.NoError
}

func cmdHelp(s *Service, args []string) errlog.Code {
	_ = args
	for _, name := range []string{"S", "F", "A", "W", "R", "P", "C", "V", "H"} {
		c := s.reg.cmds[name]
		s.write(c.usage + "\n")
	}
	return errlog.NoError
}
