package constants

// Descriptor names one tunable and points at its live value. Exactly one
// of Byte or Word is non-nil.
type Descriptor struct {
	Name string
	Byte *uint8
	Word *uint16
}

// Count is the number of managed tunables.
const Count = 12

// Find yields the tunable at index, in listing order. This differs from
// the packed layout, which stores every word before the bytes, while the
// listing puts minimum_delta_amps fourth. It reports false past the end.
func (s *Store) Find(index int) (Descriptor, bool) {
	v := &s.v
	switch index {
	case 0:
		return Descriptor{Name: "instant_current_limit", Word: &v.InstantCurrentLimit}, true
	case 1:
		return Descriptor{Name: "average_current_limit", Word: &v.AverageCurrentLimit}, true
	case 2:
		return Descriptor{Name: "power_grace_period", Word: &v.PowerGracePeriod}, true
	case 3:
		return Descriptor{Name: "minimum_delta_amps", Byte: &v.MinimumDeltaAmps}, true
	case 4:
		return Descriptor{Name: "periodic_interval", Word: &v.PeriodicInterval}, true
	case 5:
		return Descriptor{Name: "lcd_update_interval", Word: &v.LCDUpdateInterval}, true
	case 6:
		return Descriptor{Name: "line_refresh_interval", Word: &v.LineRefreshInterval}, true
	case 7:
		return Descriptor{Name: "driver_reset_period", Word: &v.DriverResetPeriod}, true
	case 8:
		return Descriptor{Name: "driver_phase_period", Word: &v.DriverPhasePeriod}, true
	case 9:
		return Descriptor{Name: "transient_command_repeats", Byte: &v.TransientCommandRepeats}, true
	case 10:
		return Descriptor{Name: "service_mode_reset_repeats", Byte: &v.ServiceModeResetRepeats}, true
	case 11:
		return Descriptor{Name: "service_mode_command_repeats", Byte: &v.ServiceModeCommandRepeats}, true
	default:
		return Descriptor{}, false
	}
}

// Set updates a tunable by name, rejecting unknown names and byte-range
// overflows. The caller persists with Save.
func (s *Store) Set(name string, value uint16) bool {
	for i := 0; i < Count; i++ {
		d, ok := s.Find(i)
		if !ok {
			break
		}
		if d.Name != name {
			continue
		}
		if d.Byte != nil {
			if value > 0xFF {
				return false
			}
			*d.Byte = uint8(value)
			return true
		}
		*d.Word = value
		return true
	}
	return false
}
