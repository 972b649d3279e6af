// Package constants manages the tunable values that need adjusting in the
// field without reflashing the firmware. The block lives in EEPROM behind
// a rotating-XOR checksum; a failed check resets everything to the
// compiled defaults.
package constants

import (
	"encoding/binary"

	"conductor/hal"
)

// Values is the variable space the rest of the firmware reads its tuning
// from. Word fields first, then byte fields, matching the packed EEPROM
// layout.
type Values struct {
	InstantCurrentLimit uint16
	AverageCurrentLimit uint16
	PowerGracePeriod    uint16
	PeriodicInterval    uint16
	LCDUpdateInterval   uint16
	LineRefreshInterval uint16
	DriverResetPeriod   uint16
	DriverPhasePeriod   uint16

	MinimumDeltaAmps          uint8
	TransientCommandRepeats   uint8
	ServiceModeResetRepeats   uint8
	ServiceModeCommandRepeats uint8
}

const (
	// BlockBytes is the packed size of Values.
	BlockBytes = 8*2 + 4
	// RecordBytes adds the 16-bit checksum.
	RecordBytes = BlockBytes + 2
)

// Defaults returns the compiled-in tuning values.
func Defaults() Values {
	return Values{
		InstantCurrentLimit:       850,
		AverageCurrentLimit:       750,
		PowerGracePeriod:          1000,
		PeriodicInterval:          1000,
		LCDUpdateInterval:         1000,
		LineRefreshInterval:       200,
		DriverResetPeriod:         10000,
		DriverPhasePeriod:         100,
		MinimumDeltaAmps:          18,
		TransientCommandRepeats:   8,
		ServiceModeResetRepeats:   20,
		ServiceModeCommandRepeats: 10,
	}
}

func pack(v *Values, dst *[BlockBytes]byte) {
	binary.LittleEndian.PutUint16(dst[0:2], v.InstantCurrentLimit)
	binary.LittleEndian.PutUint16(dst[2:4], v.AverageCurrentLimit)
	binary.LittleEndian.PutUint16(dst[4:6], v.PowerGracePeriod)
	binary.LittleEndian.PutUint16(dst[6:8], v.PeriodicInterval)
	binary.LittleEndian.PutUint16(dst[8:10], v.LCDUpdateInterval)
	binary.LittleEndian.PutUint16(dst[10:12], v.LineRefreshInterval)
	binary.LittleEndian.PutUint16(dst[12:14], v.DriverResetPeriod)
	binary.LittleEndian.PutUint16(dst[14:16], v.DriverPhasePeriod)
	dst[16] = v.MinimumDeltaAmps
	dst[17] = v.TransientCommandRepeats
	dst[18] = v.ServiceModeResetRepeats
	dst[19] = v.ServiceModeCommandRepeats
}

func unpack(src *[BlockBytes]byte, v *Values) {
	v.InstantCurrentLimit = binary.LittleEndian.Uint16(src[0:2])
	v.AverageCurrentLimit = binary.LittleEndian.Uint16(src[2:4])
	v.PowerGracePeriod = binary.LittleEndian.Uint16(src[4:6])
	v.PeriodicInterval = binary.LittleEndian.Uint16(src[6:8])
	v.LCDUpdateInterval = binary.LittleEndian.Uint16(src[8:10])
	v.LineRefreshInterval = binary.LittleEndian.Uint16(src[10:12])
	v.DriverResetPeriod = binary.LittleEndian.Uint16(src[12:14])
	v.DriverPhasePeriod = binary.LittleEndian.Uint16(src[14:16])
	v.MinimumDeltaAmps = src[16]
	v.TransientCommandRepeats = src[17]
	v.ServiceModeResetRepeats = src[18]
	v.ServiceModeCommandRepeats = src[19]
}

// checksum folds the packed block into 16 bits: rotate left three, XOR
// the next byte, seeded with all-ones.
func checksum(block *[BlockBytes]byte) uint16 {
	s := uint16(0xFFFF)
	for _, b := range block {
		s = (s << 3) | (s >> 13)
		s ^= uint16(b)
	}
	return s
}

// Store binds the values to their EEPROM record at offset zero.
type Store struct {
	flash hal.Flash
	v     Values
}

// NewStore creates a store over the given flash; call Load before use.
func NewStore(flash hal.Flash) *Store {
	return &Store{flash: flash, v: Defaults()}
}

// Values exposes the live tuning block.
func (s *Store) Values() *Values { return &s.v }

// Load reads the record and verifies its checksum. On any failure the
// values are reset to defaults and re-persisted. It reports whether the
// stored record was accepted.
func (s *Store) Load() bool {
	var rec [RecordBytes]byte
	if s.flash != nil {
		if n, err := s.flash.ReadAt(rec[:], 0); err == nil && n == RecordBytes {
			var block [BlockBytes]byte
			copy(block[:], rec[:BlockBytes])
			sum := binary.LittleEndian.Uint16(rec[BlockBytes:])
			if sum == checksum(&block) {
				unpack(&block, &s.v)
				return true
			}
		}
	}
	s.Reset()
	return false
}

// Save writes the packed block and its checksum back to EEPROM.
func (s *Store) Save() error {
	var rec [RecordBytes]byte
	var block [BlockBytes]byte
	pack(&s.v, &block)
	copy(rec[:], block[:])
	binary.LittleEndian.PutUint16(rec[BlockBytes:], checksum(&block))
	if s.flash == nil {
		return hal.ErrNotImplemented
	}
	_, err := s.flash.WriteAt(rec[:], 0)
	return err
}

// Reset restores the compiled defaults and persists them.
func (s *Store) Reset() {
	s.v = Defaults()
	if s.flash != nil {
		_ = s.Save()
	}
}
