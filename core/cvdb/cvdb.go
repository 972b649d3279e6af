// Package cvdb captures the higher-level meaning of decoder
// configuration variables: which bits of which CVs make up each logical
// value, and which companion writes a change drags along.
package cvdb

// Element locates a contiguous bit field inside one CV.
type Element struct {
	CV   uint16
	Bits uint8
	LSB  uint8
}

// Update is a companion write that must accompany a change for it to
// take effect (the long/short address switch being the canonical case).
type Update struct {
	Elements []Element
	Value    uint16
}

// Value is one named logical parameter.
//
// A combined value spreads over its element sequence LSB first; a
// non-combined value is an array, one element per index.
type Value struct {
	Name     string
	Writable bool
	Combined bool
	Min, Max uint16
	Elements []Element
	Updates  []Update
}

// Shared element sequences.
var (
	cv1Low     = []Element{{1, 7, 0}}
	cv1High    = []Element{{1, 1, 7}}
	cv17High   = []Element{{17, 2, 6}}
	cvLongAddr = []Element{{18, 8, 0}, {17, 6, 0}}
	cv29Ext    = []Element{{29, 1, 5}}
)

func whole(cv uint16) []Element { return []Element{{cv, 8, 0}} }

// Address-mode switches: the CV17/18 pair, the CV1 mirror, and CV29 bit
// five have to move together.
var (
	setShortAddress = []Update{
		{cv17High, 0},
		{cv1High, 0},
		{cv29Ext, 0},
		{cvLongAddr, 3},
	}
	setLongAddress = []Update{
		{cv17High, 3},
		{cv1High, 0},
		{cv1Low, 3},
		{cv29Ext, 1},
	}
)

var speedTable = []Element{
	{67, 8, 0}, {68, 8, 0}, {69, 8, 0}, {70, 8, 0},
	{71, 8, 0}, {72, 8, 0}, {73, 8, 0}, {74, 8, 0},
	{75, 8, 0}, {76, 8, 0}, {77, 8, 0}, {78, 8, 0},
	{79, 8, 0}, {80, 8, 0}, {81, 8, 0}, {82, 8, 0},
	{83, 8, 0}, {84, 8, 0}, {85, 8, 0}, {86, 8, 0},
	{87, 8, 0}, {88, 8, 0}, {89, 8, 0}, {90, 8, 0},
	{91, 8, 0}, {92, 8, 0}, {93, 8, 0}, {94, 8, 0},
}

// variables is the static database: the standard NMRA set followed by
// the ZIMO sound-decoder block.
var variables = []Value{
	{"short_address", true, true, 1, 127, cv1Low, setShortAddress},
	{"power_select", true, true, 0, 1, cv1High, nil},
	{"v_start", true, true, 0, 255, whole(2), nil},
	{"acceleration", true, true, 0, 255, whole(3), nil},
	{"deceleration", true, true, 0, 255, whole(4), nil},
	{"v_high", true, true, 0, 255, whole(5), nil},
	{"v_mid", true, true, 0, 255, whole(6), nil},
	{"Manufacturer_Model", false, true, 0, 255, whole(7), nil},
	{"Manufacturer_ID", false, true, 0, 255, whole(8), nil},
	{"RESET8", true, true, 8, 8, whole(8), nil}, // full decoder reset
	{"PWM_period", true, true, 0, 255, whole(9), nil},
	{"BEMF_cutoff", true, true, 0, 255, whole(10), nil},
	{"timeout", true, true, 0, 255, whole(11), nil},
	{"alt_power_source", true, true, 0, 255, whole(12), nil},
	{"long_address", true, true, 1, 10239, cvLongAddr, setLongAddress},
	{"consist_address", true, true, 0, 127, []Element{{19, 7, 0}}, nil},
	{"consist_direction", true, true, 0, 1, []Element{{19, 1, 7}}, nil},
	{"accel_adjust", true, true, 0, 127, []Element{{23, 7, 0}}, nil},
	{"accel_sign", true, true, 0, 1, []Element{{23, 1, 7}}, nil},
	{"decel_adjust", true, true, 0, 127, []Element{{24, 7, 0}}, nil},
	{"decel_sign", true, true, 0, 1, []Element{{24, 1, 7}}, nil},
	{"alt_speed_table", true, true, 0, 255, whole(25), nil},
	{"direction", true, true, 0, 1, []Element{{29, 1, 0}}, nil},
	{"light_control", true, true, 0, 1, []Element{{29, 1, 1}}, nil},
	{"power_source", true, true, 0, 1, []Element{{29, 1, 2}}, nil},
	{"bidirectional_comms", true, true, 0, 1, []Element{{29, 1, 3}}, nil},
	{"user_speed_table", true, true, 0, 1, []Element{{29, 1, 4}}, nil},
	{"extended_address", true, true, 0, 1, cv29Ext, nil},
	{"decoder_type", false, true, 0, 1, []Element{{29, 1, 7}}, nil},
	{"kick_start", true, true, 0, 255, whole(65), nil},
	{"forward_trim", true, true, 0, 255, whole(66), nil},
	{"speed_table", true, false, 0, 255, speedTable, nil},
	{"reverse_trim", true, true, 0, 255, whole(95), nil},

	// ZIMO sound decoder block, CV265 up.
	{"z_loco_type", true, true, 0, 255, whole(265), nil},
	{"z_total_vol", true, true, 0, 255, whole(266), nil},
	{"z_chuff_freq", true, true, 0, 255, whole(267), nil},
	{"z_cam_sensor", true, true, 0, 255, whole(268), nil},
	{"z_lead_chuff", true, true, 0, 255, whole(269), nil},
	{"z_slow_chuff", true, true, 0, 255, whole(270), nil},
	{"z_fast_chuff", true, true, 0, 255, whole(271), nil},
	{"z_blowoff_duration", true, true, 0, 255, whole(272), nil},
	{"z_blowoff_delay", true, true, 0, 255, whole(273), nil},
	{"z_blowoff_schedule", true, true, 0, 255, whole(274), nil},
	{"z_slow_chuff_vol", true, true, 0, 255, whole(275), nil},
	{"z_fast_chuff_vol", true, true, 0, 255, whole(276), nil},
	{"z_chuff_vol_adjust", true, true, 0, 255, whole(277), nil},
	{"z_load_threshold", true, true, 0, 255, whole(278), nil},
	{"z_load_reaction", true, true, 0, 255, whole(279), nil},
	{"z_load_influence_diesel", true, true, 0, 255, whole(280), nil},
	{"z_load_accl_threshold", true, true, 0, 255, whole(281), nil},
	{"z_load_accl_duration", true, true, 0, 255, whole(282), nil},
	{"z_full_accl_vol", true, true, 0, 255, whole(283), nil},
	{"z_decl_threshold", true, true, 0, 255, whole(284), nil},
	{"z_decl_vol_duration", true, true, 0, 255, whole(285), nil},
	{"z_decl_vol", true, true, 0, 255, whole(286), nil},
	{"z_brake_squeal_threshold", true, true, 0, 255, whole(287), nil},
	{"z_brake_squeal_enabled_after", true, true, 0, 255, whole(288), nil},
	{"z_thyristor_step_pitch", true, true, 0, 255, whole(289), nil},
	{"z_thyristor_medium_pitch", true, true, 0, 255, whole(290), nil},
	{"z_thyristor_maximum_pitch", true, true, 0, 255, whole(291), nil},
	{"z_thyristor_pitch_inc_speed", true, true, 0, 255, whole(292), nil},
	{"z_thyristor_steady_vol", true, true, 0, 255, whole(293), nil},
	{"z_thyristor_accl_vol", true, true, 0, 255, whole(294), nil},
	{"z_thyristor_decl_vol", true, true, 0, 255, whole(295), nil},
	{"z_motor_full_vol", true, true, 0, 255, whole(296), nil},
	{"z_motor_min_vol_speed", true, true, 0, 255, whole(297), nil},
	{"z_motor_full_vol_speed", true, true, 0, 255, whole(298), nil},
	{"z_motor_speed_pitch", true, true, 0, 255, whole(299), nil},
}

// Find resolves a logical variable by name.
func Find(name string) *Value {
	for i := range variables {
		if variables[i].Name == name {
			return &variables[i]
		}
	}
	return nil
}

// Names iterates the database for the console listing.
func Names(visit func(name string, writable bool)) {
	for i := range variables {
		visit(variables[i].Name, variables[i].Writable)
	}
}
