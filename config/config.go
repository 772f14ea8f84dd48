// Package config is the named-tunable store: JSON load/save with
// defaults (values are not range-checked) and non-volatile persistence hooks, plus
// derivation of steps-per-unit from the axis geometry tunables. Per axis
// it carries the axis mode, velocity/feedrate/travel/jerk maxima,
// junction deviation, switch modes, homing search/latch velocities and
// backoffs, and the steps-per-unit derivatives (step angle, microsteps,
// travel per revolution); globally, the arc chord length, junction
// acceleration, units default, line-number mode, status-report interval,
// and the nine G54-G59.3 coordinate-system offsets.
package config

import (
	"encoding/json"
	"fmt"

	"tinyg/core"
	"tinyg/gcode"
	"tinyg/kinematics"
	"tinyg/planner"
)

// AxisMode selects how an axis participates in motion.
type AxisMode string

const (
	AxisModeDisabled AxisMode = "disabled"
	AxisModeLinear   AxisMode = "linear"
	AxisModeRotary   AxisMode = "rotary"
)

// SwitchMode selects limit-switch wiring polarity/behavior for an axis.
type SwitchMode string

const (
	SwitchModeDisabled    SwitchMode = "disabled"
	SwitchModeHomingOnly  SwitchMode = "homing"
	SwitchModeLimitOnly   SwitchMode = "limit"
	SwitchModeHomingLimit SwitchMode = "homing_limit"
)

// AxisConfig is one axis's persisted tunables.
type AxisConfig struct {
	Mode AxisMode `json:"mode"`

	VelocityMax float64 `json:"velocity_max"` // mm/s or deg/s
	FeedrateMax float64 `json:"feedrate_max"` // mm/s or deg/s, feed-mode cap
	TravelMax   float64 `json:"travel_max"`   // mm or deg, soft-limit travel
	JerkMax     float64 `json:"jerk_max"`     // mm/s^3 or deg/s^3

	JunctionDeviation float64 `json:"junction_deviation"` // mm; stored only, the planner uses the global value

	SwitchMode SwitchMode `json:"switch_mode"`

	SearchVelocity float64 `json:"search_velocity"` // homing first-pass velocity
	LatchVelocity  float64 `json:"latch_velocity"`  // homing second-pass (slow) velocity
	SearchBackoff  float64 `json:"search_backoff"`  // mm off switch after first pass
	LatchBackoff   float64 `json:"latch_backoff"`   // mm off switch after second pass

	// Steps-per-unit derivatives: steps-per-unit is computed from these
	// rather than stored directly.
	StepAngle    float64 `json:"step_angle"`     // degrees per full step
	Microsteps   int     `json:"microsteps"`     // driver microstep divisor
	TravelPerRev float64 `json:"travel_per_rev"` // mm (linear) or deg (rotary, usually 360) per motor revolution

	// Rotary-only: radius used to join this axis into the planner's
	// Euclidean norm.
	Radius float64 `json:"radius"`

	InvertDirection bool `json:"invert_direction"`
	InvertEnable    bool `json:"invert_enable"`
}

// StepsPerUnit derives steps-per-mm (linear) or steps-per-degree (rotary)
// from StepAngle/Microsteps/TravelPerRev.
func (a AxisConfig) StepsPerUnit() float64 {
	if a.StepAngle <= 0 || a.TravelPerRev <= 0 {
		return 0
	}
	stepsPerRev := 360.0 / a.StepAngle * float64(max1(a.Microsteps))
	return stepsPerRev / a.TravelPerRev
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

// CoordinateOffset is one work-offset vector (G54..G59.3, or the G92
// origin offset).
type CoordinateOffset [kinematics.NumAxes]float64

// NumCoordinateSystems is the count of G54..G59.3 coordinate systems.
const NumCoordinateSystems = 9

// Config is the complete persisted machine configuration, including the
// nine coordinate-system offsets.
type Config struct {
	Axis [kinematics.NumAxes]AxisConfig `json:"axis"`

	ArcSegmentMM         float64     `json:"arc_segment_mm"`
	JunctionAcceleration float64     `json:"junction_acceleration"` // amax used in junction-velocity model
	JunctionDeviation    float64     `json:"junction_deviation"`    // mm, used by the planner for every junction
	UnitsDefault         gcode.Units `json:"units_default"`
	LineNumberMode       bool        `json:"line_number_mode"`
	StatusReportInterval float64     `json:"status_report_interval"` // seconds

	CoordinateSystem [NumCoordinateSystems]CoordinateOffset `json:"coordinate_system"`

	StarvationTicks uint32 `json:"starvation_ticks"`
}

// DefaultConfig returns a six-axis Cartesian-style default configuration:
// X/Y/Z linear, A/B/C rotary.
func DefaultConfig() *Config {
	c := &Config{
		ArcSegmentMM:         0.1,
		JunctionAcceleration: 2000.0,
		JunctionDeviation:    0.05,
		UnitsDefault:         gcode.UnitsMM,
		LineNumberMode:       true,
		StatusReportInterval: 0.25,
		StarvationTicks:      core.TimerFreq / 10,
	}

	linear := AxisConfig{
		Mode:           AxisModeLinear,
		VelocityMax:    300.0,
		FeedrateMax:    300.0,
		TravelMax:      300.0,
		JerkMax:        50_000_000.0,
		SwitchMode:     SwitchModeHomingLimit,
		SearchVelocity: 25.0,
		LatchVelocity:  2.0,
		SearchBackoff:  5.0,
		LatchBackoff:   1.0,
		StepAngle:      1.8,
		Microsteps:     16,
		TravelPerRev:   8.0,
	}
	rotary := AxisConfig{
		Mode:         AxisModeRotary,
		VelocityMax:  360.0,
		FeedrateMax:  360.0,
		TravelMax:    100_000,
		JerkMax:      50_000_000.0,
		SwitchMode:   SwitchModeDisabled,
		StepAngle:    1.8,
		Microsteps:   16,
		TravelPerRev: 360.0,
		Radius:       10.0,
	}

	for i := 0; i < 3; i++ {
		c.Axis[i] = linear
	}
	for i := 3; i < kinematics.NumAxes; i++ {
		c.Axis[i] = rotary
	}
	return c
}

// Load parses JSON configuration data and fills in defaults for anything
// zero-valued.
func Load(data []byte) (*Config, error) {
	c := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	applyDefaults(c)
	return c, nil
}

// Save serializes the configuration back to JSON, for the host console's
// `$` dialect to persist edited tunables.
func (c *Config) Save() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func applyDefaults(c *Config) {
	d := DefaultConfig()
	if c.ArcSegmentMM == 0 {
		c.ArcSegmentMM = d.ArcSegmentMM
	}
	if c.JunctionAcceleration == 0 {
		c.JunctionAcceleration = d.JunctionAcceleration
	}
	if c.JunctionDeviation == 0 {
		c.JunctionDeviation = d.JunctionDeviation
	}
	if c.UnitsDefault == gcode.UnitsNone {
		c.UnitsDefault = d.UnitsDefault
	}
	if c.StarvationTicks == 0 {
		c.StarvationTicks = d.StarvationTicks
	}
	for i := range c.Axis {
		a := &c.Axis[i]
		def := d.Axis[i]
		if a.Mode == "" {
			a.Mode = def.Mode
		}
		if a.VelocityMax == 0 {
			a.VelocityMax = def.VelocityMax
		}
		if a.FeedrateMax == 0 {
			a.FeedrateMax = def.FeedrateMax
		}
		if a.TravelMax == 0 {
			a.TravelMax = def.TravelMax
		}
		if a.JerkMax == 0 {
			a.JerkMax = def.JerkMax
		}
		if a.StepAngle == 0 {
			a.StepAngle = def.StepAngle
		}
		if a.Microsteps == 0 {
			a.Microsteps = def.Microsteps
		}
		if a.TravelPerRev == 0 {
			a.TravelPerRev = def.TravelPerRev
		}
		if a.SwitchMode == "" {
			a.SwitchMode = def.SwitchMode
		}
	}
}

// PlannerLimits projects the axis tunables into the shape planner.Limits
// needs. Only the global junction deviation is passed on; per-axis
// JunctionDeviation values are not.
func (c *Config) PlannerLimits() planner.Limits {
	var l planner.Limits
	l.JunctionAcceleration = c.JunctionAcceleration
	l.JunctionDeviation = c.JunctionDeviation
	l.StarvationTicks = c.StarvationTicks
	for i, a := range c.Axis {
		l.Axis[i] = planner.AxisLimits{
			VelocityMax:  a.VelocityMax,
			JerkMax:      a.JerkMax,
			StepsPerUnit: a.StepsPerUnit(),
			Radius:       a.Radius,
		}
	}
	return l
}

// KinematicsAxes projects the axis tunables into the kinematics package's
// per-axis geometry (kind + radius).
func (c *Config) KinematicsAxes() [kinematics.NumAxes]kinematics.Axis {
	var axes [kinematics.NumAxes]kinematics.Axis
	for i, a := range c.Axis {
		if a.Mode == AxisModeRotary {
			axes[i] = kinematics.Axis{Kind: kinematics.Rotary, Radius: a.Radius}
		} else {
			axes[i] = kinematics.Axis{Kind: kinematics.Linear}
		}
	}
	return axes
}

// nvFields flattens the persisted tunables into the flat float64 list
// core.EncodeNVRecord expects.
func (c *Config) nvFields() []float64 {
	fields := make([]float64, 0, kinematics.NumAxes*11+7+NumCoordinateSystems*kinematics.NumAxes)
	for _, a := range c.Axis {
		fields = append(fields,
			modeCode(a.Mode), a.VelocityMax, a.FeedrateMax, a.TravelMax,
			a.JerkMax, a.SearchVelocity, a.LatchVelocity,
			a.SearchBackoff, a.LatchBackoff, a.StepAngle, float64(a.Microsteps),
			a.TravelPerRev, a.Radius,
		)
	}
	fields = append(fields, c.ArcSegmentMM, c.JunctionAcceleration, c.JunctionDeviation,
		float64(c.StarvationTicks))
	for _, cs := range c.CoordinateSystem {
		fields = append(fields, cs[:]...)
	}
	return fields
}

func modeCode(m AxisMode) float64 {
	switch m {
	case AxisModeLinear:
		return 1
	case AxisModeRotary:
		return 2
	default:
		return 0
	}
}

// WriteThrough persists the configuration to store, encoding it with
// core.EncodeNVRecord; call it on every accepted config change.
func (c *Config) WriteThrough(store core.NVStore) error {
	return store.WriteRecord(core.EncodeNVRecord(c.nvFields()))
}

// ReadFrom loads the tunables nvFields persists from store, overlaying
// them onto a freshly defaulted Config; per-axis junction deviation,
// switch modes, direction/enable inversion, units default, line-number
// mode and status-report interval are not in the record and keep their
// defaults. A missing or corrupt
// record falls back to defaults rather than running with garbage.
func ReadFrom(store core.NVStore) (*Config, error) {
	c := DefaultConfig()
	raw, err := store.ReadRecord()
	if err != nil {
		return c, nil
	}
	fields, err := core.DecodeNVRecord(raw)
	if err != nil {
		return c, nil
	}
	c.applyNVFields(fields)
	return c, nil
}

func (c *Config) applyNVFields(fields []float64) {
	i := 0
	next := func() float64 {
		if i >= len(fields) {
			return 0
		}
		v := fields[i]
		i++
		return v
	}
	for a := range c.Axis {
		ax := &c.Axis[a]
		switch next() {
		case 1:
			ax.Mode = AxisModeLinear
		case 2:
			ax.Mode = AxisModeRotary
		default:
			ax.Mode = AxisModeDisabled
		}
		ax.VelocityMax = next()
		ax.FeedrateMax = next()
		ax.TravelMax = next()
		ax.JerkMax = next()
		ax.SearchVelocity = next()
		ax.LatchVelocity = next()
		ax.SearchBackoff = next()
		ax.LatchBackoff = next()
		ax.StepAngle = next()
		ax.Microsteps = int(next())
		ax.TravelPerRev = next()
		ax.Radius = next()
	}
	c.ArcSegmentMM = next()
	c.JunctionAcceleration = next()
	c.JunctionDeviation = next()
	c.StarvationTicks = uint32(next())
	for cs := range c.CoordinateSystem {
		for ax := range c.CoordinateSystem[cs] {
			c.CoordinateSystem[cs][ax] = next()
		}
	}
}
