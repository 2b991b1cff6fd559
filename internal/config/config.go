// Package config loads the YAML run configuration shared by the simulator
// and the table generator. Angles in the file are degrees and are converted
// to radians by the builders.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jplwindssalinity/v3proc-sub010/antenna"
	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/core"
)

const deg = math.Pi / 180

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type EarthConfig struct {
	// Model is "wgs84" or "sphere".
	Model    string  `yaml:"model"`
	RadiusKm float64 `yaml:"radius_km"`
	// VelocityFrame is "geodetic", "geocentric" or "inertial".
	VelocityFrame string `yaml:"velocity_frame"`
	// Pointing of the inertial frame, geocentric degrees.
	InertialLatitudeDeg  float64 `yaml:"inertial_latitude_deg"`
	InertialLongitudeDeg float64 `yaml:"inertial_longitude_deg"`
}

// OrbitConfig selects a TLE when both lines are set and Keplerian elements
// otherwise.
type OrbitConfig struct {
	TLELine1 string `yaml:"tle_line1"`
	TLELine2 string `yaml:"tle_line2"`
	// Epoch is the RFC 3339 time of t = 0 for the TLE propagator.
	Epoch string `yaml:"epoch"`

	SemiMajorAxisKm        float64 `yaml:"semi_major_axis_km"`
	Eccentricity           float64 `yaml:"eccentricity"`
	InclinationDeg         float64 `yaml:"inclination_deg"`
	RAANDeg                float64 `yaml:"raan_deg"`
	ArgumentOfPeriapsisDeg float64 `yaml:"argument_of_periapsis_deg"`
	MeanAnomalyDeg         float64 `yaml:"mean_anomaly_deg"`
	GreenwichAngleDeg      float64 `yaml:"greenwich_angle_deg"`
}

type AttitudeConfig struct {
	RollDeg  float64 `yaml:"roll_deg"`
	PitchDeg float64 `yaml:"pitch_deg"`
	YawDeg   float64 `yaml:"yaw_deg"`
	// Order names the rotation axes first to last, e.g. "xyz" or "zyx".
	Order string `yaml:"order"`
}

type AntennaConfig struct {
	Pedestal    AttitudeConfig `yaml:"pedestal"`
	SpinRateRPM float64        `yaml:"spin_rate_rpm"`
}

type InstrumentConfig struct {
	TxFrequencyHz        float64 `yaml:"tx_frequency_hz"`
	ChirpRateHzPerSec    float64 `yaml:"chirp_rate_hz_per_sec"`
	TxPulseWidthSec      float64 `yaml:"tx_pulse_width_sec"`
	RxGateWidthSec       float64 `yaml:"rx_gate_width_sec"`
	GateDelayResolutionS float64 `yaml:"gate_delay_resolution_sec"`
	GridDelaySec         float64 `yaml:"grid_delay_sec"`
	ProcConstantHz       float64 `yaml:"proc_constant_hz"`
	PRISec               float64 `yaml:"pri_sec"`
}

type BeamConfig struct {
	Name                string  `yaml:"name"`
	LookDeg             float64 `yaml:"look_deg"`
	AzimuthDeg          float64 `yaml:"azimuth_deg"`
	LookBeamwidthDeg    float64 `yaml:"look_beamwidth_deg"`
	AzimuthBeamwidthDeg float64 `yaml:"azimuth_beamwidth_deg"`
	PeakGainDB          float64 `yaml:"peak_gain_db"`
	RxGateWidthSec      float64 `yaml:"rx_gate_width_sec"`
}

type SliceConfig struct {
	ScienceSlices      int     `yaml:"science_slices"`
	GuardSlicesPerSide int     `yaml:"guard_slices_per_side"`
	ScienceBandwidthHz float64 `yaml:"science_bandwidth_hz"`
	GuardBandwidthHz   float64 `yaml:"guard_bandwidth_hz"`
	FreqToleranceHz    float64 `yaml:"freq_tolerance_hz"`
}

// SearchConfig overrides search tuning. Zero fields keep the defaults.
type SearchConfig struct {
	LookOffsetRad       float64 `yaml:"look_offset_rad"`
	AzimuthOffsetRad    float64 `yaml:"azimuth_offset_rad"`
	AngleOffsetRad      float64 `yaml:"angle_offset_rad"`
	AngleToleranceRad   float64 `yaml:"angle_tolerance_rad"`
	MaxPasses           int     `yaml:"max_passes"`
	PeakAngleOffsetRad  float64 `yaml:"peak_angle_offset_rad"`
	LocalAngleOffsetRad float64 `yaml:"local_angle_offset_rad"`
}

type TableConfig struct {
	OrbitSteps   int `yaml:"orbit_steps"`
	AzimuthSteps int `yaml:"azimuth_steps"`
	// RGCLimitMs and DTCLimitHz bound |amplitude|+bias; zero disables.
	RGCLimitMs float64 `yaml:"rgc_limit_ms"`
	DTCLimitHz float64 `yaml:"dtc_limit_hz"`
	// DTC clamp, both zero disables.
	DTCClampMinHz float64 `yaml:"dtc_clamp_min_hz"`
	DTCClampMaxHz float64 `yaml:"dtc_clamp_max_hz"`
	StartTimeSec  float64 `yaml:"start_time_sec"`
}

// Config is the top-level run configuration.
type Config struct {
	Earth      EarthConfig      `yaml:"earth"`
	Orbit      OrbitConfig      `yaml:"orbit"`
	Attitude   AttitudeConfig   `yaml:"attitude"`
	Antenna    AntennaConfig    `yaml:"antenna"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Beams      []BeamConfig     `yaml:"beams"`
	Slices     SliceConfig      `yaml:"slices"`
	Search     SearchConfig     `yaml:"search"`
	Tables     TableConfig      `yaml:"tables"`
}

// Default returns a QuikSCAT-like configuration: an 803 km sun-synchronous
// orbit, two pencil beams and 18 rpm spin.
func Default() Config {
	return Config{
		Earth: EarthConfig{Model: "wgs84", VelocityFrame: "geodetic"},
		Orbit: OrbitConfig{
			SemiMajorAxisKm: core.WGS84.EquatorialRadius + 803,
			Eccentricity:    0.0002,
			InclinationDeg:  98.616,
		},
		Antenna: AntennaConfig{SpinRateRPM: 18},
		Instrument: InstrumentConfig{
			TxFrequencyHz:        13.402e9,
			ChirpRateHzPerSec:    2.5e8,
			TxPulseWidthSec:      1.5e-3,
			RxGateWidthSec:       1.8e-3,
			GateDelayResolutionS: 49.9e-6,
			PRISec:               5.4e-3,
		},
		Beams: []BeamConfig{
			{Name: "inner", LookDeg: 40, LookBeamwidthDeg: 1.4, AzimuthBeamwidthDeg: 1.7, PeakGainDB: 41},
			{Name: "outer", LookDeg: 46, LookBeamwidthDeg: 1.4, AzimuthBeamwidthDeg: 1.5, PeakGainDB: 41},
		},
		Slices: SliceConfig{
			ScienceSlices:      10,
			GuardSlicesPerSide: 1,
			ScienceBandwidthHz: 8314,
			GuardBandwidthHz:   8314,
			FreqToleranceHz:    1,
		},
		Tables: TableConfig{
			OrbitSteps:    calib.DefaultOrbitSteps,
			AzimuthSteps:  calib.DefaultAzimuthSteps,
			DTCClampMinHz: -590000,
			DTCClampMaxHz: 590000,
		},
	}
}

// ApplyDefaults fills zero fields from Default. Beams are only filled when
// none are configured.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Earth.Model == "" {
		c.Earth.Model = d.Earth.Model
	}
	if c.Earth.VelocityFrame == "" {
		c.Earth.VelocityFrame = d.Earth.VelocityFrame
	}
	if !c.Orbit.hasTLE() && c.Orbit.SemiMajorAxisKm == 0 {
		c.Orbit.SemiMajorAxisKm = d.Orbit.SemiMajorAxisKm
		c.Orbit.Eccentricity = d.Orbit.Eccentricity
		c.Orbit.InclinationDeg = d.Orbit.InclinationDeg
	}
	if c.Antenna.SpinRateRPM == 0 {
		c.Antenna.SpinRateRPM = d.Antenna.SpinRateRPM
	}

	in, di := &c.Instrument, d.Instrument
	fill(&in.TxFrequencyHz, di.TxFrequencyHz)
	fill(&in.ChirpRateHzPerSec, di.ChirpRateHzPerSec)
	fill(&in.TxPulseWidthSec, di.TxPulseWidthSec)
	fill(&in.RxGateWidthSec, di.RxGateWidthSec)
	fill(&in.GateDelayResolutionS, di.GateDelayResolutionS)
	fill(&in.PRISec, di.PRISec)

	if len(c.Beams) == 0 {
		c.Beams = d.Beams
	}
	for i := range c.Beams {
		if c.Beams[i].Name == "" {
			c.Beams[i].Name = fmt.Sprintf("beam%d", i+1)
		}
	}

	if c.Slices.ScienceSlices == 0 {
		c.Slices.ScienceSlices = d.Slices.ScienceSlices
		c.Slices.GuardSlicesPerSide = d.Slices.GuardSlicesPerSide
	}
	fill(&c.Slices.ScienceBandwidthHz, d.Slices.ScienceBandwidthHz)
	if c.Slices.GuardSlicesPerSide > 0 {
		fill(&c.Slices.GuardBandwidthHz, c.Slices.ScienceBandwidthHz)
	}
	fill(&c.Slices.FreqToleranceHz, d.Slices.FreqToleranceHz)

	if c.Tables.OrbitSteps == 0 {
		c.Tables.OrbitSteps = d.Tables.OrbitSteps
	}
	if c.Tables.AzimuthSteps == 0 {
		c.Tables.AzimuthSteps = d.Tables.AzimuthSteps
	}
}

func fill(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

// Validate reports the first invalid value, wrapped in ErrInvalid.
func (c Config) Validate() error {
	switch c.Earth.Model {
	case "wgs84":
	case "sphere":
		if c.Earth.RadiusKm <= 0 {
			return fmt.Errorf("%w: earth.radius_km must be positive for a sphere", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: earth.model %q", ErrInvalid, c.Earth.Model)
	}
	if c.Earth.VelocityFrame != "inertial" {
		if _, err := core.VelocityFrameByName(c.Earth.VelocityFrame); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	if c.Orbit.hasTLE() {
		if _, err := c.Orbit.epoch(); err != nil {
			return fmt.Errorf("%w: orbit.epoch: %v", ErrInvalid, err)
		}
	} else {
		if c.Orbit.SemiMajorAxisKm <= core.WGS84.EquatorialRadius {
			return fmt.Errorf("%w: orbit.semi_major_axis_km %v is inside the Earth", ErrInvalid, c.Orbit.SemiMajorAxisKm)
		}
		if c.Orbit.Eccentricity < 0 || c.Orbit.Eccentricity >= 1 {
			return fmt.Errorf("%w: orbit.eccentricity %v outside [0, 1)", ErrInvalid, c.Orbit.Eccentricity)
		}
	}
	if _, err := ParseOrder(c.Attitude.Order); err != nil {
		return fmt.Errorf("%w: attitude.order: %v", ErrInvalid, err)
	}
	if _, err := ParseOrder(c.Antenna.Pedestal.Order); err != nil {
		return fmt.Errorf("%w: antenna.pedestal.order: %v", ErrInvalid, err)
	}

	in := c.Instrument
	if in.TxFrequencyHz <= 0 || in.TxPulseWidthSec <= 0 || in.RxGateWidthSec <= 0 || in.PRISec <= 0 {
		return fmt.Errorf("%w: instrument frequency, pulse width, gate width and PRI must be positive", ErrInvalid)
	}

	if len(c.Beams) == 0 {
		return fmt.Errorf("%w: no beams", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Beams))
	for _, b := range c.Beams {
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate beam %q", ErrInvalid, b.Name)
		}
		seen[b.Name] = true
		if err := b.antennaBeam().Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Slices.FreqToleranceHz <= 0 {
		return fmt.Errorf("%w: slices.freq_tolerance_hz must be positive", ErrInvalid)
	}
	if c.Tables.OrbitSteps <= 0 || c.Tables.AzimuthSteps < 3 {
		return fmt.Errorf("%w: tables need orbit_steps > 0 and azimuth_steps >= 3", ErrInvalid)
	}
	if c.Tables.DTCClampMaxHz < c.Tables.DTCClampMinHz {
		return fmt.Errorf("%w: dtc clamp max below min", ErrInvalid)
	}
	return nil
}

// Load reads path, fills defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, rejecting unknown keys.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseOrder converts an axis order such as "xyz" into rotation axes. The
// empty string is the default order.
func ParseOrder(s string) ([3]core.Axis, error) {
	var order [3]core.Axis
	if s == "" {
		return order, nil
	}
	s = strings.ToLower(s)
	if len(s) != 3 {
		return order, fmt.Errorf("order %q must name three axes", s)
	}
	used := map[core.Axis]bool{}
	for i, r := range s {
		var a core.Axis
		switch r {
		case 'x', '1':
			a = core.AxisX
		case 'y', '2':
			a = core.AxisY
		case 'z', '3':
			a = core.AxisZ
		default:
			return order, fmt.Errorf("order %q: unknown axis %q", s, r)
		}
		if used[a] {
			return order, fmt.Errorf("order %q repeats an axis", s)
		}
		used[a] = true
		order[i] = a
	}
	return order, nil
}

func (o OrbitConfig) hasTLE() bool {
	return o.TLELine1 != "" && o.TLELine2 != ""
}

func (o OrbitConfig) epoch() (time.Time, error) {
	if o.Epoch == "" {
		return time.Time{}, errors.New("required with a TLE")
	}
	return time.Parse(time.RFC3339, o.Epoch)
}

func (a AttitudeConfig) attitude() (core.Attitude, error) {
	order, err := ParseOrder(a.Order)
	if err != nil {
		return core.Attitude{}, err
	}
	return core.NewAttitude(a.RollDeg*deg, a.PitchDeg*deg, a.YawDeg*deg, order), nil
}

func (b BeamConfig) antennaBeam() antenna.Beam {
	return antenna.Beam{
		Name:             b.Name,
		Look:             b.LookDeg * deg,
		Azimuth:          b.AzimuthDeg * deg,
		LookBeamwidth:    b.LookBeamwidthDeg * deg,
		AzimuthBeamwidth: b.AzimuthBeamwidthDeg * deg,
		PeakGain:         math.Pow(10, b.PeakGainDB/10),
		RxGateWidth:      b.RxGateWidthSec,
	}
}
