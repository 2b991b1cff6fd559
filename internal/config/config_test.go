package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/orbit"
	"github.com/jplwindssalinity/v3proc-sub010/search"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if got := cfg.Layout().Total(); got != 12 {
		t.Fatalf("Layout().Total() = %d, want 12", got)
	}
}

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
antenna:
  spin_rate_rpm: 19.8
beams:
  - name: h
    look_deg: 40
    look_beamwidth_deg: 1.5
    azimuth_beamwidth_deg: 1.5
    peak_gain_db: 40
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Earth.Model != "wgs84" || cfg.Earth.VelocityFrame != "geodetic" {
		t.Fatalf("earth = %+v, want wgs84/geodetic", cfg.Earth)
	}
	if cfg.Instrument.TxFrequencyHz != 13.402e9 {
		t.Fatalf("tx frequency = %v, want default", cfg.Instrument.TxFrequencyHz)
	}
	if len(cfg.Beams) != 1 || cfg.Beams[0].Name != "h" {
		t.Fatalf("beams = %+v, want only h", cfg.Beams)
	}
	if cfg.Slices.GuardBandwidthHz != cfg.Slices.ScienceBandwidthHz {
		t.Fatalf("guard bandwidth = %v, want science bandwidth", cfg.Slices.GuardBandwidthHz)
	}

	ant, err := cfg.AntennaMount()
	if err != nil {
		t.Fatalf("AntennaMount: %v", err)
	}
	if want := 19.8 * 2 * math.Pi / 60; math.Abs(ant.SpinRate-want) > 1e-12 {
		t.Fatalf("SpinRate = %v, want %v", ant.SpinRate, want)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if len(cfg.Beams) != 2 {
		t.Fatalf("beams = %d, want the two default beams", len(cfg.Beams))
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("earth:\n  modle: sphere\n")); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sphere without radius", func(c *Config) { c.Earth.Model = "sphere" }},
		{"unknown model", func(c *Config) { c.Earth.Model = "geoid" }},
		{"unknown velocity frame", func(c *Config) { c.Earth.VelocityFrame = "body" }},
		{"orbit inside earth", func(c *Config) { c.Orbit.SemiMajorAxisKm = 6000 }},
		{"hyperbolic orbit", func(c *Config) { c.Orbit.Eccentricity = 1.2 }},
		{"tle without epoch", func(c *Config) { c.Orbit.TLELine1, c.Orbit.TLELine2 = "1", "2" }},
		{"bad attitude order", func(c *Config) { c.Attitude.Order = "xxz" }},
		{"bad pedestal order", func(c *Config) { c.Antenna.Pedestal.Order = "ab" }},
		{"no pri", func(c *Config) { c.Instrument.PRISec = 0 }},
		{"no beams", func(c *Config) { c.Beams = nil }},
		{"duplicate beams", func(c *Config) { c.Beams[1].Name = c.Beams[0].Name }},
		{"zero beamwidth", func(c *Config) { c.Beams[0].LookBeamwidthDeg = 0 }},
		{"no science slices", func(c *Config) { c.Slices.ScienceSlices = 0 }},
		{"zero tolerance", func(c *Config) { c.Slices.FreqToleranceHz = 0 }},
		{"two azimuth steps", func(c *Config) { c.Tables.AzimuthSteps = 2 }},
		{"inverted clamp", func(c *Config) { c.Tables.DTCClampMaxHz = -600000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in   string
		want [3]core.Axis
		ok   bool
	}{
		{"", [3]core.Axis{}, true},
		{"xyz", [3]core.Axis{core.AxisX, core.AxisY, core.AxisZ}, true},
		{"ZYX", [3]core.Axis{core.AxisZ, core.AxisY, core.AxisX}, true},
		{"213", [3]core.Axis{core.AxisY, core.AxisX, core.AxisZ}, true},
		{"xy", [3]core.Axis{}, false},
		{"xyw", [3]core.Axis{}, false},
		{"yyx", [3]core.Axis{}, false},
	}
	for _, tt := range tests {
		got, err := ParseOrder(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseOrder(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("ParseOrder(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := `
earth:
  model: sphere
  radius_km: 6378
  velocity_frame: geocentric
orbit:
  semi_major_axis_km: 7178
  inclination_deg: 90
attitude:
  roll_deg: 1
  order: zyx
tables:
  orbit_steps: 32
  rgc_limit_ms: 10
  dtc_limit_hz: 500000
  dtc_clamp_min_hz: -400000
  dtc_clamp_max_hz: 400000
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	geom, err := cfg.Geometry()
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	if geom.Earth != core.Sphere(6378) {
		t.Fatalf("Earth = %+v, want sphere", geom.Earth)
	}
	if geom.Velocity.Name() != "geocentric" {
		t.Fatalf("velocity frame = %s", geom.Velocity.Name())
	}
	if geom.Instrument.RxGateDelay != 0 || geom.Instrument.ChirpRate != 2.5e8 {
		t.Fatalf("instrument = %+v", geom.Instrument)
	}

	prop, err := cfg.Propagator()
	if err != nil {
		t.Fatalf("Propagator: %v", err)
	}
	k, ok := prop.(*orbit.Kepler)
	if !ok {
		t.Fatalf("Propagator() = %T, want *orbit.Kepler", prop)
	}
	if el := k.Elements(); el.SemiMajorAxis != 7178 || math.Abs(el.Inclination-math.Pi/2) > 1e-12 {
		t.Fatalf("elements = %+v", el)
	}

	att, err := cfg.AttitudeSource()
	if err != nil {
		t.Fatalf("AttitudeSource: %v", err)
	}
	if a := att.Attitude(0); math.Abs(a.Roll-deg) > 1e-15 || a.Order != ([3]core.Axis{core.AxisZ, core.AxisY, core.AxisX}) {
		t.Fatalf("attitude = %+v", a)
	}

	rgc := cfg.CalibConfig(calib.RangeGate)
	if rgc.Limit != 10 || rgc.ClampMax != 0 || rgc.OrbitSteps != 32 {
		t.Fatalf("rgc config = %+v", rgc)
	}
	dtc := cfg.CalibConfig(calib.Doppler)
	if dtc.Limit != 500000 || dtc.ClampMin != -400000 || dtc.ClampMax != 400000 {
		t.Fatalf("dtc config = %+v", dtc)
	}
	if dtc.AzimuthSteps != calib.DefaultAzimuthSteps {
		t.Fatalf("azimuth steps = %d, want default", dtc.AzimuthSteps)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load = %v, want not-exist", err)
	}
}

func TestTLEPropagator(t *testing.T) {
	cfg := Default()
	cfg.Orbit.TLELine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	cfg.Orbit.TLELine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
	cfg.Orbit.Epoch = "2008-09-20T12:25:40Z"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	prop, err := cfg.Propagator()
	if err != nil {
		t.Fatalf("Propagator: %v", err)
	}
	if _, ok := prop.(*orbit.SGP4); !ok {
		t.Fatalf("Propagator() = %T, want *orbit.SGP4", prop)
	}
}

func TestBeamsAndSearch(t *testing.T) {
	cfg := Default()
	cfg.Search.MaxPasses = 4
	beams, err := cfg.CalibBeams()
	if err != nil {
		t.Fatalf("CalibBeams: %v", err)
	}
	if len(beams) != 2 || beams[1].Name != "outer" {
		t.Fatalf("beams = %+v", beams)
	}
	if math.Abs(beams[1].Boresight.Look-46*deg) > 1e-12 {
		t.Fatalf("outer boresight = %+v", beams[1].Boresight)
	}
	// Two-way peak gain is the square of the one-way 41 dB.
	if g := beams[0].Pattern.Gain(40*deg, 0, 0, 0); math.Abs(g/math.Pow(10, 8.2)-1) > 1e-9 {
		t.Fatalf("peak two-way gain = %v", g)
	}

	p := cfg.SearchParams()
	want := search.DefaultParams()
	want.MaxPasses = 4
	if p != want {
		t.Fatalf("SearchParams() = %+v, want %+v", p, want)
	}

	cfg.Earth.VelocityFrame = "inertial"
	cfg.Earth.InertialLatitudeDeg = 10
	vf, err := cfg.VelocityFrame()
	if err != nil {
		t.Fatalf("VelocityFrame: %v", err)
	}
	if in, ok := vf.(core.InertialFrame); !ok || math.Abs(in.Latitude-10*deg) > 1e-15 {
		t.Fatalf("VelocityFrame() = %#v", vf)
	}
}
