package config

import (
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/antenna"
	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/footprint"
	"github.com/jplwindssalinity/v3proc-sub010/orbit"
	"github.com/jplwindssalinity/v3proc-sub010/search"
)

// Ellipsoid returns the configured Earth model.
func (c Config) Ellipsoid() core.Ellipsoid {
	if c.Earth.Model == "sphere" {
		return core.Sphere(c.Earth.RadiusKm)
	}
	return core.WGS84
}

// VelocityFrame returns the configured velocity frame convention.
func (c Config) VelocityFrame() (core.VelocityFrame, error) {
	if c.Earth.VelocityFrame == "inertial" {
		return core.InertialFrame{
			Latitude:  c.Earth.InertialLatitudeDeg * deg,
			Longitude: c.Earth.InertialLongitudeDeg * deg,
		}, nil
	}
	return core.VelocityFrameByName(c.Earth.VelocityFrame)
}

// InstrumentConstants returns the radar constants with zero commanded
// values.
func (c Config) InstrumentConstants() core.Instrument {
	in := c.Instrument
	return core.Instrument{
		TxFrequency:         in.TxFrequencyHz,
		ChirpRate:           in.ChirpRateHzPerSec,
		TxPulseWidth:        in.TxPulseWidthSec,
		RxGateWidth:         in.RxGateWidthSec,
		GateDelayResolution: in.GateDelayResolutionS,
		GridDelay:           in.GridDelaySec,
		ProcConstant:        in.ProcConstantHz,
	}
}

// Geometry assembles the target geometry.
func (c Config) Geometry() (core.TargetGeometry, error) {
	vf, err := c.VelocityFrame()
	if err != nil {
		return core.TargetGeometry{}, err
	}
	return core.TargetGeometry{
		Earth:      c.Ellipsoid(),
		Velocity:   vf,
		Instrument: c.InstrumentConstants(),
	}, nil
}

// Propagator returns an SGP4 propagator when a TLE is configured and a
// two-body propagator otherwise.
func (c Config) Propagator() (orbit.Propagator, error) {
	o := c.Orbit
	if o.hasTLE() {
		epoch, err := o.epoch()
		if err != nil {
			return nil, fmt.Errorf("orbit epoch: %w", err)
		}
		p, err := orbit.NewSGP4(o.TLELine1, o.TLELine2, epoch)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	k, err := orbit.NewKepler(orbit.Elements{
		SemiMajorAxis:       o.SemiMajorAxisKm,
		Eccentricity:        o.Eccentricity,
		Inclination:         o.InclinationDeg * deg,
		RAAN:                o.RAANDeg * deg,
		ArgumentOfPeriapsis: o.ArgumentOfPeriapsisDeg * deg,
		MeanAnomaly:         o.MeanAnomalyDeg * deg,
		GreenwichAngle:      o.GreenwichAngleDeg * deg,
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}

// AttitudeSource returns the fixed spacecraft attitude.
func (c Config) AttitudeSource() (orbit.FixedAttitude, error) {
	att, err := c.Attitude.attitude()
	if err != nil {
		return orbit.FixedAttitude{}, err
	}
	return orbit.FixedAttitude(att), nil
}

// AntennaMount returns the antenna mounting and spin rate in rad/s.
func (c Config) AntennaMount() (core.Antenna, error) {
	ped, err := c.Antenna.Pedestal.attitude()
	if err != nil {
		return core.Antenna{}, err
	}
	return core.Antenna{
		Pedestal: ped,
		SpinRate: c.Antenna.SpinRateRPM * 2 * math.Pi / 60,
	}, nil
}

// Patterns builds the gain pattern of every beam, in configuration order.
func (c Config) Patterns() ([]*antenna.Pattern, error) {
	out := make([]*antenna.Pattern, 0, len(c.Beams))
	for _, b := range c.Beams {
		p, err := antenna.NewPattern(b.antennaBeam())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CalibBeams returns the beams in the form the table generator takes.
func (c Config) CalibBeams() ([]calib.Beam, error) {
	patterns, err := c.Patterns()
	if err != nil {
		return nil, err
	}
	out := make([]calib.Beam, len(patterns))
	for i, p := range patterns {
		b := p.Beam()
		out[i] = calib.Beam{Name: b.Name, Boresight: b.Boresight(), Pattern: p, RxGateWidth: b.RxGateWidth}
	}
	return out, nil
}

// Layout returns the slice layout of a pulse.
func (c Config) Layout() footprint.Layout {
	return footprint.Layout{
		ScienceSlices:      c.Slices.ScienceSlices,
		GuardSlicesPerSide: c.Slices.GuardSlicesPerSide,
		ScienceBandwidth:   c.Slices.ScienceBandwidthHz,
		GuardBandwidth:     c.Slices.GuardBandwidthHz,
	}
}

// SearchParams overlays the configured tuning on the defaults.
func (c Config) SearchParams() search.Params {
	s := c.Search
	p := search.Params{
		LookOffset:       s.LookOffsetRad,
		AzimuthOffset:    s.AzimuthOffsetRad,
		AngleOffset:      s.AngleOffsetRad,
		AngleTolerance:   s.AngleToleranceRad,
		MaxPasses:        s.MaxPasses,
		PeakAngleOffset:  s.PeakAngleOffsetRad,
		LocalAngleOffset: s.LocalAngleOffsetRad,
	}
	p.ApplyDefaults()
	return p
}

// CalibConfig returns the generator settings for a table kind.
func (c Config) CalibConfig(kind calib.Kind) calib.Config {
	t := c.Tables
	cfg := calib.Config{
		OrbitSteps:   t.OrbitSteps,
		AzimuthSteps: t.AzimuthSteps,
		StartTime:    t.StartTimeSec,
		Search:       c.SearchParams(),
	}
	switch kind {
	case calib.RangeGate:
		cfg.Limit = t.RGCLimitMs
	case calib.Doppler:
		cfg.Limit = t.DTCLimitHz
		cfg.ClampMin = t.DTCClampMinHz
		cfg.ClampMax = t.DTCClampMaxHz
	}
	return cfg
}
