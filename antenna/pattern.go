// Package antenna models scatterometer beams: where each beam points in the
// antenna frame and an analytic two-way gain pattern around that pointing.
package antenna

import (
	"errors"
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
)

// Beam describes one beam of the spinning antenna.
type Beam struct {
	Name string
	// Look and Azimuth give the electrical boresight in the antenna frame,
	// radians.
	Look    float64
	Azimuth float64
	// LookBeamwidth and AzimuthBeamwidth are one-way 3 dB widths, radians.
	LookBeamwidth    float64
	AzimuthBeamwidth float64
	// PeakGain is the one-way linear gain at boresight.
	PeakGain float64
	// RxGateWidth overrides the instrument gate width when non-zero.
	RxGateWidth float64
}

// Boresight returns the electrical boresight direction.
func (b Beam) Boresight() core.LookDirection {
	return core.LookDirection{Look: b.Look, Azimuth: b.Azimuth}
}

// ApplyTo returns in with the beam's gate width override applied.
func (b Beam) ApplyTo(in core.Instrument) core.Instrument {
	if b.RxGateWidth > 0 {
		in.RxGateWidth = b.RxGateWidth
	}
	return in
}

// Validate reports beams that cannot produce a pattern.
func (b Beam) Validate() error {
	if b.LookBeamwidth <= 0 || b.AzimuthBeamwidth <= 0 {
		return fmt.Errorf("beam %q: beamwidths must be positive", b.Name)
	}
	if b.PeakGain <= 0 {
		return fmt.Errorf("beam %q: peak gain must be positive", b.Name)
	}
	return nil
}

// Pattern is a separable Gaussian gain pattern around a beam's boresight.
// The two-way gain accounts for the antenna turning between transmit and
// receive.
type Pattern struct {
	beam      Beam
	beamFrame core.FrameTransform
	kLook     float64
	kAzim     float64
}

// ErrInvalidBeam is returned by NewPattern for unusable beam parameters.
var ErrInvalidBeam = errors.New("invalid beam")

// NewPattern builds the pattern for b.
func NewPattern(b Beam) (*Pattern, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBeam, err)
	}
	ln4 := 4 * math.Ln2
	return &Pattern{
		beam: b,
		beamFrame: core.NewFrameFromAttitude(
			core.NewAttitude(0, b.Look, b.Azimuth, [3]core.Axis{core.AxisZ, core.AxisY, core.AxisX}),
			core.Vec3{}),
		kLook: ln4 / (b.LookBeamwidth * b.LookBeamwidth),
		kAzim: ln4 / (b.AzimuthBeamwidth * b.AzimuthBeamwidth),
	}, nil
}

// Beam returns the beam the pattern was built for.
func (p *Pattern) Beam() Beam {
	return p.beam
}

// OneWayGain returns the linear gain toward an antenna-frame direction.
func (p *Pattern) OneWayGain(look, azimuth float64) float64 {
	v := p.beamFrame.ForwardDirection(core.Spherical(look, azimuth))
	if v.Z <= 0 {
		return 0
	}
	ex := math.Atan2(v.X, v.Z)
	ey := math.Atan2(v.Y, v.Z)
	return p.beam.PeakGain * math.Exp(-(p.kLook*ex*ex + p.kAzim*ey*ey))
}

// Gain returns the two-way gain for an echo from the given antenna-frame
// direction. The antenna spins by spinRate*roundTripTime before the echo
// returns, so the receive direction lags in azimuth.
func (p *Pattern) Gain(look, azimuth, roundTripTime, spinRate float64) float64 {
	tx := p.OneWayGain(look, azimuth)
	if tx == 0 {
		return 0
	}
	return tx * p.OneWayGain(look, azimuth-spinRate*roundTripTime)
}
