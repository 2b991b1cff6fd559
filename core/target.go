package core

import (
	"fmt"
)

// Instrument holds the radar timing and chirp constants used to turn a
// look direction into echo delay and baseband frequency. Frequencies are
// Hz, times are seconds.
type Instrument struct {
	TxFrequency float64
	// ChirpRate is the transmit chirp slope in Hz/s.
	ChirpRate           float64
	TxPulseWidth        float64
	RxGateWidth         float64
	GateDelayResolution float64
	GridDelay           float64
	// ProcConstant is the fixed baseband offset of the receiver.
	ProcConstant float64

	// Commanded values, normally taken from the tracking tables.
	RxGateDelay float64
	TxDoppler   float64
}

// Wavelength returns the transmit wavelength in km.
func (in Instrument) Wavelength() float64 {
	return SpeedOfLight / in.TxFrequency
}

// ChirpStartOffset is the chirp frequency at the start of the transmitted
// pulse relative to its center.
func (in Instrument) ChirpStartOffset() float64 {
	return in.ChirpRate * ((in.TxPulseWidth+in.GateDelayResolution)/2 + in.GridDelay)
}

// DechirpStartOffset is the dechirp frequency at the start of the receive
// gate relative to its center.
func (in Instrument) DechirpStartOffset() float64 {
	return in.ChirpRate * in.RxGateWidth / 2
}

// TargetInfo describes the echo from one look direction.
type TargetInfo struct {
	// SlantRange in km.
	SlantRange    float64
	RoundTripTime float64
	DopplerFreq   float64
	BasebandFreq  float64
	Intercept     Vec3
	// Look is the geocentric unit look vector.
	Look Vec3
}

// Antenna describes how the spinning antenna is mounted on the body.
type Antenna struct {
	// Pedestal rotates the body frame into the antenna frame at zero
	// azimuth.
	Pedestal Attitude
	// SpinRate in rad/s.
	SpinRate float64
}

// TargetGeometry combines the Earth model, the velocity frame convention
// and the instrument constants.
type TargetGeometry struct {
	Earth      Ellipsoid
	Velocity   VelocityFrame
	Instrument Instrument
}

// WithInstrument returns a copy using in.
func (g TargetGeometry) WithInstrument(in Instrument) TargetGeometry {
	g.Instrument = in
	return g
}

// SpacecraftFrame returns the transform from geocentric coordinates into
// the spacecraft velocity frame, with its origin at the spacecraft.
func (g TargetGeometry) SpacecraftFrame(s OrbitState) (FrameTransform, error) {
	vf := g.Velocity
	if vf == nil {
		vf = GeodeticFrame{}
	}
	x, y, z, err := vf.Axes(g.Earth, s)
	if err != nil {
		return FrameTransform{}, err
	}
	return NewFrameFromAxes(x, y, z, s.Position), nil
}

// AntennaFrameToGC returns the transform from the antenna frame at the
// given spin azimuth back to geocentric coordinates. The chain is
// geocentric, velocity frame, body (att), pedestal, azimuth.
func (g TargetGeometry) AntennaFrameToGC(s OrbitState, att Attitude, ant Antenna, azimuth float64) (FrameTransform, error) {
	gcToVel, err := g.SpacecraftFrame(s)
	if err != nil {
		return FrameTransform{}, err
	}
	gcToAnt := gcToVel.
		Compose(NewFrameFromAttitude(att, Vec3{})).
		Compose(NewFrameFromAttitude(ant.Pedestal, Vec3{})).
		Compose(NewFrameFromRotations(Vec3{}, Rotation{Axis: AxisZ, Angle: azimuth}))
	return gcToAnt.Invert(), nil
}

// Evaluate computes the echo parameters for a look direction given in the
// frame that antennaToGC maps back to geocentric coordinates.
func (g TargetGeometry) Evaluate(antennaToGC FrameTransform, pos, vel Vec3, look LookDirection) (TargetInfo, error) {
	return g.EvaluateVector(pos, vel, antennaToGC.ForwardDirection(look.Unit()))
}

// EvaluateVector computes the echo parameters for a geocentric look vector.
func (g TargetGeometry) EvaluateVector(pos, vel, look Vec3) (TargetInfo, error) {
	ulook := look.Unit()
	spot, err := g.Earth.Intercept(pos, ulook)
	if err != nil {
		return TargetInfo{}, err
	}

	slant := spot.DistanceTo(pos)
	rtt := 2 * slant / SpeedOfLight

	vSpot := Vec3{X: -EarthRotationRate * spot.Y, Y: EarthRotationRate * spot.X}
	vRel := vel.Sub(vSpot)
	in := g.Instrument
	doppler := 2 * vRel.Dot(ulook) / in.Wavelength()

	baseband := -in.TxDoppler - doppler - in.ChirpStartOffset() + in.DechirpStartOffset() +
		in.ProcConstant - in.ChirpRate*(rtt-in.RxGateDelay)

	return TargetInfo{
		SlantRange:    slant,
		RoundTripTime: rtt,
		DopplerFreq:   doppler,
		BasebandFreq:  baseband,
		Intercept:     spot,
		Look:          ulook,
	}, nil
}

// Scene fixes the spacecraft state and antenna orientation for one pulse
// so look directions can be evaluated repeatedly.
type Scene struct {
	Geometry TargetGeometry
	// Frame maps antenna-frame directions to geocentric coordinates.
	Frame FrameTransform
	State OrbitState
}

// NewScene builds the scene for a spacecraft state, attitude and antenna
// azimuth.
func NewScene(g TargetGeometry, s OrbitState, att Attitude, ant Antenna, azimuth float64) (Scene, error) {
	frame, err := g.AntennaFrameToGC(s, att, ant, azimuth)
	if err != nil {
		return Scene{}, fmt.Errorf("antenna frame at t=%.3f: %w", s.Time, err)
	}
	return Scene{Geometry: g, Frame: frame, State: s}, nil
}

// LookVector returns the geocentric unit vector for an antenna-frame
// direction.
func (s Scene) LookVector(d LookDirection) Vec3 {
	return s.Frame.ForwardDirection(d.Unit())
}

// TargetInfo evaluates an antenna-frame direction.
func (s Scene) TargetInfo(d LookDirection) (TargetInfo, error) {
	return s.Geometry.Evaluate(s.Frame, s.State.Position, s.State.Velocity, d)
}

// WithInstrument returns a copy of the scene using in.
func (s Scene) WithInstrument(in Instrument) Scene {
	s.Geometry = s.Geometry.WithInstrument(in)
	return s
}
