package orbit

import (
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
)

// Elements are classical orbital elements at the run epoch. Angles are
// radians, the semi-major axis is km.
type Elements struct {
	SemiMajorAxis       float64
	Eccentricity        float64
	Inclination         float64
	RAAN                float64
	ArgumentOfPeriapsis float64
	MeanAnomaly         float64
	// GreenwichAngle is the Earth rotation angle at the epoch.
	GreenwichAngle float64
}

// MeanMotion returns the mean motion in rad/s.
func (el Elements) MeanMotion() float64 {
	a := el.SemiMajorAxis
	return math.Sqrt(core.EarthMu / (a * a * a))
}

// Period returns the two-body period in seconds.
func (el Elements) Period() float64 {
	return 2 * math.Pi / el.MeanMotion()
}

// Kepler propagates a two-body orbit.
type Kepler struct {
	el       Elements
	eciToPQW core.FrameTransform
}

// NewKepler validates the elements and returns a propagator.
func NewKepler(el Elements) (*Kepler, error) {
	if el.SemiMajorAxis <= 0 {
		return nil, fmt.Errorf("semi-major axis %v km must be positive", el.SemiMajorAxis)
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return nil, fmt.Errorf("eccentricity %v outside [0, 1)", el.Eccentricity)
	}
	return &Kepler{
		el: el,
		eciToPQW: core.NewFrameFromRotations(core.Vec3{},
			core.Rotation{Axis: core.AxisZ, Angle: el.RAAN},
			core.Rotation{Axis: core.AxisX, Angle: el.Inclination},
			core.Rotation{Axis: core.AxisZ, Angle: el.ArgumentOfPeriapsis},
		),
	}, nil
}

// Elements returns the elements the propagator was built from.
func (k *Kepler) Elements() Elements {
	return k.el
}

// State implements Propagator.
func (k *Kepler) State(t float64) (core.OrbitState, error) {
	el := k.el
	e := el.Eccentricity
	bigE := eccentricAnomaly(el.MeanAnomaly+el.MeanMotion()*t, e)
	nu := math.Atan2(math.Sqrt(1-e*e)*math.Sin(bigE), math.Cos(bigE)-e)

	p := el.SemiMajorAxis * (1 - e*e)
	r := el.SemiMajorAxis * (1 - e*math.Cos(bigE))
	sNu, cNu := math.Sincos(nu)
	vScale := math.Sqrt(core.EarthMu / p)

	posECI := k.eciToPQW.BackwardDirection(core.Vec3{X: r * cNu, Y: r * sNu})
	velECI := k.eciToPQW.BackwardDirection(core.Vec3{X: -vScale * sNu, Y: vScale * (e + cNu)})

	earth := core.NewFrameFromRotations(core.Vec3{},
		core.Rotation{Axis: core.AxisZ, Angle: el.GreenwichAngle + core.EarthRotationRate*t})
	return core.OrbitState{
		Time:     t,
		Position: earth.ForwardDirection(posECI),
		Velocity: earth.ForwardDirection(velECI),
	}, nil
}

// eccentricAnomaly solves Kepler's equation by Newton iteration.
func eccentricAnomaly(meanAnomaly, e float64) float64 {
	m := math.Mod(meanAnomaly, 2*math.Pi)
	if e == 0 {
		return m
	}
	bigE := m
	if e >= 0.8 {
		bigE = math.Pi
	}
	for i := 0; i < 50; i++ {
		delta := (bigE - e*math.Sin(bigE) - m) / (1 - e*math.Cos(bigE))
		bigE -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return bigE
}
