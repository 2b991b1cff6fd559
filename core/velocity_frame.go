package core

import (
	"fmt"
)

// OrbitState is a spacecraft state snapshot in the rotating geocentric
// frame. Velocity is the inertial velocity expressed in geocentric axes.
type OrbitState struct {
	// Time is seconds since the run epoch.
	Time     float64
	Position Vec3
	Velocity Vec3
}

// VelocityFrame selects the convention used to build the spacecraft
// velocity frame (the local attitude reference). All conventions put the
// y axis along z cross v and complete the set with x = y cross z.
type VelocityFrame interface {
	// Axes returns the unit axes of the velocity frame in geocentric
	// coordinates.
	Axes(e Ellipsoid, s OrbitState) (x, y, z Vec3, err error)
	Name() string
}

// GeocentricFrame points +Z at the geocenter.
type GeocentricFrame struct{}

func (GeocentricFrame) Name() string { return "geocentric" }

func (GeocentricFrame) Axes(_ Ellipsoid, s OrbitState) (Vec3, Vec3, Vec3, error) {
	x, y, z := completeAxes(s.Position.Neg(), s.Velocity)
	return x, y, z, nil
}

// GeodeticFrame points +Z at the geodetic nadir point.
type GeodeticFrame struct{}

func (GeodeticFrame) Name() string { return "geodetic" }

func (GeodeticFrame) Axes(e Ellipsoid, s OrbitState) (Vec3, Vec3, Vec3, error) {
	nadir, err := e.Nadir(s.Position)
	if err != nil {
		return Vec3{}, Vec3{}, Vec3{}, fmt.Errorf("geodetic velocity frame: %w", err)
	}
	x, y, z := completeAxes(nadir.Sub(s.Position), s.Velocity)
	return x, y, z, nil
}

// InertialFrame keeps +Z fixed in inertial space, pointing from the surface
// point at (Latitude, Longitude) at time zero toward the geocenter. The
// point is tracked in rotating coordinates, so its longitude drifts west at
// the Earth rotation rate.
type InertialFrame struct {
	// Latitude is geocentric, radians.
	Latitude  float64
	Longitude float64
}

func (InertialFrame) Name() string { return "inertial" }

func (f InertialFrame) Axes(e Ellipsoid, s OrbitState) (Vec3, Vec3, Vec3, error) {
	lon := f.Longitude - s.Time*EarthRotationRate
	x, y, z := completeAxes(e.FromGeocentric(0, lon, f.Latitude).Neg(), s.Velocity)
	return x, y, z, nil
}

func completeAxes(z, v Vec3) (Vec3, Vec3, Vec3) {
	z = z.Unit()
	y := z.Cross(v).Unit()
	x := y.Cross(z).Unit()
	return x, y, z
}

// VelocityFrameByName returns the named convention. Inertial frames need
// their pointing and are not available here.
func VelocityFrameByName(name string) (VelocityFrame, error) {
	switch name {
	case "", "geodetic":
		return GeodeticFrame{}, nil
	case "geocentric":
		return GeocentricFrame{}, nil
	}
	return nil, fmt.Errorf("unknown velocity frame %q", name)
}
