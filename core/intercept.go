package core

import (
	"errors"
	"math"
)

// Geometry failures. Either one aborts only the computation that asked for
// the intercept.
var (
	ErrOffEarth        = errors.New("look vector misses the earth")
	ErrBehindSatellite = errors.New("earth intercept is behind the satellite")
)

// Intercept returns the nearest point where the ray sat + s*look, s >= 0,
// meets the ellipsoid surface. The look vector need not be normalized.
func (e Ellipsoid) Intercept(sat, look Vec3) (Vec3, error) {
	l := look.Unit()
	if l.Norm() == 0 {
		return Vec3{}, ErrOffEarth
	}

	zScale := 1 / (1 - e.EccentricitySquared())
	scaledDot := func(a, b Vec3) float64 {
		return a.X*b.X + a.Y*b.Y + a.Z*b.Z*zScale
	}

	a := scaledDot(l, l)
	b := scaledDot(sat, l)
	c := scaledDot(sat, sat) - e.EquatorialRadius*e.EquatorialRadius

	discrim := 4 * (b*b - a*c)
	if discrim < 0 {
		return Vec3{}, ErrOffEarth
	}

	q := math.Sqrt(discrim) / (2 * a)
	s1 := -b/a + q
	s2 := -b/a - q

	// s1 >= s2. A zero range counts as behind: the satellite is on the
	// surface looking away from it.
	s := s1
	switch {
	case s1 <= 0:
		return Vec3{}, ErrBehindSatellite
	case s2 > 0:
		s = s2
	}
	return sat.Add(l.Scale(s)), nil
}

// FailureKind labels geometry errors for metrics and logs. It returns ""
// for errors that are not geometry failures.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrOffEarth):
		return "off_earth"
	case errors.Is(err, ErrBehindSatellite):
		return "behind_satellite"
	}
	return ""
}
