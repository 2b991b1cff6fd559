package core

import "math"

// Physical constants shared by the geometry layer. Distances are kilometres,
// times are seconds.
const (
	// SpeedOfLight in km/s.
	SpeedOfLight = 299792.458
	// EarthRotationRate is the sidereal rotation rate in rad/s.
	EarthRotationRate = 7.2921150e-5
	// EarthMu is the WGS84 gravitational parameter in km^3/s^2.
	EarthMu = 398600.4418
)

// Vec3 is a geocentric-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns s*v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v x other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Unit returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Spherical builds a unit vector from a polar angle measured from +Z (look)
// and an azimuth measured from +X toward +Y.
func Spherical(look, azimuth float64) Vec3 {
	sl, cl := math.Sincos(look)
	sa, ca := math.Sincos(azimuth)
	return Vec3{X: sl * ca, Y: sl * sa, Z: cl}
}

// SphericalAngles returns the magnitude, polar angle and azimuth of v. The
// azimuth is in [0, 2π).
func (v Vec3) SphericalAngles() (r, look, azimuth float64) {
	r = v.Norm()
	if r == 0 {
		return 0, 0, 0
	}
	look = math.Acos(clamp(v.Z/r, -1, 1))
	azimuth = math.Atan2(v.Y, v.X)
	if azimuth < 0 {
		azimuth += 2 * math.Pi
	}
	return r, look, azimuth
}

// LookDirection is a direction expressed in spherical coordinates of some
// frame's local axes: Look from +Z, Azimuth from +X.
type LookDirection struct {
	Look    float64
	Azimuth float64
}

// Unit returns the unit vector for the direction.
func (d LookDirection) Unit() Vec3 {
	return Spherical(d.Look, d.Azimuth)
}

// Offset returns the direction displaced by scale*(dLook, dAzimuth).
func (d LookDirection) Offset(dLook, dAzimuth, scale float64) LookDirection {
	return LookDirection{Look: d.Look + scale*dLook, Azimuth: d.Azimuth + scale*dAzimuth}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
