package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrGeodeticNoConvergence is returned when the geocentric to geodetic
// iteration does not settle.
var ErrGeodeticNoConvergence = errors.New("geodetic conversion did not converge")

const (
	geodeticTolerance = 1e-13
	geodeticMaxIter   = 20
)

// Ellipsoid is an oblate reference ellipsoid of revolution about +Z.
type Ellipsoid struct {
	// EquatorialRadius in km.
	EquatorialRadius float64
	Flattening       float64
}

// WGS84 is the reference ellipsoid used unless configured otherwise.
var WGS84 = Ellipsoid{EquatorialRadius: 6378.137, Flattening: 1 / 298.257223563}

// Sphere returns a spherical Earth of the given radius.
func Sphere(radius float64) Ellipsoid {
	return Ellipsoid{EquatorialRadius: radius}
}

// PolarRadius returns the semi-minor axis in km.
func (e Ellipsoid) PolarRadius() float64 {
	return e.EquatorialRadius * (1 - e.Flattening)
}

// EccentricitySquared returns e^2 = f(2-f).
func (e Ellipsoid) EccentricitySquared() float64 {
	return e.Flattening * (2 - e.Flattening)
}

// Geodetic is a position given as altitude above the ellipsoid (km), east
// longitude and geodetic latitude (radians).
type Geodetic struct {
	Altitude  float64
	Longitude float64
	Latitude  float64
}

// FromGeodetic converts altitude, longitude and geodetic latitude to a
// geocentric position.
func (e Ellipsoid) FromGeodetic(g Geodetic) Vec3 {
	e2 := e.EccentricitySquared()
	sLat, cLat := math.Sincos(g.Latitude)
	sLon, cLon := math.Sincos(g.Longitude)
	n := e.EquatorialRadius / math.Sqrt(1-e2*sLat*sLat)
	return Vec3{
		X: (n + g.Altitude) * cLat * cLon,
		Y: (n + g.Altitude) * cLat * sLon,
		Z: (n*(1-e2) + g.Altitude) * sLat,
	}
}

// FromGeocentric converts altitude, longitude and geocentric latitude of the
// surface point to a geocentric position.
func (e Ellipsoid) FromGeocentric(altitude, longitude, gcLatitude float64) Vec3 {
	return e.FromGeodetic(Geodetic{
		Altitude:  altitude,
		Longitude: longitude,
		Latitude:  e.GeodeticLatitude(gcLatitude),
	})
}

// GeocentricLatitude converts a geodetic latitude of a surface point.
func (e Ellipsoid) GeocentricLatitude(gdLatitude float64) float64 {
	return math.Atan(math.Tan(gdLatitude) * (1 - e.EccentricitySquared()))
}

// GeodeticLatitude converts a geocentric latitude of a surface point.
func (e Ellipsoid) GeodeticLatitude(gcLatitude float64) float64 {
	return math.Atan(math.Tan(gcLatitude) / (1 - e.EccentricitySquared()))
}

// ToGeodetic converts a geocentric position to altitude, longitude in
// [0, 2π) and geodetic latitude.
func (e Ellipsoid) ToGeodetic(p Vec3) (Geodetic, error) {
	rho := p.Norm()
	if rho == 0 {
		return Geodetic{Altitude: -e.PolarRadius()}, nil
	}

	lon := math.Atan2(p.Y, p.X)
	if lon < 0 {
		lon += 2 * math.Pi
	}

	a := e.EquatorialRadius
	f := e.Flattening
	e2 := e.EccentricitySquared()
	r := math.Hypot(p.X, p.Y)

	lat := math.Asin(p.Z / rho)
	sLat := math.Sin(lat)
	alt := rho - a*(1-f*sLat*sLat)

	for i := 0; i < geodeticMaxIter; i++ {
		sLat, cLat := math.Sincos(lat)
		g0 := a / math.Sqrt(1-e2*sLat*sLat)
		g1 := g0 + alt
		g2 := g0*(1-f)*(1-f) + alt
		dr := r - g1*cLat
		dz := p.Z - g2*sLat
		dAlt := dr*cLat + dz*sLat
		dLat := (dz*cLat - dr*sLat) / (a + alt + dAlt)
		lat += dLat
		alt += dAlt
		if math.Abs(dLat) < geodeticTolerance && math.Abs(dAlt)/(a+alt) < geodeticTolerance {
			return Geodetic{Altitude: alt, Longitude: lon, Latitude: lat}, nil
		}
	}
	return Geodetic{Altitude: alt, Longitude: lon, Latitude: lat},
		fmt.Errorf("%w: position %+v", ErrGeodeticNoConvergence, p)
}

// Nadir returns the surface point directly below p along the local normal.
func (e Ellipsoid) Nadir(p Vec3) (Vec3, error) {
	g, err := e.ToGeodetic(p)
	if err != nil {
		return Vec3{}, err
	}
	g.Altitude = 0
	return e.FromGeodetic(g), nil
}

// Normal returns the outward unit normal of the ellipsoid surface through p.
func (e Ellipsoid) Normal(p Vec3) Vec3 {
	a2 := e.EquatorialRadius * e.EquatorialRadius
	b := e.PolarRadius()
	return Vec3{X: p.X / a2, Y: p.Y / a2, Z: p.Z / (b * b)}.Unit()
}

// SurfaceFrame returns the local tangent frame at p: X points east, Y north
// and Z along the surface normal. The origin stays at the geocenter so the
// transform is meant for directions.
func (e Ellipsoid) SurfaceFrame(p Vec3) FrameTransform {
	z := e.Normal(p)
	x := Vec3{Z: 1}.Cross(p).Unit()
	y := z.Cross(x)
	return NewFrameFromAxes(x, y, z, Vec3{})
}

// IncidenceAngle returns the angle between the geocentric look vector and
// the inward surface normal at p.
func (e Ellipsoid) IncidenceAngle(p, look Vec3) float64 {
	return math.Acos(clamp(look.Unit().Dot(e.Normal(p).Neg()), -1, 1))
}

// EastAzimuth returns the azimuth of a geocentric look vector in the
// surface frame at p, measured from east toward north in [0, 2π).
func (e Ellipsoid) EastAzimuth(p, look Vec3) float64 {
	_, _, azim := e.SurfaceFrame(p).ForwardDirection(look).SphericalAngles()
	return azim
}
