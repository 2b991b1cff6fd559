package footprint

import (
	"context"
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/search"
)

const (
	// DefaultSpotOutlinePoints is the number of outline vertices of a spot.
	DefaultSpotOutlinePoints = 36
	// DefaultContourLevel is the outline's two-way gain relative to peak.
	DefaultContourLevel = 0.5

	spotMaxOffAxis  = 5 * math.Pi / 180
	spotOffAxisStep = 0.01 * math.Pi / 180
)

// Spot is the ground footprint of a whole pulse.
type Spot struct {
	// Peak is the two-way gain maximum in the antenna frame.
	Peak          search.Peak
	RoundTripTime float64
	// Centroid is the surface point under the two-way peak.
	Centroid   core.Vec3
	LookVector core.Vec3
	// Outline is closed: the last vertex repeats the first.
	Outline []core.Vec3
}

// LocateSpot finds the two-way gain peak near boresight and traces the
// contour where the gain falls to level times the peak. points vertices are
// spaced evenly in angle around the peak.
func (b *Builder) LocateSpot(ctx context.Context, boresight core.LookDirection, level float64, points int) (Spot, error) {
	if points <= 0 {
		points = DefaultSpotOutlinePoints
	}
	if level <= 0 || level >= 1 {
		level = DefaultContourLevel
	}

	peak, err := b.search.FindPeakGain(ctx, boresight)
	if err != nil {
		return Spot{}, fmt.Errorf("two-way peak: %w", err)
	}
	info, err := b.scene.TargetInfo(peak.Direction)
	if err != nil {
		return Spot{}, fmt.Errorf("two-way peak: %w", err)
	}
	spot := Spot{
		Peak:          peak,
		RoundTripTime: info.RoundTripTime,
		Centroid:      info.Intercept,
		LookVector:    info.Intercept.Sub(b.scene.State.Position),
		Outline:       make([]core.Vec3, 0, points+1),
	}

	// The beam frame puts the peak on +Z so the contour is a function of
	// the angle around it.
	beamToAnt := core.NewFrameFromAttitude(
		core.NewAttitude(0, peak.Direction.Look, peak.Direction.Azimuth,
			[3]core.Axis{core.AxisZ, core.AxisY, core.AxisX}),
		core.Vec3{}).Invert()

	steps := int(math.Log2(spotMaxOffAxis/spotOffAxisStep)) + 1
	for i := 0; i <= points; i++ {
		phi := 2 * math.Pi * float64(i) / float64(points)
		inside, outside := 0.0, spotMaxOffAxis
		var ant core.Vec3
		for j := 0; j < steps; j++ {
			theta := (inside + outside) / 2
			ant = beamToAnt.ForwardDirection(core.Spherical(theta, phi))
			_, look, azim := ant.SphericalAngles()
			if b.pattern.Gain(look, azim, spot.RoundTripTime, b.spinRate) > level*peak.Gain {
				inside = theta
			} else {
				outside = theta
			}
		}
		p, err := b.scene.Geometry.Earth.Intercept(b.scene.State.Position, b.scene.Frame.ForwardDirection(ant))
		if err != nil {
			return Spot{}, fmt.Errorf("spot outline vertex %d: %w", i, err)
		}
		spot.Outline = append(spot.Outline, p)
	}
	return spot, nil
}
