package orbit

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/jplwindssalinity/v3proc-sub010/core"
)

// SGP4 propagates a two-line element set with go-satellite and rotates the
// TEME result into the rotating geocentric frame. The velocity is rotated
// but not corrected for Earth rotation, so it stays inertial.
type SGP4 struct {
	sat   satellite.Satellite
	epoch time.Time
}

// NewSGP4 parses the TLE. Times passed to State are seconds after epoch.
func NewSGP4(line1, line2 string, epoch time.Time) (*SGP4, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	// go-satellite exits the process on malformed lines.
	if len(line1) != 69 || len(line2) != 69 || line1[0] != '1' || line2[0] != '2' {
		return nil, fmt.Errorf("malformed TLE lines (%d, %d chars)", len(line1), len(line2))
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed: code=%d %s", sat.Error, sat.ErrorStr)
	}
	return &SGP4{sat: sat, epoch: epoch.UTC()}, nil
}

// Epoch returns the time corresponding to t = 0.
func (p *SGP4) Epoch() time.Time {
	return p.epoch
}

// State implements Propagator.
func (p *SGP4) State(t float64) (core.OrbitState, error) {
	at := p.epoch.Add(time.Duration(t * float64(time.Second)))
	whole := at.Truncate(time.Second)
	frac := at.Sub(whole).Seconds()

	year, month, day := whole.Date()
	hour, min, sec := whole.Clock()
	pos, vel := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return core.OrbitState{}, fmt.Errorf("sgp4 propagation failed at %s", whole.Format(time.RFC3339))
	}

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd) + frac*core.EarthRotationRate
	earth := core.NewFrameFromRotations(core.Vec3{}, core.Rotation{Axis: core.AxisZ, Angle: gmst})

	r := core.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	v := core.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}
	return core.OrbitState{
		Time:     t,
		Position: earth.ForwardDirection(r.Add(v.Scale(frac))),
		Velocity: earth.ForwardDirection(v),
	}, nil
}
