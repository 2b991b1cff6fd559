// Package orbit supplies spacecraft state and attitude as functions of time.
package orbit

import (
	"errors"
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
)

// ErrNoNodeCrossing is returned when no ascending node is found within the
// search window.
var ErrNoNodeCrossing = errors.New("no ascending node crossing found")

// Propagator returns the spacecraft state at a time given in seconds since
// the run epoch. Positions are rotating geocentric km and velocities are
// inertial km/s expressed in the same axes.
type Propagator interface {
	State(t float64) (core.OrbitState, error)
}

// AttitudeSource returns the spacecraft body attitude relative to the
// velocity frame.
type AttitudeSource interface {
	Attitude(t float64) core.Attitude
}

// FixedAttitude is a constant attitude.
type FixedAttitude core.Attitude

// Attitude implements AttitudeSource.
func (a FixedAttitude) Attitude(float64) core.Attitude {
	return core.Attitude(a)
}

// Period estimates the orbital period from a state vector using the
// vis-viva equation.
func Period(s core.OrbitState) (float64, error) {
	r := s.Position.Norm()
	v := s.Velocity.Norm()
	inv := 2/r - v*v/core.EarthMu
	if r == 0 || inv <= 0 {
		return 0, fmt.Errorf("state at t=%.3f is not on a bound orbit", s.Time)
	}
	a := 1 / inv
	return 2 * math.Pi * math.Sqrt(a*a*a/core.EarthMu), nil
}

const (
	nodeScanStep   = 30.0
	nodeTolerance  = 1e-6
	nodeMaxBisects = 100
)

// FindAscendingNode returns the first time at or after from, within window
// seconds, when the spacecraft crosses the equator heading north.
func FindAscendingNode(p Propagator, from, window float64) (float64, error) {
	prev, err := p.State(from)
	if err != nil {
		return 0, err
	}
	if prev.Position.Z == 0 && prev.Velocity.Z > 0 {
		return from, nil
	}
	for t := from + nodeScanStep; t <= from+window; t += nodeScanStep {
		cur, err := p.State(t)
		if err != nil {
			return 0, err
		}
		if prev.Position.Z < 0 && cur.Position.Z >= 0 {
			return bisectNode(p, t-nodeScanStep, t)
		}
		prev = cur
	}
	return 0, fmt.Errorf("%w within %.0f s of t=%.3f", ErrNoNodeCrossing, window, from)
}

func bisectNode(p Propagator, lo, hi float64) (float64, error) {
	for i := 0; i < nodeMaxBisects && hi-lo > nodeTolerance; i++ {
		mid := (lo + hi) / 2
		s, err := p.State(mid)
		if err != nil {
			return 0, err
		}
		if s.Position.Z < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}
