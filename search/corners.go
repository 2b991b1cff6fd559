package search

import (
	"context"
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
)

// Corners are the two directions on an iso-frequency line, on either side
// of its gain peak, where the gain equals a target.
type Corners struct {
	Points [2]core.LookDirection
	// Degenerate is set when the target gain is above the fitted peak.
	// Both points are then the starting direction.
	Degenerate bool
}

// FindSliceCorners locates where the gain crosses targetGain along the
// iso-frequency line through center. A coarse quadratic about center gives
// first guesses which are refined with a fine local quadratic.
func (s *Searcher) FindSliceCorners(ctx context.Context, center core.LookDirection, targetGain float64) (Corners, error) {
	dLook, dAzim, err := s.isoFrequencyDelta(center)
	if err != nil {
		return Corners{}, err
	}
	n := math.Hypot(dLook, dAzim)
	if n == 0 {
		return Corners{}, ErrFlatFrequency
	}
	dLook /= n
	dAzim /= n

	off := s.params.PeakAngleOffset
	q, _, err := s.quadFit([3]core.LookDirection{
		center.Offset(dLook, dAzim, -off),
		center,
		center.Offset(dLook, dAzim, off),
	})
	if err != nil {
		return Corners{}, err
	}

	disc := q[1]*q[1] - 4*q[2]*(q[0]-targetGain)
	if disc < 0 || q[2] == 0 {
		s.log.Debug(ctx, "slice corner fit degenerate",
			logging.Float64("target_gain", targetGain),
			logging.Float64("look", center.Look),
			logging.Float64("azimuth", center.Azimuth))
		return Corners{Points: [2]core.LookDirection{center, center}, Degenerate: true}, nil
	}

	var out Corners
	root := math.Sqrt(disc)
	for i, sign := range [2]float64{-1, 1} {
		at := (-q[1] + sign*root) / (2 * q[2])
		guess := center.Offset(dLook, dAzim, at)
		p, err := s.refineCorner(guess, dLook, dAzim, targetGain)
		if err != nil {
			return Corners{}, err
		}
		out.Points[i] = p
	}
	return out, nil
}

// refineCorner walks a three-sample window along (dLook, dAzim) until it
// no longer lies wholly below the target on a monotone flank, then solves a
// local quadratic for the crossing nearest the window centre.
func (s *Searcher) refineCorner(c core.LookDirection, dLook, dAzim, target float64) (core.LookDirection, error) {
	h := s.params.LocalAngleOffset
	var g [3]float64
	for i := range g {
		v, err := s.Response(c.Offset(dLook, dAzim, float64(i-1)*h))
		if err != nil {
			return c, err
		}
		g[i] = v
	}

	steps := 0
	for target > g[0] && g[0] > g[1] && g[1] > g[2] {
		if steps++; steps > s.params.MaxStepSearch {
			return c, fmt.Errorf("%w: corner step search exceeded %d steps", ErrNotConverged, s.params.MaxStepSearch)
		}
		c = c.Offset(dLook, dAzim, -h)
		v, err := s.Response(c.Offset(dLook, dAzim, -h))
		if err != nil {
			return c, err
		}
		g = [3]float64{v, g[0], g[1]}
	}
	for target > g[2] && g[2] > g[1] && g[1] > g[0] {
		if steps++; steps > s.params.MaxStepSearch {
			return c, fmt.Errorf("%w: corner step search exceeded %d steps", ErrNotConverged, s.params.MaxStepSearch)
		}
		c = c.Offset(dLook, dAzim, h)
		v, err := s.Response(c.Offset(dLook, dAzim, h))
		if err != nil {
			return c, err
		}
		g = [3]float64{g[1], g[2], v}
	}

	q, err := fitQuadratic([3]float64{-h, 0, h}, g)
	if err != nil {
		return c, err
	}
	var at float64
	switch {
	case q[2] == 0:
		if q[1] != 0 {
			at = (target - q[0]) / q[1]
		}
	default:
		disc := q[1]*q[1] - 4*q[2]*(q[0]-target)
		if disc < 0 {
			return c, nil
		}
		r := math.Sqrt(disc)
		s1 := (-q[1] + r) / (2 * q[2])
		s2 := (-q[1] - r) / (2 * q[2])
		at = s1
		if math.Abs(s2) < math.Abs(s1) {
			at = s2
		}
	}
	return c.Offset(dLook, dAzim, at), nil
}
