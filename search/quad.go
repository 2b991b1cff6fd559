package search

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jplwindssalinity/v3proc-sub010/core"
)

// Quadratic holds c0 + c1*s + c2*s^2.
type Quadratic [3]float64

// At evaluates the quadratic.
func (q Quadratic) At(s float64) float64 {
	return q[0] + s*(q[1]+s*q[2])
}

// Peak returns the location and value of the maximum. It fails when the
// quadratic opens upward or is linear.
func (q Quadratic) Peak() (s, value float64, err error) {
	if q[2] >= 0 {
		return 0, 0, fmt.Errorf("%w: no maximum (c2=%g)", ErrQuadraticFit, q[2])
	}
	s = -q[1] / (2 * q[2])
	return s, q[0] - q[1]*q[1]/(4*q[2]), nil
}

// fitQuadratic passes a quadratic through three points.
func fitQuadratic(s, g [3]float64) (Quadratic, error) {
	// Scale the abscissa to order one to keep the system well conditioned.
	h := math.Max(math.Abs(s[0]), math.Abs(s[2]))
	if h == 0 {
		return Quadratic{}, fmt.Errorf("%w: coincident points", ErrQuadraticFit)
	}
	a := mat.NewDense(3, 3, nil)
	for i := range s {
		u := s[i] / h
		a.SetRow(i, []float64{1, u, u * u})
	}
	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(3, g[:])); err != nil {
		return Quadratic{}, fmt.Errorf("%w: %v", ErrQuadraticFit, err)
	}
	return Quadratic{c.AtVec(0), c.AtVec(1) / h, c.AtVec(2) / (h * h)}, nil
}

// quadFit samples the gain at three directions and fits a quadratic in the
// signed distance from the middle one.
func (s *Searcher) quadFit(pts [3]core.LookDirection) (Quadratic, [3]float64, error) {
	var dist, gain [3]float64
	dist[0] = -angularDistance(pts[1], pts[0])
	dist[2] = angularDistance(pts[2], pts[1])
	for i, p := range pts {
		g, err := s.Response(p)
		if err != nil {
			return Quadratic{}, dist, err
		}
		gain[i] = g
	}
	q, err := fitQuadratic(dist, gain)
	return q, dist, err
}

func angularDistance(a, b core.LookDirection) float64 {
	return math.Hypot(a.Look-b.Look, a.Azimuth-b.Azimuth)
}
