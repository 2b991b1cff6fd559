package search

import (
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
)

// FreqGradient returns the partial derivatives of baseband frequency with
// respect to look and azimuth, by symmetric differences.
func (s *Searcher) FreqGradient(d core.LookDirection) (dfDLook, dfDAzim float64, err error) {
	lo, hi := s.params.LookOffset, s.params.AzimuthOffset

	f1, err := s.Frequency(core.LookDirection{Look: d.Look - lo, Azimuth: d.Azimuth})
	if err != nil {
		return 0, 0, err
	}
	f2, err := s.Frequency(core.LookDirection{Look: d.Look + lo, Azimuth: d.Azimuth})
	if err != nil {
		return 0, 0, err
	}
	dfDLook = (f2 - f1) / (2 * lo)

	f1, err = s.Frequency(core.LookDirection{Look: d.Look, Azimuth: d.Azimuth - hi})
	if err != nil {
		return 0, 0, err
	}
	f2, err = s.Frequency(core.LookDirection{Look: d.Look, Azimuth: d.Azimuth + hi})
	if err != nil {
		return 0, 0, err
	}
	dfDAzim = (f2 - f1) / (2 * hi)
	return dfDLook, dfDAzim, nil
}

// isoFrequencyDelta rotates the frequency gradient by 90 degrees.
func (s *Searcher) isoFrequencyDelta(d core.LookDirection) (dLook, dAzim float64, err error) {
	dfDLook, dfDAzim, err := s.FreqGradient(d)
	if err != nil {
		return 0, 0, err
	}
	return dfDAzim, -dfDLook, nil
}

// FindFreq moves from start to a direction whose baseband frequency is
// within tol of target. Each step is a Newton step along the local
// frequency gradient.
func (s *Searcher) FindFreq(target, tol float64, start core.LookDirection) (core.LookDirection, error) {
	d := start
	for i := 0; i < s.params.MaxFreqIterations; i++ {
		f, err := s.Frequency(d)
		if err != nil {
			return d, err
		}
		diff := target - f
		if math.Abs(diff) < tol {
			return d, nil
		}

		dfDLook, dfDAzim, err := s.FreqGradient(d)
		if err != nil {
			return d, err
		}
		g2 := dfDLook*dfDLook + dfDAzim*dfDAzim
		if g2 == 0 {
			return d, ErrFlatFrequency
		}
		d.Look += diff * dfDLook / g2
		d.Azimuth += diff * dfDAzim / g2
	}
	return d, fmt.Errorf("%w: frequency %.1f Hz not reached in %d steps",
		ErrNotConverged, target, s.params.MaxFreqIterations)
}
