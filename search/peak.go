package search

import (
	"context"
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
)

const (
	goldenRatio = 0.61803399
	goldenComp  = 1 - goldenRatio
)

// PeakResult is the outcome of FindPeakResponseAtFreq.
type PeakResult struct {
	Peak
	// FreqError is |f - target| at the returned direction.
	FreqError float64
	Passes    int
	Outcome   Outcome
}

// FindPeakResponseUsingDeltas maximises the gain along the line through
// start with direction (dLook, dAzim). The direction need not be normalised.
func (s *Searcher) FindPeakResponseUsingDeltas(start core.LookDirection, dLook, dAzim float64) (Peak, error) {
	n := math.Hypot(dLook, dAzim)
	if n == 0 {
		return Peak{}, fmt.Errorf("%w: zero search direction", ErrNoPeakFound)
	}
	dLook /= n
	dAzim /= n

	at := func(x float64) core.LookDirection {
		return start.Offset(dLook, dAzim, x)
	}
	gain := func(x float64) (float64, error) {
		return s.Response(at(x))
	}

	off := s.params.AngleOffset
	ax, cx := -off, off
	var bx float64
	widened := 0
	for {
		bx = ax + (cx-ax)*goldenRatio
		ga, err := gain(ax)
		if err != nil {
			return Peak{}, err
		}
		gb, err := gain(bx)
		if err != nil {
			return Peak{}, err
		}
		gc, err := gain(cx)
		if err != nil {
			return Peak{}, err
		}
		if ga == gb && gb == gc {
			return Peak{}, ErrNoPeakFound
		}
		if ga <= gb && gc <= gb {
			break
		}
		widened++
		if widened > s.params.MaxWidenSteps {
			return Peak{}, fmt.Errorf("%w: bracket still open after %d widenings", ErrNoPeakFound, widened-1)
		}
		if ga > gb {
			ax -= off
		} else {
			cx += off
		}
	}

	x0, x3 := ax, cx
	var x1, x2 float64
	if cx-bx > bx-ax {
		x1 = bx
		x2 = bx + goldenComp*(cx-bx)
	} else {
		x2 = bx
		x1 = bx - goldenComp*(bx-ax)
	}
	f1, err := gain(x1)
	if err != nil {
		return Peak{}, err
	}
	f2, err := gain(x2)
	if err != nil {
		return Peak{}, err
	}
	for x3-x0 > s.params.AngleTolerance {
		if f2 > f1 {
			x0, x1 = x1, x2
			x2 += goldenComp * (x3 - x2)
			f1 = f2
			if f2, err = gain(x2); err != nil {
				return Peak{}, err
			}
		} else {
			x3, x2 = x2, x1
			x1 -= goldenComp * (x1 - x0)
			f2 = f1
			if f1, err = gain(x1); err != nil {
				return Peak{}, err
			}
		}
	}
	if f1 > f2 {
		return Peak{Direction: at(x1), Gain: f1}, nil
	}
	return Peak{Direction: at(x2), Gain: f2}, nil
}

// FindPeakResponseAtFreq finds the gain peak along the iso-frequency line of
// targetFreq near start. Each pass snaps to the frequency, then maximises
// gain along the local iso-frequency direction. When MaxPasses is reached
// without meeting freqTol the direction with the smallest frequency error is
// returned tagged BestEffort.
func (s *Searcher) FindPeakResponseAtFreq(ctx context.Context, start core.LookDirection, targetFreq, freqTol float64) (PeakResult, error) {
	d := start
	var best PeakResult
	for pass := 1; ; pass++ {
		var err error
		if d, err = s.FindFreq(targetFreq, freqTol, d); err != nil {
			return PeakResult{}, err
		}
		dLook, dAzim, err := s.isoFrequencyDelta(d)
		if err != nil {
			return PeakResult{}, err
		}
		peak, err := s.FindPeakResponseUsingDeltas(d, dLook, dAzim)
		if err != nil {
			return PeakResult{}, err
		}
		f, err := s.Frequency(peak.Direction)
		if err != nil {
			return PeakResult{}, err
		}

		cur := PeakResult{Peak: peak, FreqError: math.Abs(f - targetFreq), Passes: pass}
		if pass == 1 || cur.FreqError < best.FreqError {
			best = cur
		}
		if cur.FreqError <= freqTol {
			cur.Outcome = Converged
			s.observe(Converged, pass)
			return cur, nil
		}
		if pass >= s.params.MaxPasses {
			best.Passes = pass
			best.Outcome = BestEffort
			s.log.Warn(ctx, "peak search at frequency did not converge",
				logging.Float64("target_hz", targetFreq),
				logging.Float64("freq_error_hz", best.FreqError),
				logging.Int("passes", pass))
			s.observe(BestEffort, pass)
			return best, nil
		}
		d = peak.Direction
	}
}

// FindPeakResponseForSlice returns the largest gain on the segment joining
// the frequency peaks of a slice's two edges. An end wins when it is at
// least as large as the midpoint and the other end; otherwise a quadratic
// through the three samples locates the interior maximum.
func (s *Searcher) FindPeakResponseForSlice(ends [2]Peak) (Peak, error) {
	p0, p1 := ends[0].Direction, ends[1].Direction
	mid := core.LookDirection{Look: (p0.Look + p1.Look) / 2, Azimuth: (p0.Azimuth + p1.Azimuth) / 2}
	midGain, err := s.Response(mid)
	if err != nil {
		return Peak{}, err
	}

	g0, g1 := ends[0].Gain, ends[1].Gain
	switch {
	case g0 >= midGain && g0 >= g1:
		return ends[0], nil
	case g1 >= midGain && g1 >= g0:
		return ends[1], nil
	}

	span := angularDistance(p1, p0)
	if span == 0 {
		return Peak{Direction: mid, Gain: midGain}, nil
	}
	q, err := fitQuadratic([3]float64{-span / 2, 0, span / 2}, [3]float64{g0, midGain, g1})
	if err != nil {
		return Peak{}, err
	}
	at, peak, err := q.Peak()
	if err != nil {
		return Peak{}, err
	}
	dir := mid.Offset((p1.Look-p0.Look)/span, (p1.Azimuth-p0.Azimuth)/span, at)
	return Peak{Direction: dir, Gain: peak}, nil
}

// FindPeakGain finds the two-way gain maximum near start by alternating
// line searches along look and azimuth.
func (s *Searcher) FindPeakGain(ctx context.Context, start core.LookDirection) (Peak, error) {
	cur := start
	var peak Peak
	for pass := 1; pass <= s.params.MaxPasses; pass++ {
		byLook, err := s.FindPeakResponseUsingDeltas(cur, 1, 0)
		if err != nil {
			return Peak{}, err
		}
		byAzim, err := s.FindPeakResponseUsingDeltas(byLook.Direction, 0, 1)
		if err != nil {
			return Peak{}, err
		}
		moved := angularDistance(byAzim.Direction, cur)
		cur, peak = byAzim.Direction, byAzim
		if moved < s.params.AngleTolerance {
			s.observe(Converged, pass)
			return peak, nil
		}
	}
	s.log.Debug(ctx, "gain peak search stopped at pass limit",
		logging.Int("passes", s.params.MaxPasses),
		logging.Float64("look", peak.Direction.Look),
		logging.Float64("azimuth", peak.Direction.Azimuth))
	s.observe(BestEffort, s.params.MaxPasses)
	return peak, nil
}
