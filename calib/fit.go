// Package calib builds the range-gate and Doppler tracking tables of a
// spinning scatterometer. For every beam and orbit-phase bin the ideal gate
// delay or commanded Doppler is sampled over a full antenna revolution and
// fitted with one sinusoid cycle.
package calib

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrTooFewSamples is returned by the fits for fewer than three samples.
var ErrTooFewSamples = errors.New("azimuth fit needs at least three samples")

// Entry is one table row: value(azimuth) = Amplitude*cos(azimuth+Phase)+Bias.
type Entry struct {
	Amplitude float64
	Phase     float64
	Bias      float64
}

// Evaluate returns the fitted value at azimuth.
func (e Entry) Evaluate(azimuth float64) float64 {
	return e.Amplitude*math.Cos(azimuth+e.Phase) + e.Bias
}

// Cost returns the sum of squared residuals of e against samples taken at
// azimuths.
func (e Entry) Cost(azimuths, samples []float64) float64 {
	var sum float64
	for i, a := range azimuths {
		r := e.Evaluate(a) - samples[i]
		sum += r * r
	}
	return sum
}

// SampleAzimuths returns n azimuths evenly spaced over one revolution,
// starting at zero.
func SampleAzimuths(n int) []float64 {
	az := make([]float64, n)
	for i := range az {
		az[i] = 2 * math.Pi * float64(i) / float64(n)
	}
	return az
}

// AzimuthFit fits samples taken at SampleAzimuths(len(samples)).
func AzimuthFit(samples []float64) (Entry, error) {
	return FitAzimuths(SampleAzimuths(len(samples)), samples)
}

// FitAzimuths is the least squares sinusoid fit for arbitrary azimuths. The
// returned amplitude is never negative.
func FitAzimuths(azimuths, samples []float64) (Entry, error) {
	n := len(samples)
	if n < 3 || len(azimuths) != n {
		return Entry{}, fmt.Errorf("%w: got %d samples at %d azimuths", ErrTooFewSamples, n, len(azimuths))
	}
	design := mat.NewDense(n, 3, nil)
	for i, a := range azimuths {
		s, c := math.Sincos(a)
		design.SetRow(i, []float64{c, s, 1})
	}
	var x mat.VecDense
	if err := x.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), samples...))); err != nil {
		return Entry{}, fmt.Errorf("azimuth fit: %w", err)
	}
	// a*cos(az+p) = a*cos(p)*cos(az) - a*sin(p)*sin(az)
	ac, as := x.AtVec(0), -x.AtVec(1)
	return Entry{
		Amplitude: math.Hypot(ac, as),
		Phase:     math.Atan2(as, ac),
		Bias:      x.AtVec(2),
	}, nil
}

// Violates reports whether e exceeds the hardware limit |amplitude|+bias.
// A non-positive limit disables the check.
func (e Entry) Violates(limit float64) bool {
	return limit > 0 && math.Abs(e.Amplitude)+e.Bias > limit
}

const (
	constrainedCoarseStep = 1e-4
	constrainedFineStep   = 1e-7
)

// ConstrainedFit refits samples keeping the phase of start and placing
// amplitude and bias on the limit: (limit*x, limit*(1-x)) for x in [0, 1].
// The returned entry never costs more than either end of that segment.
func ConstrainedFit(azimuths, samples []float64, start Entry, limit float64) Entry {
	cost := func(x float64) float64 {
		return constrainedEntry(start.Phase, limit, x).Cost(azimuths, samples)
	}

	x := 0.5
	if sum := math.Abs(start.Amplitude) + start.Bias; sum > 0 {
		x = clampUnit(math.Abs(start.Amplitude) / sum)
	}
	jx := cost(x)

	step := constrainedCoarseStep
	for step > constrainedFineStep/2 {
		lo, hi := clampUnit(x-step), clampUnit(x+step)
		jlo, jhi := cost(lo), cost(hi)
		switch {
		case jlo < jx && jlo <= jhi:
			x, jx = lo, jlo
		case jhi < jx:
			x, jx = hi, jhi
		default:
			step /= 10
		}
	}

	// Second-order Taylor step from the final bracket.
	h := constrainedFineStep * 10
	if x-h >= 0 && x+h <= 1 {
		jlo, jhi := cost(x-h), cost(x+h)
		d1 := (jhi - jlo) / (2 * h)
		d2 := (jhi - 2*jx + jlo) / (h * h)
		if d2 > 0 {
			if nx := x - d1/d2; nx >= 0 && nx <= 1 {
				if jn := cost(nx); jn < jx {
					x, jx = nx, jn
				}
			}
		}
	}

	for _, end := range [2]float64{0, 1} {
		if j := cost(end); j < jx {
			x, jx = end, j
		}
	}
	return constrainedEntry(start.Phase, limit, x)
}

func constrainedEntry(phase, limit, x float64) Entry {
	return Entry{Amplitude: limit * x, Phase: phase, Bias: limit * (1 - math.Abs(x))}
}

func clampUnit(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
