package search

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/jplwindssalinity/v3proc-sub010/core"
)

// fieldTarget evaluates a synthetic baseband frequency field.
type fieldTarget func(d core.LookDirection) float64

func (f fieldTarget) TargetInfo(d core.LookDirection) (core.TargetInfo, error) {
	return core.TargetInfo{BasebandFreq: f(d), RoundTripTime: 0.005}, nil
}

type countingRecorder struct {
	outcomes []string
	passes   []int
}

func (r *countingRecorder) ObservePeakSearch(outcome string, passes int) {
	r.outcomes = append(r.outcomes, outcome)
	r.passes = append(r.passes, passes)
}

func azimuthField(d core.LookDirection) float64 { return 1e5 * d.Azimuth }

func gaussianInLook(center, sigma float64) PatternFunc {
	return func(look, _, _, _ float64) float64 {
		x := look - center
		return math.Exp(-x * x / (2 * sigma * sigma))
	}
}

func TestFindPeakResponseUsingDeltasCosSquared(t *testing.T) {
	pattern := PatternFunc(func(look, _, _, _ float64) float64 {
		c := math.Cos(look - 0.3)
		return c * c
	})
	s := New(fieldTarget(azimuthField), pattern, 0)

	for _, start := range []float64{0.3005, 0.31, 0.35, 0.25} {
		p, err := s.FindPeakResponseUsingDeltas(core.LookDirection{Look: start, Azimuth: 1}, 3, 0)
		if err != nil {
			t.Fatalf("start %v: %v", start, err)
		}
		if math.Abs(p.Direction.Look-0.3) > 1e-5 {
			t.Fatalf("start %v: peak look = %v, want 0.3", start, p.Direction.Look)
		}
		if p.Direction.Azimuth != 1 {
			t.Fatalf("start %v: azimuth moved to %v", start, p.Direction.Azimuth)
		}
	}
}

func TestFindPeakResponseUsingDeltasFlat(t *testing.T) {
	flat := PatternFunc(func(_, _, _, _ float64) float64 { return 0.5 })
	s := New(fieldTarget(azimuthField), flat, 0)
	if _, err := s.FindPeakResponseUsingDeltas(core.LookDirection{Look: 0.3}, 1, 0); !errors.Is(err, ErrNoPeakFound) {
		t.Fatalf("flat gain err = %v, want ErrNoPeakFound", err)
	}
	if _, err := s.FindPeakResponseUsingDeltas(core.LookDirection{Look: 0.3}, 0, 0); !errors.Is(err, ErrNoPeakFound) {
		t.Fatalf("zero direction err = %v, want ErrNoPeakFound", err)
	}
}

func TestFindFreq(t *testing.T) {
	field := fieldTarget(func(d core.LookDirection) float64 { return 1e5*d.Azimuth + 4e4*d.Look })
	s := New(field, gaussianInLook(0.3, 0.01), 0)

	d, err := s.FindFreq(30000, 1, core.LookDirection{Look: 0.4, Azimuth: 0.1})
	if err != nil {
		t.Fatalf("FindFreq: %v", err)
	}
	if f := 1e5*d.Azimuth + 4e4*d.Look; math.Abs(f-30000) >= 1 {
		t.Fatalf("frequency = %v, want 30000", f)
	}

	constant := New(fieldTarget(func(core.LookDirection) float64 { return 10 }), gaussianInLook(0, 1), 0)
	if _, err := constant.FindFreq(500, 1, core.LookDirection{}); !errors.Is(err, ErrFlatFrequency) {
		t.Fatalf("constant field err = %v, want ErrFlatFrequency", err)
	}
}

func TestFindPeakResponseAtFreqConverges(t *testing.T) {
	pattern := PatternFunc(func(look, azim, _, _ float64) float64 {
		a, b := math.Cos(look-0.3), math.Cos(azim-0.1)
		return a * a * b * b
	})
	rec := &countingRecorder{}
	s := New(fieldTarget(azimuthField), pattern, 0, WithRecorder(rec))

	res, err := s.FindPeakResponseAtFreq(context.Background(), core.LookDirection{Look: 0.35, Azimuth: 0.25}, 20000, 1)
	if err != nil {
		t.Fatalf("FindPeakResponseAtFreq: %v", err)
	}
	if res.Outcome != Converged || res.Passes != 1 {
		t.Fatalf("outcome %v after %d passes, want converged after 1", res.Outcome, res.Passes)
	}
	if math.Abs(res.Direction.Look-0.3) > 1e-5 || math.Abs(res.Direction.Azimuth-0.2) > 1e-5 {
		t.Fatalf("peak at %+v, want (0.3, 0.2)", res.Direction)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "converged" {
		t.Fatalf("recorded %v", rec.outcomes)
	}
}

func TestFindPeakResponseAtFreqBestEffort(t *testing.T) {
	curved := fieldTarget(func(d core.LookDirection) float64 {
		x := d.Look - 0.3
		return 1e5 * (d.Azimuth + 2*x*x)
	})
	rec := &countingRecorder{}
	s := New(curved, gaussianInLook(0.3, 0.05), 0, WithParams(Params{MaxPasses: 1}), WithRecorder(rec))

	res, err := s.FindPeakResponseAtFreq(context.Background(), core.LookDirection{Look: 0.35, Azimuth: 0.1}, 20000, 1)
	if err != nil {
		t.Fatalf("FindPeakResponseAtFreq: %v", err)
	}
	if res.Outcome != BestEffort {
		t.Fatalf("outcome = %v, want best_effort", res.Outcome)
	}
	if res.FreqError <= 1 {
		t.Fatalf("freq error = %v, want > tolerance", res.FreqError)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "best_effort" || rec.passes[0] != 1 {
		t.Fatalf("recorded %v %v", rec.outcomes, rec.passes)
	}
}

func TestFindSliceCorners(t *testing.T) {
	const sigma = 0.01
	s := New(fieldTarget(azimuthField), gaussianInLook(0.3, sigma), 0)
	center := core.LookDirection{Look: 0.3, Azimuth: 0.2}

	c, err := s.FindSliceCorners(context.Background(), center, 0.5)
	if err != nil {
		t.Fatalf("FindSliceCorners: %v", err)
	}
	if c.Degenerate {
		t.Fatal("unexpected degenerate fit")
	}
	looks := []float64{c.Points[0].Look, c.Points[1].Look}
	sort.Float64s(looks)
	half := sigma * math.Sqrt(2*math.Ln2)
	want := []float64{0.3 - half, 0.3 + half}
	for i := range looks {
		if math.Abs(looks[i]-want[i]) > 1e-5 {
			t.Fatalf("corner %d look = %v, want %v", i, looks[i], want[i])
		}
	}
	for i, p := range c.Points {
		if math.Abs(p.Azimuth-0.2) > 1e-9 {
			t.Fatalf("corner %d left the iso-frequency line: azimuth %v", i, p.Azimuth)
		}
	}
}

func TestFindSliceCornersStepSearch(t *testing.T) {
	// A flat-topped pattern makes the coarse quadratic overshoot, so the
	// fine window has to walk back inward before the crossing is bracketed.
	const w = 0.02
	flatTop := PatternFunc(func(look, _, _, _ float64) float64 {
		x := (look - 0.3) / w
		return 1 / (1 + x*x*x*x)
	})
	s := New(fieldTarget(azimuthField), flatTop, 0)
	c, err := s.FindSliceCorners(context.Background(), core.LookDirection{Look: 0.3, Azimuth: 0.2}, 0.5)
	if err != nil {
		t.Fatalf("FindSliceCorners: %v", err)
	}
	for i, p := range c.Points {
		if off := math.Abs(p.Look - 0.3); math.Abs(off-w) > 2e-5 {
			t.Fatalf("corner %d offset = %v, want %v", i, off, w)
		}
	}
}

func TestFindSliceCornersDegenerate(t *testing.T) {
	s := New(fieldTarget(azimuthField), gaussianInLook(0.3, 0.01), 0)
	center := core.LookDirection{Look: 0.3, Azimuth: 0.2}
	c, err := s.FindSliceCorners(context.Background(), center, 1.5)
	if err != nil {
		t.Fatalf("FindSliceCorners: %v", err)
	}
	if !c.Degenerate || c.Points[0] != center || c.Points[1] != center {
		t.Fatalf("corners = %+v, want degenerate at center", c)
	}
}

func TestFindPeakResponseForSlice(t *testing.T) {
	pattern := gaussianInLook(0.3, 0.01)
	s := New(fieldTarget(azimuthField), pattern, 0)
	end := func(look float64) Peak {
		return Peak{Direction: core.LookDirection{Look: look, Azimuth: 0.2}, Gain: pattern(look, 0.2, 0, 0)}
	}

	p, err := s.FindPeakResponseForSlice([2]Peak{end(0.29), end(0.31)})
	if err != nil {
		t.Fatalf("interior peak: %v", err)
	}
	if math.Abs(p.Gain-1) > 1e-9 || math.Abs(p.Direction.Look-0.3) > 1e-9 {
		t.Fatalf("interior peak = %+v, want gain 1 at look 0.3", p)
	}

	p, err = s.FindPeakResponseForSlice([2]Peak{end(0.3), end(0.32)})
	if err != nil {
		t.Fatalf("end peak: %v", err)
	}
	if p.Direction.Look != 0.3 {
		t.Fatalf("end peak at %v, want 0.3", p.Direction.Look)
	}
}

func TestFindPeakGain(t *testing.T) {
	pattern := PatternFunc(func(look, azim, _, _ float64) float64 {
		x, y := look-0.301, azim-0.198
		return math.Exp(-(x*x + y*y) / (2 * 0.01 * 0.01))
	})
	s := New(fieldTarget(azimuthField), pattern, 0)
	p, err := s.FindPeakGain(context.Background(), core.LookDirection{Look: 0.3, Azimuth: 0.2})
	if err != nil {
		t.Fatalf("FindPeakGain: %v", err)
	}
	if math.Abs(p.Direction.Look-0.301) > 1e-5 || math.Abs(p.Direction.Azimuth-0.198) > 1e-5 {
		t.Fatalf("peak at %+v, want (0.301, 0.198)", p.Direction)
	}
}

func TestQuadratic(t *testing.T) {
	q, err := fitQuadratic([3]float64{-0.5, 0, 1}, [3]float64{
		2 + 3*-0.5 - 4*0.25, 2, 2 + 3 - 4,
	})
	if err != nil {
		t.Fatalf("fitQuadratic: %v", err)
	}
	want := Quadratic{2, 3, -4}
	for i := range q {
		if math.Abs(q[i]-want[i]) > 1e-12 {
			t.Fatalf("coefficients = %v, want %v", q, want)
		}
	}
	s, v, err := q.Peak()
	if err != nil || math.Abs(s-0.375) > 1e-12 || math.Abs(v-q.At(0.375)) > 1e-12 {
		t.Fatalf("Peak() = %v, %v, %v", s, v, err)
	}
	if _, _, err := (Quadratic{0, 0, 1}).Peak(); !errors.Is(err, ErrQuadraticFit) {
		t.Fatalf("upward quadratic err = %v", err)
	}
}

func TestParamsApplyDefaults(t *testing.T) {
	p := Params{MaxPasses: 3}
	p.ApplyDefaults()
	if p.MaxPasses != 3 || p.AngleTolerance != DefaultParams().AngleTolerance {
		t.Fatalf("ApplyDefaults() = %+v", p)
	}
}
