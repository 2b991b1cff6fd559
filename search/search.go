// Package search locates antenna look directions on the two-way gain
// surface: directions with a requested baseband frequency, the peak gain
// along an iso-frequency line, and the half-power corners of a slice.
//
// Searches are pure numeric loops. Every loop is bounded either by its own
// convergence test or by a cap from Params.
package search

import (
	"errors"

	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
)

var (
	// ErrNoPeakFound means the gain was flat across the whole bracket.
	ErrNoPeakFound = errors.New("no gain peak found")
	// ErrFlatFrequency means the frequency gradient vanished so no step
	// toward the target frequency exists.
	ErrFlatFrequency = errors.New("baseband frequency gradient is zero")
	// ErrNotConverged is returned when an iteration cap is reached in a
	// loop that has no usable fallback.
	ErrNotConverged = errors.New("search did not converge")
	// ErrQuadraticFit means a three-point fit could not be formed or has
	// no maximum.
	ErrQuadraticFit = errors.New("quadratic fit failed")
)

// Pattern returns the two-way gain of a beam for an antenna-frame
// direction. The gain may be near zero outside the pattern's support.
type Pattern interface {
	Gain(look, azimuth, roundTripTime, spinRate float64) float64
}

// PatternFunc adapts a function to Pattern.
type PatternFunc func(look, azimuth, roundTripTime, spinRate float64) float64

// Gain implements Pattern.
func (f PatternFunc) Gain(look, azimuth, roundTripTime, spinRate float64) float64 {
	return f(look, azimuth, roundTripTime, spinRate)
}

// TargetEvaluator evaluates the echo geometry of an antenna-frame
// direction. core.Scene implements it.
type TargetEvaluator interface {
	TargetInfo(d core.LookDirection) (core.TargetInfo, error)
}

// Recorder receives search outcomes for metrics.
type Recorder interface {
	ObservePeakSearch(outcome string, passes int)
}

// Outcome tags how a multi-pass search terminated.
type Outcome int

const (
	// Converged results met the requested tolerance.
	Converged Outcome = iota
	// BestEffort results ran out of passes; the best estimate seen is
	// returned.
	BestEffort
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case BestEffort:
		return "best_effort"
	}
	return "unknown"
}

// Params tunes the searches. Angles are radians.
type Params struct {
	// LookOffset and AzimuthOffset are the finite difference half-steps
	// of the frequency gradient.
	LookOffset    float64
	AzimuthOffset float64
	// AngleOffset is the initial half-bracket of the golden section
	// search and AngleTolerance its final bracket width.
	AngleOffset    float64
	AngleTolerance float64
	// MaxPasses bounds FindPeakResponseAtFreq and FindPeakGain.
	MaxPasses int
	// PeakAngleOffset spaces the samples of the corner search's first
	// quadratic, LocalAngleOffset those of the refinement.
	PeakAngleOffset  float64
	LocalAngleOffset float64

	MaxFreqIterations int
	MaxWidenSteps     int
	MaxStepSearch     int
}

// DefaultParams returns the standard search tuning.
func DefaultParams() Params {
	return Params{
		LookOffset:        0.005,
		AzimuthOffset:     0.005,
		AngleOffset:       0.002,
		AngleTolerance:    1e-5,
		MaxPasses:         10,
		PeakAngleOffset:   0.00875,
		LocalAngleOffset:  0.000875,
		MaxFreqIterations: 50,
		MaxWidenSteps:     1000,
		MaxStepSearch:     1000,
	}
}

// ApplyDefaults fills zero fields from DefaultParams.
func (p *Params) ApplyDefaults() {
	d := DefaultParams()
	if p.LookOffset <= 0 {
		p.LookOffset = d.LookOffset
	}
	if p.AzimuthOffset <= 0 {
		p.AzimuthOffset = d.AzimuthOffset
	}
	if p.AngleOffset <= 0 {
		p.AngleOffset = d.AngleOffset
	}
	if p.AngleTolerance <= 0 {
		p.AngleTolerance = d.AngleTolerance
	}
	if p.MaxPasses <= 0 {
		p.MaxPasses = d.MaxPasses
	}
	if p.PeakAngleOffset <= 0 {
		p.PeakAngleOffset = d.PeakAngleOffset
	}
	if p.LocalAngleOffset <= 0 {
		p.LocalAngleOffset = d.LocalAngleOffset
	}
	if p.MaxFreqIterations <= 0 {
		p.MaxFreqIterations = d.MaxFreqIterations
	}
	if p.MaxWidenSteps <= 0 {
		p.MaxWidenSteps = d.MaxWidenSteps
	}
	if p.MaxStepSearch <= 0 {
		p.MaxStepSearch = d.MaxStepSearch
	}
}

// Peak is a direction together with its two-way gain.
type Peak struct {
	Direction core.LookDirection
	Gain      float64
}

// Searcher runs searches for one beam of one pulse.
type Searcher struct {
	target   TargetEvaluator
	pattern  Pattern
	spinRate float64
	params   Params
	log      logging.Logger
	recorder Recorder
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithParams overrides the search tuning. Zero fields keep their defaults.
func WithParams(p Params) Option {
	return func(s *Searcher) {
		p.ApplyDefaults()
		s.params = p
	}
}

// WithLogger attaches a logger for convergence warnings.
func WithLogger(l logging.Logger) Option {
	return func(s *Searcher) { s.log = logging.OrNoop(l) }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Searcher) { s.recorder = r }
}

// New returns a Searcher evaluating geometry with target and gain with
// pattern for an antenna spinning at spinRate rad/s.
func New(target TargetEvaluator, pattern Pattern, spinRate float64, opts ...Option) *Searcher {
	s := &Searcher{
		target:   target,
		pattern:  pattern,
		spinRate: spinRate,
		params:   DefaultParams(),
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the effective tuning.
func (s *Searcher) Params() Params {
	return s.params
}

// Response returns the two-way gain toward d, using the round trip time to
// the surface along d.
func (s *Searcher) Response(d core.LookDirection) (float64, error) {
	info, err := s.target.TargetInfo(d)
	if err != nil {
		return 0, err
	}
	return s.pattern.Gain(d.Look, d.Azimuth, info.RoundTripTime, s.spinRate), nil
}

// Frequency returns the baseband frequency of the echo from d.
func (s *Searcher) Frequency(d core.LookDirection) (float64, error) {
	info, err := s.target.TargetInfo(d)
	if err != nil {
		return 0, err
	}
	return info.BasebandFreq, nil
}

func (s *Searcher) observe(outcome Outcome, passes int) {
	if s.recorder != nil {
		s.recorder.ObservePeakSearch(outcome.String(), passes)
	}
}
