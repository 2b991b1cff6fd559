// Package footprint projects antenna gain contours onto the Earth: the
// outline and centroid of each frequency slice of a pulse, and the outline
// of the whole spot.
package footprint

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
	"github.com/jplwindssalinity/v3proc-sub010/search"
)

// HalfPowerRatio is the two-way gain ratio, 10^0.3, between a slice's peak
// and its outline.
var HalfPowerRatio = math.Pow(10, 0.3)

// ErrTriangleCorner is returned when a triangular slice's apex cannot be
// interpolated.
var ErrTriangleCorner = errors.New("cannot interpolate triangle corner")

// Slice is the ground footprint of one frequency slice.
type Slice struct {
	Band Band
	// Outline lists the surface corners in order around the slice: the low
	// frequency edge then the high frequency edge. Triangular slices have
	// three corners.
	Outline  []core.Vec3
	Centroid core.Vec3
	// Latitude and Longitude are the geodetic coordinates of the centroid,
	// radians.
	Latitude  float64
	Longitude float64
	// LookVector points from the spacecraft to the centroid.
	LookVector     core.Vec3
	EastAzimuth    float64
	IncidenceAngle float64
	PeakGain       float64
	PeakDirection  core.LookDirection
	// Outcome is BestEffort when either edge peak search ran out of passes.
	Outcome    search.Outcome
	Degenerate bool
}

// Bandwidth returns the slice bandwidth in Hz.
func (s Slice) Bandwidth() float64 { return s.Band.Bandwidth }

// Recorder receives footprint outcomes for metrics.
type Recorder interface {
	ObserveSlice(result string)
}

// Builder locates slices and spots for one pulse of one beam.
type Builder struct {
	scene    core.Scene
	pattern  search.Pattern
	spinRate float64
	search   *search.Searcher
	log      logging.Logger
	recorder Recorder
}

type options struct {
	params    *search.Params
	log       logging.Logger
	recorder  Recorder
	searchRec search.Recorder
}

// Option configures a Builder.
type Option func(*options)

// WithSearchParams overrides the gain search tuning.
func WithSearchParams(p search.Params) Option {
	return func(o *options) { o.params = &p }
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRecorder attaches a metrics recorder. If r also implements
// search.Recorder it receives the peak search outcomes too.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
		if sr, ok := r.(search.Recorder); ok {
			o.searchRec = sr
		}
	}
}

// NewBuilder returns a Builder for the pulse described by scene.
func NewBuilder(scene core.Scene, pattern search.Pattern, spinRate float64, opts ...Option) *Builder {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	sopts := []search.Option{search.WithLogger(o.log)}
	if o.params != nil {
		sopts = append(sopts, search.WithParams(*o.params))
	}
	if o.searchRec != nil {
		sopts = append(sopts, search.WithRecorder(o.searchRec))
	}
	return &Builder{
		scene:    scene,
		pattern:  pattern,
		spinRate: spinRate,
		search:   search.New(scene, pattern, spinRate, sopts...),
		log:      logging.OrNoop(o.log),
		recorder: o.recorder,
	}
}

// Searcher returns the gain searcher bound to the pulse.
func (b *Builder) Searcher() *search.Searcher { return b.search }

// BuildSlice locates the slice with frequency band band, starting each
// search from start, normally the two-way boresight.
func (b *Builder) BuildSlice(ctx context.Context, start core.LookDirection, band Band, freqTol float64) (Slice, error) {
	sl, err := b.buildSlice(ctx, start, band, freqTol)
	if b.recorder != nil {
		result := "ok"
		switch {
		case err != nil:
			result = "error"
		case sl.Outcome == search.BestEffort:
			result = "best_effort"
		}
		b.recorder.ObserveSlice(result)
	}
	return sl, err
}

func (b *Builder) buildSlice(ctx context.Context, start core.LookDirection, band Band, freqTol float64) (Slice, error) {
	sl := Slice{Band: band}

	edges := [2]float64{band.Low, band.High()}
	var ends [2]search.Peak
	for i, f := range edges {
		res, err := b.search.FindPeakResponseAtFreq(ctx, start, f, freqTol)
		if err != nil {
			return Slice{}, fmt.Errorf("peak gain at %.1f Hz: %w", f, err)
		}
		if res.Outcome == search.BestEffort {
			sl.Outcome = search.BestEffort
		}
		ends[i] = res.Peak
	}

	peak, err := b.search.FindPeakResponseForSlice(ends)
	if err != nil {
		return Slice{}, fmt.Errorf("slice peak gain: %w", err)
	}
	sl.PeakGain = peak.Gain
	sl.PeakDirection = peak.Direction
	target := peak.Gain / HalfPowerRatio

	corners := make([]core.LookDirection, 0, 4)
	for i, end := range ends {
		if end.Gain <= target {
			apex, err := triangleCorner(end, peak, target)
			if err != nil {
				return Slice{}, err
			}
			corners = append(corners, apex)
			continue
		}
		c, err := b.search.FindSliceCorners(ctx, end.Direction, target)
		if err != nil {
			return Slice{}, fmt.Errorf("slice corners at %.1f Hz: %w", edges[i], err)
		}
		if c.Degenerate {
			sl.Degenerate = true
		}
		// Walk the outline around the slice: the high edge runs backwards.
		if i == 0 {
			corners = append(corners, c.Points[0], c.Points[1])
		} else {
			corners = append(corners, c.Points[1], c.Points[0])
		}
	}

	e := b.scene.Geometry.Earth
	var sum core.Vec3
	sl.Outline = make([]core.Vec3, 0, len(corners))
	for _, c := range corners {
		spot, err := e.Intercept(b.scene.State.Position, b.scene.LookVector(c))
		if err != nil {
			return Slice{}, fmt.Errorf("slice corner: %w", err)
		}
		gain, err := b.search.Response(c)
		if err != nil {
			return Slice{}, err
		}
		sl.Outline = append(sl.Outline, spot)
		sum = sum.Add(spot.Scale(gain))
	}

	centroid, err := e.Intercept(core.Vec3{}, sum)
	if err != nil {
		return Slice{}, fmt.Errorf("slice centroid: %w", err)
	}
	gd, err := e.ToGeodetic(centroid)
	if err != nil {
		return Slice{}, fmt.Errorf("slice centroid: %w", err)
	}
	sl.Centroid = centroid
	sl.Latitude = gd.Latitude
	sl.Longitude = gd.Longitude
	sl.LookVector = centroid.Sub(b.scene.State.Position)
	sl.EastAzimuth = e.EastAzimuth(centroid, sl.LookVector)
	sl.IncidenceAngle = e.IncidenceAngle(centroid, sl.LookVector)

	if sl.Degenerate {
		b.log.Debug(ctx, "slice corner fit degenerate",
			logging.Float64("band_low_hz", band.Low),
			logging.Float64("bandwidth_hz", band.Bandwidth))
	}
	return sl, nil
}

// triangleCorner interpolates linearly from an edge peak whose gain is
// below the target toward the slice peak.
func triangleCorner(end, peak search.Peak, target float64) (core.LookDirection, error) {
	span := peak.Gain - end.Gain
	if span <= 0 {
		return core.LookDirection{}, fmt.Errorf("%w: edge gain %g not below peak %g", ErrTriangleCorner, end.Gain, peak.Gain)
	}
	t := (target - end.Gain) / span
	return core.LookDirection{
		Look:    end.Direction.Look + t*(peak.Direction.Look-end.Direction.Look),
		Azimuth: end.Direction.Azimuth + t*(peak.Direction.Azimuth-end.Direction.Azimuth),
	}, nil
}

// SliceResult pairs a slice index with its footprint or the error that
// discarded it.
type SliceResult struct {
	Index int
	Slice Slice
	Err   error
}

// BuildSlices builds every slice of layout. A failed slice is reported in
// its result and does not stop the others.
func (b *Builder) BuildSlices(ctx context.Context, start core.LookDirection, layout Layout, freqTol float64) []SliceResult {
	out := make([]SliceResult, layout.Total())
	for i := range out {
		out[i].Index = i
		band, err := layout.Band(i)
		if err != nil {
			out[i].Err = err
			continue
		}
		out[i].Slice, out[i].Err = b.BuildSlice(ctx, start, band, freqTol)
		if out[i].Err != nil {
			b.log.Warn(ctx, "slice discarded",
				logging.Int("slice", i),
				logging.Float64("band_low_hz", band.Low),
				logging.Err(out[i].Err),
				logging.String("failure", core.FailureKind(out[i].Err)))
		}
	}
	return out
}
