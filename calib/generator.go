package calib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
	"github.com/jplwindssalinity/v3proc-sub010/orbit"
	"github.com/jplwindssalinity/v3proc-sub010/search"
)

const (
	DefaultOrbitSteps   = 256
	DefaultAzimuthSteps = 90
)

// Config controls table generation.
type Config struct {
	OrbitSteps   int
	AzimuthSteps int
	// Limit bounds |amplitude|+bias. Fits beyond it are redone with
	// ConstrainedFit. Zero disables the check.
	Limit float64
	// ClampMin and ClampMax bound the fitted curve of Doppler tables. Both
	// zero disables clamping.
	ClampMin float64
	ClampMax float64
	// StartTime is where the ascending node search begins, seconds.
	StartTime float64
	Search    search.Params
}

// ApplyDefaults fills zero step counts and search parameters.
func (c *Config) ApplyDefaults() {
	if c.OrbitSteps <= 0 {
		c.OrbitSteps = DefaultOrbitSteps
	}
	if c.AzimuthSteps <= 0 {
		c.AzimuthSteps = DefaultAzimuthSteps
	}
	c.Search.ApplyDefaults()
}

// Recorder receives table generation outcomes for metrics.
type Recorder interface {
	ObserveTableBuild(table, result string, seconds float64)
	ObserveRefit(table string)
}

// BeamResult is the outcome of one beam's table. Table is nil when Err is
// set.
type BeamResult struct {
	Beam   int
	Name   string
	Table  *Table
	Refits int
	Err    error
}

// Generator builds tracking tables for every beam of an instrument.
type Generator struct {
	geometry core.TargetGeometry
	orbit    orbit.Propagator
	antenna  core.Antenna
	beams    []Beam
	cfg      Config

	log      logging.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger attaches a logger. Without one the Generator logs to the
// logger carried by the context, if any.
func WithLogger(l logging.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) { g.tracer = t }
}

// NewGenerator validates its inputs and returns a Generator.
func NewGenerator(geom core.TargetGeometry, prop orbit.Propagator, ant core.Antenna, beams []Beam, cfg Config, opts ...Option) (*Generator, error) {
	if prop == nil {
		return nil, errors.New("calib: nil orbit propagator")
	}
	if len(beams) == 0 {
		return nil, errors.New("calib: no beams")
	}
	for i, b := range beams {
		if b.Pattern == nil {
			return nil, fmt.Errorf("calib: beam %d (%s) has no pattern", i, b.Name)
		}
	}
	cfg.ApplyDefaults()
	g := &Generator{
		geometry: geom,
		orbit:    prop,
		antenna:  ant,
		beams:    beams,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/jplwindssalinity/v3proc-sub010/calib"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// Generate builds a table of kind for every beam. Beams fail independently;
// the returned error covers only the orbit setup shared by all beams.
func (g *Generator) Generate(ctx context.Context, kind Kind) ([]BeamResult, error) {
	node, period, err := g.orbitTiming()
	if err != nil {
		return nil, err
	}
	g.logger(ctx).Info(ctx, "generating tracking tables",
		logging.String("table", kind.String()),
		logging.Int("beams", len(g.beams)),
		logging.Int("orbit_steps", g.cfg.OrbitSteps),
		logging.Int("azimuth_steps", g.cfg.AzimuthSteps),
		logging.Float64("ascending_node", node),
		logging.Float64("period", period))

	results := make([]BeamResult, len(g.beams))
	for i := range g.beams {
		results[i] = g.buildBeam(ctx, kind, i, node, period)
	}
	return results, nil
}

func (g *Generator) logger(ctx context.Context) logging.Logger {
	if g.log != nil {
		return g.log
	}
	return logging.OrNoop(logging.LoggerFromContext(ctx))
}

func (g *Generator) orbitTiming() (node, period float64, err error) {
	s, err := g.orbit.State(g.cfg.StartTime)
	if err != nil {
		return 0, 0, fmt.Errorf("orbit state at start: %w", err)
	}
	period, err = orbit.Period(s)
	if err != nil {
		return 0, 0, err
	}
	node, err = orbit.FindAscendingNode(g.orbit, g.cfg.StartTime, 1.5*period)
	if err != nil {
		return 0, 0, err
	}
	return node, period, nil
}

func (g *Generator) buildBeam(ctx context.Context, kind Kind, idx int, node, period float64) BeamResult {
	beam := g.beams[idx]
	res := BeamResult{Beam: idx, Name: beam.Name}

	ctx, span := g.tracer.Start(ctx, "calib.BuildTable", trace.WithAttributes(
		attribute.String("table", kind.String()),
		attribute.Int("beam.index", idx),
		attribute.String("beam.name", beam.Name),
	))
	defer span.End()
	start := time.Now()

	table, refits, err := g.fitBeam(ctx, kind, beam, node, period)
	result := "ok"
	if err != nil {
		result = "error"
		res.Err = fmt.Errorf("beam %d (%s): %w", idx, beam.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger(ctx).Error(ctx, "tracking table abandoned",
			logging.String("table", kind.String()),
			logging.Int("beam", idx),
			logging.Err(err),
			logging.String("failure", core.FailureKind(err)))
	} else {
		table.Beam = idx
		res.Table = table
		res.Refits = refits
		span.SetAttributes(attribute.Int("refits", refits))
	}
	if g.recorder != nil {
		g.recorder.ObserveTableBuild(kind.String(), result, time.Since(start).Seconds())
	}
	return res
}

func (g *Generator) fitBeam(ctx context.Context, kind Kind, beam Beam, node, period float64) (*Table, int, error) {
	azimuths := SampleAzimuths(g.cfg.AzimuthSteps)
	samples := make([]float64, len(azimuths))
	table := &Table{Kind: kind, Entries: make([]Entry, g.cfg.OrbitSteps)}
	refits := 0

	for bin := range table.Entries {
		t := node + period*(float64(bin)+0.5)/float64(g.cfg.OrbitSteps)
		state, err := g.orbit.State(t)
		if err != nil {
			return nil, 0, fmt.Errorf("bin %d: %w", bin, err)
		}
		for j, az := range azimuths {
			v, err := g.sample(ctx, kind, Pulse{Geometry: g.geometry, State: state, Antenna: g.antenna, Azimuth: az}, beam)
			if err != nil {
				return nil, 0, fmt.Errorf("bin %d azimuth %.4f: %w", bin, az, err)
			}
			samples[j] = v
		}

		e, err := FitAzimuths(azimuths, samples)
		if err != nil {
			return nil, 0, fmt.Errorf("bin %d: %w", bin, err)
		}
		if e.Violates(g.cfg.Limit) {
			e = ConstrainedFit(azimuths, samples, e, g.cfg.Limit)
			refits++
			if g.recorder != nil {
				g.recorder.ObserveRefit(kind.String())
			}
			g.logger(ctx).Debug(ctx, "fit exceeded hardware limit; refitted",
				logging.Int("bin", bin),
				logging.Float64("limit", g.cfg.Limit))
		}
		if kind == Doppler && g.cfg.ClampMax > g.cfg.ClampMin {
			e = clampEntry(e, g.cfg.ClampMin, g.cfg.ClampMax)
		}
		table.Entries[bin] = e
	}
	return table, refits, nil
}

func (g *Generator) sample(ctx context.Context, kind Kind, p Pulse, beam Beam) (float64, error) {
	switch kind {
	case RangeGate:
		ideal, err := IdealRoundTripTime(ctx, p, beam, g.cfg.Search)
		if err != nil {
			return 0, err
		}
		return ideal.RoundTripTime * 1e3, nil
	case Doppler:
		ideal, err := IdealCommandedDoppler(ctx, p, beam, g.cfg.Search)
		if err != nil {
			return 0, err
		}
		return -ideal.TxDoppler, nil
	}
	return 0, fmt.Errorf("unsupported table kind %v", kind)
}

// clampEntry keeps amplitude*cos(...)+bias inside [lo, hi].
func clampEntry(e Entry, lo, hi float64) Entry {
	if 2*e.Amplitude > hi-lo {
		e.Amplitude = (hi - lo) / 2
	}
	if e.Bias+e.Amplitude > hi {
		e.Bias = hi - e.Amplitude
	}
	if e.Bias-e.Amplitude < lo {
		e.Bias = lo + e.Amplitude
	}
	return e
}

// WriteTables writes every successful table as base.N, N counting beams
// from one, and returns the paths written. Failed beams are skipped.
func WriteTables(results []BeamResult, base string) ([]string, error) {
	var paths []string
	for _, r := range results {
		if r.Err != nil || r.Table == nil {
			continue
		}
		path := FileName(base, r.Beam)
		if err := r.Table.WriteFile(path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
