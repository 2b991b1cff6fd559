// Command simulator steps a scatterometer along its orbit pulse by pulse and
// writes the spot and slice footprints of every pulse as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jplwindssalinity/v3proc-sub010/antenna"
	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/footprint"
	"github.com/jplwindssalinity/v3proc-sub010/internal/config"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
	"github.com/jplwindssalinity/v3proc-sub010/internal/observability"
	"github.com/jplwindssalinity/v3proc-sub010/orbit"
	"github.com/jplwindssalinity/v3proc-sub010/search"
	"github.com/jplwindssalinity/v3proc-sub010/timectrl"
)

type options struct {
	configPath  string
	pulses      int
	realTime    bool
	outPath     string
	rgcBase     string
	dtcBase     string
	spotPoints  int
	metricsAddr string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML run configuration (defaults to the built-in QuikSCAT-like setup)")
	flag.IntVar(&opts.pulses, "pulses", 100, "number of pulses to simulate")
	flag.BoolVar(&opts.realTime, "realtime", false, "pace pulses at the PRI instead of running accelerated")
	flag.StringVar(&opts.outPath, "out", "-", "JSON lines output file, - for stdout")
	flag.StringVar(&opts.rgcBase, "rgc", "", "range gate table base name; beam N is read from base.N")
	flag.StringVar(&opts.dtcBase, "dtc", "", "Doppler table base name; beam N is read from base.N")
	flag.IntVar(&opts.spotPoints, "spot-points", footprint.DefaultSpotOutlinePoints, "vertices of the spot outline")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, log = logging.WithRunLogger(ctx, log)

	out := io.Writer(os.Stdout)
	if opts.outPath != "-" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			log.Error(ctx, "failed to create output", logging.String("path", opts.outPath), logging.Err(err))
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	var collector *observability.GeometryCollector
	if opts.metricsAddr != "" {
		var err error
		collector, err = observability.NewGeometryCollector(nil)
		if err != nil {
			log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
			os.Exit(1)
		}
		srv := serveMetrics(opts.metricsAddr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := run(ctx, opts, out, log, collector); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

func serveMetrics(addr string, collector *observability.GeometryCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func run(ctx context.Context, opts options, out io.Writer, log logging.Logger, collector *observability.GeometryCollector) error {
	log = logging.OrNoop(log)
	ctx = logging.ContextWithLogger(ctx, log)
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	sim, err := newSimulator(cfg, collector)
	if err != nil {
		return err
	}
	if opts.spotPoints > 0 {
		sim.spotPoints = opts.spotPoints
	}
	if err := sim.loadTables(ctx, opts.rgcBase, opts.dtcBase); err != nil {
		return err
	}

	mode := timectrl.Accelerated
	if opts.realTime {
		mode = timectrl.RealTime
	}
	clock, err := timectrl.NewPulseClock(timectrl.Config{
		Start:    sim.start,
		PRI:      cfg.Instrument.PRISec,
		Beams:    len(sim.patterns),
		SpinRate: sim.antenna.SpinRate,
		Mode:     mode,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	clock.AddListener(func(ctx context.Context, p timectrl.Pulse) error {
		return enc.Encode(sim.handlePulse(ctx, p))
	})

	log.Info(ctx, "starting simulation",
		logging.Int("pulses", opts.pulses),
		logging.Int("beams", len(sim.patterns)),
		logging.Bool("commanded_from_tables", sim.tables != nil))
	if err := clock.Run(ctx, opts.pulses); err != nil {
		return err
	}
	log.Info(ctx, "simulation complete", logging.Int("pulses", opts.pulses))
	return nil
}

// simulator holds everything fixed for a run.
type simulator struct {
	geometry core.TargetGeometry
	orbit    orbit.Propagator
	attitude orbit.AttitudeSource
	antenna  core.Antenna
	patterns []*antenna.Pattern
	beams    []calib.Beam
	layout   footprint.Layout
	freqTol  float64
	params   search.Params

	// start is the first pulse time; table lookups take the ascending
	// node after it, as calgen does.
	start float64

	spotPoints int
	tables     *commandTables

	collector *observability.GeometryCollector
}

func newSimulator(cfg config.Config, collector *observability.GeometryCollector) (*simulator, error) {
	geom, err := cfg.Geometry()
	if err != nil {
		return nil, err
	}
	prop, err := cfg.Propagator()
	if err != nil {
		return nil, err
	}
	att, err := cfg.AttitudeSource()
	if err != nil {
		return nil, err
	}
	ant, err := cfg.AntennaMount()
	if err != nil {
		return nil, err
	}
	patterns, err := cfg.Patterns()
	if err != nil {
		return nil, err
	}
	beams, err := cfg.CalibBeams()
	if err != nil {
		return nil, err
	}
	return &simulator{
		geometry:   geom,
		orbit:      prop,
		attitude:   att,
		antenna:    ant,
		patterns:   patterns,
		beams:      beams,
		layout:     cfg.Layout(),
		freqTol:    cfg.Slices.FreqToleranceHz,
		params:     cfg.SearchParams(),
		start:      cfg.Tables.StartTimeSec,
		spotPoints: footprint.DefaultSpotOutlinePoints,
		collector:  collector,
	}, nil
}

// handlePulse never fails: geometry failures are reported in the record so
// the run continues past pulses that miss the Earth. It logs to the logger
// carried by ctx.
func (s *simulator) handlePulse(ctx context.Context, p timectrl.Pulse) pulseRecord {
	s.collector.IncPulses()
	rec := pulseRecord{
		Pulse:      p.Index,
		Time:       p.Time,
		Beam:       s.beams[p.Beam].Name,
		AzimuthDeg: p.Azimuth / deg,
	}
	if err := s.fillPulse(ctx, p, &rec); err != nil {
		rec.Error = err.Error()
		rec.Failure = core.FailureKind(err)
		logging.OrNoop(logging.LoggerFromContext(ctx)).Warn(ctx, "pulse skipped",
			logging.Int("pulse", p.Index),
			logging.String("beam", rec.Beam),
			logging.Err(err),
			logging.String("failure", rec.Failure))
	}
	return rec
}

func (s *simulator) fillPulse(ctx context.Context, p timectrl.Pulse, rec *pulseRecord) error {
	state, err := s.orbit.State(p.Time)
	if err != nil {
		return err
	}
	gateDelay, txDoppler, err := s.commanded(ctx, p, state)
	if err != nil {
		return err
	}
	rec.GateDelay, rec.TxDoppler = gateDelay, txDoppler

	pattern := s.patterns[p.Beam]
	geom := s.geometry
	geom.Instrument = pattern.Beam().ApplyTo(geom.Instrument)
	geom.Instrument.RxGateDelay = gateDelay
	geom.Instrument.TxDoppler = txDoppler

	scene, err := core.NewScene(geom, state, s.attitude.Attitude(p.Time), s.antenna, p.Azimuth)
	if err != nil {
		return err
	}
	opts := []footprint.Option{footprint.WithSearchParams(s.params), footprint.WithLogger(logging.LoggerFromContext(ctx))}
	if s.collector != nil {
		opts = append(opts, footprint.WithRecorder(s.collector))
	}
	b := footprint.NewBuilder(scene, pattern, s.antenna.SpinRate, opts...)

	spot, err := b.LocateSpot(ctx, pattern.Beam().Boresight(), footprint.DefaultContourLevel, s.spotPoints)
	if err != nil {
		return fmt.Errorf("spot: %w", err)
	}
	if rec.Spot, err = s.spotRecord(spot); err != nil {
		return err
	}

	for _, r := range b.BuildSlices(ctx, spot.Peak.Direction, s.layout, s.freqTol) {
		sr := sliceRecord{Index: r.Index, Guard: s.layout.IsGuard(r.Index)}
		if r.Err != nil {
			sr.Error = r.Err.Error()
		} else if err := s.fillSlice(&sr, r.Slice); err != nil {
			sr.Error = err.Error()
		}
		rec.Slices = append(rec.Slices, sr)
	}
	return nil
}

// commanded returns the gate delay and transmit Doppler for a pulse, from
// the tracking tables when loaded and from the ideal values otherwise.
func (s *simulator) commanded(ctx context.Context, p timectrl.Pulse, state core.OrbitState) (float64, float64, error) {
	if s.tables != nil {
		return s.tables.commanded(p)
	}
	ideal, err := calib.IdealCommandedDoppler(ctx, calib.Pulse{
		Geometry: s.geometry,
		State:    state,
		Antenna:  s.antenna,
		Azimuth:  p.Azimuth,
	}, s.beams[p.Beam], s.params)
	if err != nil {
		return 0, 0, fmt.Errorf("ideal commanded values: %w", err)
	}
	return ideal.RoundTripTime, ideal.TxDoppler, nil
}

func (s *simulator) spotRecord(spot footprint.Spot) (*spotRecord, error) {
	c, err := s.geometry.Earth.ToGeodetic(spot.Centroid)
	if err != nil {
		return nil, err
	}
	outline, err := s.latLon(spot.Outline)
	if err != nil {
		return nil, err
	}
	return &spotRecord{
		LatitudeDeg:   c.Latitude / deg,
		LongitudeDeg:  c.Longitude / deg,
		PeakGain:      spot.Peak.Gain,
		RoundTripTime: spot.RoundTripTime,
		Outline:       outline,
	}, nil
}

func (s *simulator) fillSlice(sr *sliceRecord, sl footprint.Slice) error {
	outline, err := s.latLon(sl.Outline)
	if err != nil {
		return err
	}
	sr.LatitudeDeg = sl.Latitude / deg
	sr.LongitudeDeg = sl.Longitude / deg
	sr.AzimuthDeg = sl.EastAzimuth / deg
	sr.IncidenceDeg = sl.IncidenceAngle / deg
	sr.Bandwidth = sl.Bandwidth()
	sr.PeakGain = sl.PeakGain
	sr.BestEffort = sl.Outcome == search.BestEffort
	sr.Degenerate = sl.Degenerate
	sr.Outline = outline
	return nil
}

func (s *simulator) latLon(points []core.Vec3) ([][2]float64, error) {
	out := make([][2]float64, len(points))
	for i, v := range points {
		g, err := s.geometry.Earth.ToGeodetic(v)
		if err != nil {
			return nil, err
		}
		out[i] = [2]float64{g.Latitude / deg, g.Longitude / deg}
	}
	return out, nil
}

const deg = math.Pi / 180
