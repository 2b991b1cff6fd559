package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GeometryCollector bundles Prometheus metrics for gain searches, slice
// footprints and tracking table generation. It satisfies the recorder
// interfaces of the search, footprint and calib packages.
type GeometryCollector struct {
	gatherer prometheus.Gatherer

	PeakSearches     *prometheus.CounterVec
	PeakSearchPasses prometheus.Histogram
	Slices           *prometheus.CounterVec
	Pulses           prometheus.Counter

	TableBuilds        *prometheus.CounterVec
	TableBuildDuration *prometheus.HistogramVec
	Refits             *prometheus.CounterVec
}

// NewGeometryCollector registers the metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry returns the existing collectors.
func NewGeometryCollector(reg prometheus.Registerer) (*GeometryCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	searches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scat_peak_searches_total",
		Help: "Peak response searches at a target frequency, labeled by outcome.",
	}, []string{"outcome"}), "scat_peak_searches_total")
	if err != nil {
		return nil, err
	}
	passes, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scat_peak_search_passes",
		Help:    "Passes used by peak response searches.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
	}), "scat_peak_search_passes")
	if err != nil {
		return nil, err
	}
	slices, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scat_slices_total",
		Help: "Slice footprints built, labeled by result (ok, best_effort, error).",
	}, []string{"result"}), "scat_slices_total")
	if err != nil {
		return nil, err
	}
	pulses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scat_pulses_total",
		Help: "Pulses processed by the simulator.",
	}), "scat_pulses_total")
	if err != nil {
		return nil, err
	}

	builds, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scat_table_builds_total",
		Help: "Per-beam tracking table builds, labeled by table and result.",
	}, []string{"table", "result"}), "scat_table_builds_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scat_table_build_duration_seconds",
		Help:    "Time to build one beam's tracking table.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"table"}), "scat_table_build_duration_seconds")
	if err != nil {
		return nil, err
	}
	refits, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scat_table_refits_total",
		Help: "Orbit bins refitted under the hardware limit, labeled by table.",
	}, []string{"table"}), "scat_table_refits_total")
	if err != nil {
		return nil, err
	}

	return &GeometryCollector{
		gatherer:           gatherer,
		PeakSearches:       searches,
		PeakSearchPasses:   passes,
		Slices:             slices,
		Pulses:             pulses,
		TableBuilds:        builds,
		TableBuildDuration: durations,
		Refits:             refits,
	}, nil
}

// ObservePeakSearch records one peak response search.
func (c *GeometryCollector) ObservePeakSearch(outcome string, passes int) {
	if c == nil {
		return
	}
	c.PeakSearches.WithLabelValues(outcome).Inc()
	c.PeakSearchPasses.Observe(float64(passes))
}

// ObserveSlice records one slice footprint result.
func (c *GeometryCollector) ObserveSlice(result string) {
	if c == nil {
		return
	}
	c.Slices.WithLabelValues(result).Inc()
}

// IncPulses counts one simulated pulse.
func (c *GeometryCollector) IncPulses() {
	if c == nil {
		return
	}
	c.Pulses.Inc()
}

// ObserveTableBuild records one beam's table build.
func (c *GeometryCollector) ObserveTableBuild(table, result string, seconds float64) {
	if c == nil {
		return
	}
	c.TableBuilds.WithLabelValues(table, result).Inc()
	c.TableBuildDuration.WithLabelValues(table).Observe(seconds)
}

// ObserveRefit counts one constrained refit.
func (c *GeometryCollector) ObserveRefit(table string) {
	if c == nil {
		return
	}
	c.Refits.WithLabelValues(table).Inc()
}

// Gatherer returns the gatherer the collector registered with.
func (c *GeometryCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *GeometryCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
