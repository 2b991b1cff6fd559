// Command calgen generates the range gate (RGC) and Doppler (DTC) tracking
// tables of a scatterometer, one binary file per beam.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/internal/config"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
	"github.com/jplwindssalinity/v3proc-sub010/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logging.NewFromEnv()
	ctx, log = logging.WithRunLogger(ctx, log)
	ctx = logging.ContextWithLogger(ctx, log)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv("calgen"), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	cmd := newRootCmd(os.Stdout)
	err = cmd.ExecuteContext(ctx)
	observability.ShutdownWithTimeout(context.Background(), shutdown, log)
	if err != nil {
		os.Exit(1)
	}
}

type generateFlags struct {
	configPath   string
	out          string
	orbitSteps   int
	azimuthSteps int
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "calgen",
		Short: "Generate scatterometer tracking tables",
		Long: `calgen fits the ideal round trip time (RGC) or commanded Doppler (DTC)
of every beam as amplitude*cos(azimuth+phase)+bias, one fit per orbit
phase bin, and writes one table per beam as <out>.<beam number>.

Examples:
  calgen rgc --config run.yaml --out tables/rgc
  calgen dtc --orbit-steps 64
  calgen show tables/rgc.1 --kind rgc`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.AddCommand(
		newGenerateCmd(calib.RangeGate),
		newGenerateCmd(calib.Doppler),
		newShowCmd(),
	)
	return root
}

func newGenerateCmd(kind calib.Kind) *cobra.Command {
	var f generateFlags
	short := "Generate range gate tables"
	if kind == calib.Doppler {
		short = "Generate Doppler tables"
	}
	cmd := &cobra.Command{
		Use:   kind.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd.Context(), kind, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML run configuration (defaults to the built-in QuikSCAT-like setup)")
	cmd.Flags().StringVarP(&f.out, "out", "o", kind.String(), "output base name; beam N is written to <out>.N")
	cmd.Flags().IntVar(&f.orbitSteps, "orbit-steps", 0, "orbit phase bins (overrides the config)")
	cmd.Flags().IntVar(&f.azimuthSteps, "azimuth-steps", 0, "azimuth samples per bin (overrides the config)")
	return cmd
}

// generate logs to the logger carried by ctx.
func generate(ctx context.Context, kind calib.Kind, f generateFlags, stdout io.Writer) error {
	log := logging.OrNoop(logging.LoggerFromContext(ctx))
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return err
		}
	}
	if f.orbitSteps > 0 {
		cfg.Tables.OrbitSteps = f.orbitSteps
	}
	if f.azimuthSteps > 0 {
		cfg.Tables.AzimuthSteps = f.azimuthSteps
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	geom, err := cfg.Geometry()
	if err != nil {
		return err
	}
	prop, err := cfg.Propagator()
	if err != nil {
		return err
	}
	ant, err := cfg.AntennaMount()
	if err != nil {
		return err
	}
	beams, err := cfg.CalibBeams()
	if err != nil {
		return err
	}
	collector, err := observability.NewGeometryCollector(nil)
	if err != nil {
		return err
	}
	gen, err := calib.NewGenerator(geom, prop, ant, beams, cfg.CalibConfig(kind),
		calib.WithRecorder(collector),
		calib.WithTracer(observability.Tracer("calib")))
	if err != nil {
		return err
	}

	results, err := gen.Generate(ctx, kind)
	if err != nil {
		return err
	}
	paths, err := calib.WriteTables(results, f.out)
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	if err != nil {
		return err
	}

	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Err)
			continue
		}
		log.Info(ctx, "tracking table written",
			logging.String("table", kind.String()),
			logging.String("beam", r.Name),
			logging.String("path", calib.FileName(f.out, r.Beam)),
			logging.Int("refits", r.Refits))
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d %s tables failed: %w", len(failed), len(results), kind, errors.Join(failed...))
	}
	return nil
}
