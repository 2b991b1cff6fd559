package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
)

const oneBeam = `
beams:
  - name: inner
    look_deg: 40
    look_beamwidth_deg: 1.5
    azimuth_beamwidth_deg: 1.5
    peak_gain_db: 30
tables:
  orbit_steps: 2
  azimuth_steps: 6
`

func writeConfig(t *testing.T, dir, doc string) string {
	t.Helper()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestGenerateRangeGateTable(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, oneBeam)
	base := filepath.Join(dir, "rgc")

	out, err := execute(t, "rgc", "--config", cfg, "--out", base)
	if err != nil {
		t.Fatalf("calgen rgc: %v", err)
	}
	want := base + ".1"
	if strings.TrimSpace(out) != want {
		t.Fatalf("printed %q, want %q", out, want)
	}
	tab, err := calib.ReadFile(want, calib.RangeGate, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tab.Bins() != 2 {
		t.Fatalf("Bins() = %d, want 2", tab.Bins())
	}
	for i, e := range tab.Entries {
		if e.Bias < 6 || e.Bias > 9 {
			t.Fatalf("bin %d bias = %v ms", i, e.Bias)
		}
	}

	shown, err := execute(t, "show", want, "--kind", "rgc")
	if err != nil {
		t.Fatalf("calgen show: %v", err)
	}
	if !strings.Contains(shown, "amplitude") || strings.Count(shown, "\n") != 3 {
		t.Fatalf("show output = %q", shown)
	}
	shown, err = execute(t, "show", want, "-q")
	if err != nil {
		t.Fatalf("calgen show -q: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(shown), "min") || strings.Count(shown, "\n") != 4 {
		t.Fatalf("quantized show output = %q", shown)
	}
}

func TestGenerateOverridesSteps(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, oneBeam)
	base := filepath.Join(dir, "dtc")

	if _, err := execute(t, "dtc", "-c", cfg, "-o", base, "--orbit-steps", "1", "--azimuth-steps", "8"); err != nil {
		t.Fatalf("calgen dtc: %v", err)
	}
	tab, err := calib.ReadFile(base+".1", calib.Doppler, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tab.Bins() != 1 || tab.Entries[0].Amplitude < 1e5 {
		t.Fatalf("dtc table = %+v", tab.Entries)
	}
}

func TestGenerateLogsToContextLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, oneBeam)

	var logs bytes.Buffer
	log := logging.New(logging.Config{Format: "json", Output: &logs})
	ctx := logging.ContextWithLogger(context.Background(), log.With(logging.String("run_id", "r1")))

	if _, err := executeContext(t, ctx, "rgc", "-c", cfg, "-o", filepath.Join(dir, "rgc")); err != nil {
		t.Fatalf("calgen rgc: %v", err)
	}
	for _, msg := range []string{"generating tracking tables", "tracking table written"} {
		if !strings.Contains(logs.String(), msg) {
			t.Fatalf("log output missing %q: %s", msg, logs.String())
		}
	}
	if strings.Count(logs.String(), `"run_id":"r1"`) < 2 {
		t.Fatalf("records not tagged with the run logger: %s", logs.String())
	}
}

func TestGenerateReportsFailedBeams(t *testing.T) {
	dir := t.TempDir()
	doc := `
beams:
  - name: inner
    look_deg: 40
    look_beamwidth_deg: 1.5
    azimuth_beamwidth_deg: 1.5
  - name: skyward
    look_deg: 80
    look_beamwidth_deg: 1.5
    azimuth_beamwidth_deg: 1.5
tables:
  orbit_steps: 1
  azimuth_steps: 4
`
	cfg := writeConfig(t, dir, doc)
	base := filepath.Join(dir, "rgc")

	out, err := execute(t, "rgc", "-c", cfg, "-o", base)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 rgc tables failed") {
		t.Fatalf("calgen rgc err = %v, want one failed beam", err)
	}
	if strings.TrimSpace(out) != base+".1" {
		t.Fatalf("printed %q, want only the good table", out)
	}
	if _, err := os.Stat(base + ".2"); !os.IsNotExist(err) {
		t.Fatalf("table for failed beam exists: %v", err)
	}
}

func TestCommandArguments(t *testing.T) {
	if _, err := execute(t, "rgc", "extra"); err == nil {
		t.Fatal("expected error for positional argument")
	}
	if _, err := execute(t, "show"); err == nil {
		t.Fatal("expected error for missing table file")
	}
	if _, err := execute(t, "show", "x", "--kind", "sigma0"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := execute(t, "rgc", "-c", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}
