package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/internal/logging"
	"github.com/jplwindssalinity/v3proc-sub010/orbit"
	"github.com/jplwindssalinity/v3proc-sub010/timectrl"
)

// commandTables looks up the commanded gate delay and Doppler the way the
// instrument does: by orbit phase since the ascending node and antenna
// azimuth, from 16-bit quantized tables.
type commandTables struct {
	node   float64
	period float64
	rgc    []*calib.Table
	dtc    []*calib.Table
}

func (s *simulator) loadTables(ctx context.Context, rgcBase, dtcBase string) error {
	if rgcBase == "" && dtcBase == "" {
		return nil
	}
	if rgcBase == "" || dtcBase == "" {
		return errors.New("range gate and Doppler tables must be given together")
	}

	state, err := s.orbit.State(s.start)
	if err != nil {
		return err
	}
	period, err := orbit.Period(state)
	if err != nil {
		return err
	}
	node, err := orbit.FindAscendingNode(s.orbit, s.start, 1.5*period)
	if err != nil {
		return err
	}

	ct := &commandTables{node: node, period: period}
	for i := range s.beams {
		rgc, err := readQuantized(calib.FileName(rgcBase, i), calib.RangeGate, i)
		if err != nil {
			return err
		}
		dtc, err := readQuantized(calib.FileName(dtcBase, i), calib.Doppler, i)
		if err != nil {
			return err
		}
		ct.rgc = append(ct.rgc, rgc)
		ct.dtc = append(ct.dtc, dtc)
	}
	s.tables = ct
	logging.OrNoop(logging.LoggerFromContext(ctx)).Info(ctx, "loaded tracking tables",
		logging.String("rgc", rgcBase),
		logging.String("dtc", dtcBase),
		logging.Float64("ascending_node", node),
		logging.Float64("period", period))
	return nil
}

func readQuantized(path string, kind calib.Kind, beam int) (*calib.Table, error) {
	t, err := calib.ReadFile(path, kind, beam)
	if err != nil {
		return nil, err
	}
	if t.Bins() == 0 {
		return nil, fmt.Errorf("table %s is empty", path)
	}
	return t.Quantize().Dequantize(kind, beam), nil
}

func (ct *commandTables) commanded(p timectrl.Pulse) (gateDelay, txDoppler float64, err error) {
	frac := (p.Time - ct.node) / ct.period
	rgc, dtc := ct.rgc[p.Beam], ct.dtc[p.Beam]

	ms, err := rgc.Evaluate(rgc.BinFor(frac), p.Azimuth)
	if err != nil {
		return 0, 0, err
	}
	hz, err := dtc.Evaluate(dtc.BinFor(frac), p.Azimuth)
	if err != nil {
		return 0, 0, err
	}
	return ms * 1e-3, -hz, nil
}
