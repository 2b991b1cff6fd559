package calib

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jplwindssalinity/v3proc-sub010/core"
	"github.com/jplwindssalinity/v3proc-sub010/search"
)

const (
	// DopplerTolerance is how close to zero baseband the ideal commanded
	// Doppler puts the two-way boresight echo, in Hz.
	DopplerTolerance = 1.0
	maxDopplerPasses = 20
)

// ErrDopplerNotConverged is returned when the commanded Doppler iteration
// does not settle.
var ErrDopplerNotConverged = errors.New("commanded Doppler did not converge")

// Pulse is one calibration sample: a spacecraft state and antenna azimuth
// with the attitude held at zero.
type Pulse struct {
	Geometry core.TargetGeometry
	State    core.OrbitState
	Antenna  core.Antenna
	Azimuth  float64
}

// Beam couples a beam's boresight with its two-way gain pattern.
type Beam struct {
	Name      string
	Boresight core.LookDirection
	Pattern   search.Pattern
	// RxGateWidth overrides the instrument gate width when non-zero.
	RxGateWidth float64
}

// Ideal holds the ideal tracking values of one pulse.
type Ideal struct {
	// Peak is the two-way gain peak the values are computed for.
	Peak          search.Peak
	RoundTripTime float64
	// TxDoppler is the commanded transmit Doppler offset that puts the
	// peak echo at zero baseband.
	TxDoppler float64
}

// IdealRoundTripTime returns the round trip time to the two-way gain peak
// of beam, with the attitude zeroed.
func IdealRoundTripTime(ctx context.Context, p Pulse, beam Beam, params search.Params) (Ideal, error) {
	scene, err := core.NewScene(p.Geometry, p.State, core.Attitude{}, p.Antenna, p.Azimuth)
	if err != nil {
		return Ideal{}, err
	}
	s := search.New(scene, beam.Pattern, p.Antenna.SpinRate, search.WithParams(params))
	peak, err := s.FindPeakGain(ctx, beam.Boresight)
	if err != nil {
		return Ideal{}, fmt.Errorf("beam %s two-way peak: %w", beam.Name, err)
	}
	info, err := scene.TargetInfo(peak.Direction)
	if err != nil {
		return Ideal{}, fmt.Errorf("beam %s two-way peak: %w", beam.Name, err)
	}
	return Ideal{Peak: peak, RoundTripTime: info.RoundTripTime}, nil
}

// IdealCommandedDoppler extends IdealRoundTripTime with the commanded
// Doppler. The gate delay is set to the ideal round trip time and the
// transmit Doppler is adjusted until the peak echo is within
// DopplerTolerance of zero baseband.
func IdealCommandedDoppler(ctx context.Context, p Pulse, beam Beam, params search.Params) (Ideal, error) {
	ideal, err := IdealRoundTripTime(ctx, p, beam, params)
	if err != nil {
		return Ideal{}, err
	}
	scene, err := core.NewScene(p.Geometry, p.State, core.Attitude{}, p.Antenna, p.Azimuth)
	if err != nil {
		return Ideal{}, err
	}
	in := p.Geometry.Instrument
	if beam.RxGateWidth > 0 {
		in.RxGateWidth = beam.RxGateWidth
	}
	in.RxGateDelay = ideal.RoundTripTime
	in.TxDoppler = 0
	for pass := 0; pass < maxDopplerPasses; pass++ {
		info, err := scene.WithInstrument(in).TargetInfo(ideal.Peak.Direction)
		if err != nil {
			return Ideal{}, err
		}
		if math.Abs(info.BasebandFreq) <= DopplerTolerance {
			ideal.TxDoppler = in.TxDoppler
			return ideal, nil
		}
		in.TxDoppler += info.BasebandFreq
	}
	return Ideal{}, fmt.Errorf("%w after %d passes", ErrDopplerNotConverged, maxDopplerPasses)
}
