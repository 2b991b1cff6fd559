package footprint

import (
	"errors"
	"fmt"
)

// ErrSliceIndex is returned for a slice index outside the layout.
var ErrSliceIndex = errors.New("slice index out of range")

// Band is a baseband frequency interval in Hz.
type Band struct {
	Low       float64
	Bandwidth float64
}

// High returns the upper edge of the band.
func (b Band) High() float64 { return b.Low + b.Bandwidth }

// Layout splits the echo spectrum of a pulse into science slices centred on
// zero baseband, flanked on each side by guard slices.
type Layout struct {
	ScienceSlices      int
	GuardSlicesPerSide int
	// ScienceBandwidth and GuardBandwidth in Hz.
	ScienceBandwidth float64
	GuardBandwidth   float64
}

// Total returns the number of slices per pulse.
func (l Layout) Total() int {
	return l.ScienceSlices + 2*l.GuardSlicesPerSide
}

// Validate reports layouts that cannot produce bands.
func (l Layout) Validate() error {
	if l.ScienceSlices <= 0 || l.GuardSlicesPerSide < 0 {
		return fmt.Errorf("slice layout: need science slices > 0 and guard slices >= 0, got %d/%d",
			l.ScienceSlices, l.GuardSlicesPerSide)
	}
	if l.ScienceBandwidth <= 0 {
		return fmt.Errorf("slice layout: science bandwidth must be positive")
	}
	if l.GuardSlicesPerSide > 0 && l.GuardBandwidth <= 0 {
		return fmt.Errorf("slice layout: guard bandwidth must be positive")
	}
	return nil
}

// Band returns the frequency band of slice index, counting from the lowest
// frequency.
func (l Layout) Band(index int) (Band, error) {
	if index < 0 || index >= l.Total() {
		return Band{}, fmt.Errorf("%w: %d not in [0, %d)", ErrSliceIndex, index, l.Total())
	}
	center := float64(l.Total()-1) / 2
	z := float64(index) - center
	halfSci := float64(l.ScienceSlices) / 2

	switch {
	case z < -halfSci:
		return Band{
			Low:       -halfSci*l.ScienceBandwidth + (z+halfSci-0.5)*l.GuardBandwidth,
			Bandwidth: l.GuardBandwidth,
		}, nil
	case z > halfSci:
		return Band{
			Low:       halfSci*l.ScienceBandwidth + (z-halfSci-0.5)*l.GuardBandwidth,
			Bandwidth: l.GuardBandwidth,
		}, nil
	default:
		return Band{Low: (z - 0.5) * l.ScienceBandwidth, Bandwidth: l.ScienceBandwidth}, nil
	}
}

// IsGuard reports whether index is a guard slice.
func (l Layout) IsGuard(index int) bool {
	return index < l.GuardSlicesPerSide || index >= l.GuardSlicesPerSide+l.ScienceSlices
}
