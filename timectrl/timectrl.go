// Package timectrl steps simulation time pulse by pulse. Beams fire in
// turn, one per pulse repetition interval, while the antenna spins at a
// constant rate.
package timectrl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Mode describes how the clock paces pulses.
type Mode int

const (
	// Accelerated delivers pulses as fast as listeners return.
	Accelerated Mode = iota
	// RealTime waits one PRI of wall-clock time between pulses.
	RealTime
)

// Pulse is one transmit event.
type Pulse struct {
	Index int
	// Time is seconds after the run epoch.
	Time float64
	Beam int
	// Azimuth is the antenna spin angle at transmit, radians in [0, 2π).
	Azimuth float64
}

// Config fixes the pulse timing.
type Config struct {
	// Start is the time of pulse zero, seconds.
	Start float64
	// PRI is the pulse repetition interval, seconds.
	PRI   float64
	Beams int
	// SpinRate in rad/s, StartAzimuth in radians.
	SpinRate     float64
	StartAzimuth float64
	Mode         Mode
}

// Listener handles one pulse. Returning an error stops the run.
type Listener func(ctx context.Context, p Pulse) error

// PulseClock drives simulation time and notifies registered listeners in
// registration order.
type PulseClock struct {
	mu      sync.RWMutex
	cfg     Config
	current Pulse

	listeners []Listener
}

// NewPulseClock validates cfg and returns a clock positioned at pulse zero.
func NewPulseClock(cfg Config) (*PulseClock, error) {
	if cfg.PRI <= 0 {
		return nil, fmt.Errorf("pulse repetition interval %v must be positive", cfg.PRI)
	}
	if cfg.Beams <= 0 {
		return nil, errors.New("at least one beam is required")
	}
	c := &PulseClock{cfg: cfg}
	c.current = c.PulseAt(0)
	return c, nil
}

// PulseAt returns pulse i without moving the clock.
func (c *PulseClock) PulseAt(i int) Pulse {
	t := c.cfg.Start + float64(i)*c.cfg.PRI
	az := math.Mod(c.cfg.StartAzimuth+c.cfg.SpinRate*(t-c.cfg.Start), 2*math.Pi)
	if az < 0 {
		az += 2 * math.Pi
	}
	return Pulse{Index: i, Time: t, Beam: i % c.cfg.Beams, Azimuth: az}
}

// Now returns the time of the current pulse.
func (c *PulseClock) Now() float64 {
	return c.Current().Time
}

// Current returns the most recently delivered pulse.
func (c *PulseClock) Current() Pulse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// AddListener registers a callback invoked on every pulse.
func (c *PulseClock) AddListener(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Run delivers n pulses starting from pulse zero. It stops early on context
// cancellation or the first listener error.
func (c *PulseClock) Run(ctx context.Context, n int) error {
	var tick <-chan time.Time
	if c.cfg.Mode == RealTime {
		ticker := time.NewTicker(time.Duration(c.cfg.PRI * float64(time.Second)))
		defer ticker.Stop()
		tick = ticker.C
	}

	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if tick != nil && i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}

		p := c.PulseAt(i)
		c.mu.Lock()
		c.current = p
		c.mu.Unlock()

		for _, fn := range listeners {
			if err := fn(ctx, p); err != nil {
				return fmt.Errorf("pulse %d: %w", i, err)
			}
		}
	}
	return nil
}
