package predict

import (
	"errors"
	"fmt"
	"time"
)

// FilterConfig parameterizes the one-euro smoothing filter.
type FilterConfig struct {
	// MinCutoff is the cutoff frequency (Hz) for a still signal.
	MinCutoff float64 `yaml:"min_cutoff"`
	// Beta scales how fast the cutoff rises with signal speed.
	Beta float64 `yaml:"beta"`
	// DerivativeCutoff is the cutoff (Hz) for the speed estimate.
	DerivativeCutoff float64 `yaml:"derivative_cutoff"`
	// Frequency is the assumed sample rate (Hz) until timestamps say otherwise.
	Frequency float64 `yaml:"frequency"`
}

// Config holds reconciliation thresholds and history bounds.
type Config struct {
	// PositionThreshold is the Manhattan distance above which position is corrected.
	PositionThreshold float64 `yaml:"position_threshold"`
	// RotationThreshold is in degrees.
	RotationThreshold float64 `yaml:"rotation_threshold"`
	VelocityThreshold float64 `yaml:"velocity_threshold"`

	// Smoothing in [0,1): 0 snaps to the server, values near 1 keep more
	// of the client state per correction.
	Smoothing float64 `yaml:"smoothing"`

	MaxHistory int           `yaml:"max_history"`
	MaxAge     time.Duration `yaml:"max_age"`

	Filter FilterConfig `yaml:"filter"`
}

// DefaultConfig returns thresholds suited to a 60 Hz tick in world units
// of centimeters.
func DefaultConfig() Config {
	return Config{
		PositionThreshold: 10,
		RotationThreshold: 5,
		VelocityThreshold: 50,
		Smoothing:         0.5,
		MaxHistory:        128,
		MaxAge:            2 * time.Second,
		Filter: FilterConfig{
			MinCutoff:        1.0,
			Beta:             0.007,
			DerivativeCutoff: 1.0,
			Frequency:        60,
		},
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.PositionThreshold < 0 {
		errs = append(errs, fmt.Errorf("position_threshold must be >= 0, got %v", c.PositionThreshold))
	}
	if c.RotationThreshold < 0 || c.RotationThreshold > 180 {
		errs = append(errs, fmt.Errorf("rotation_threshold must be in [0,180], got %v", c.RotationThreshold))
	}
	if c.VelocityThreshold < 0 {
		errs = append(errs, fmt.Errorf("velocity_threshold must be >= 0, got %v", c.VelocityThreshold))
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		errs = append(errs, fmt.Errorf("smoothing must be in [0,1), got %v", c.Smoothing))
	}
	if c.MaxHistory < 1 {
		errs = append(errs, fmt.Errorf("max_history must be >= 1, got %d", c.MaxHistory))
	}
	if c.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("max_age must be >= 0, got %v", c.MaxAge))
	}
	if c.Filter.MinCutoff <= 0 {
		errs = append(errs, fmt.Errorf("filter.min_cutoff must be > 0, got %v", c.Filter.MinCutoff))
	}
	if c.Filter.Beta < 0 {
		errs = append(errs, fmt.Errorf("filter.beta must be >= 0, got %v", c.Filter.Beta))
	}
	if c.Filter.DerivativeCutoff <= 0 {
		errs = append(errs, fmt.Errorf("filter.derivative_cutoff must be > 0, got %v", c.Filter.DerivativeCutoff))
	}
	if c.Filter.Frequency <= 0 {
		errs = append(errs, fmt.Errorf("filter.frequency must be > 0, got %v", c.Filter.Frequency))
	}
	return errors.Join(errs...)
}
