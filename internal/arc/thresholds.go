package arc

import "fmt"

// Thresholds drive phase advancement from tension.
type Thresholds struct {
	// RisingAt moves early to rising when tension reaches it.
	RisingAt float64 `yaml:"rising_at" json:"rising_at"`

	// PeakAt moves rising to peak when tension reaches it.
	PeakAt float64 `yaml:"peak_at" json:"peak_at"`

	// DeclineBelow moves peak to decline when tension falls under it.
	DeclineBelow float64 `yaml:"decline_below" json:"decline_below"`

	// PeakHold moves peak to decline after this many cycles at peak.
	// Zero disables the hold limit.
	PeakHold int `yaml:"peak_hold" json:"peak_hold"`

	// ResolveAt resolves a declining arc when tension is at or below it.
	ResolveAt float64 `yaml:"resolve_at" json:"resolve_at"`

	// MaxDelta bounds the tension change of a single Advance.
	MaxDelta float64 `yaml:"max_delta" json:"max_delta"`
}

// DefaultThresholds returns the thresholds used when nothing is configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RisingAt:     3,
		PeakAt:       7,
		DeclineBelow: 5,
		PeakHold:     3,
		ResolveAt:    2,
		MaxDelta:     3,
	}
}

// Validate checks the thresholds are ordered and in range.
func (t Thresholds) Validate() error {
	bounded := []struct {
		name  string
		value float64
	}{
		{"rising_at", t.RisingAt},
		{"peak_at", t.PeakAt},
		{"decline_below", t.DeclineBelow},
		{"resolve_at", t.ResolveAt},
	}
	for _, b := range bounded {
		if b.value < MinTension || b.value > MaxTension {
			return fmt.Errorf("%s %.2f outside [%.0f, %.0f]", b.name, b.value, MinTension, MaxTension)
		}
	}
	if t.RisingAt > t.PeakAt {
		return fmt.Errorf("rising_at %.2f above peak_at %.2f", t.RisingAt, t.PeakAt)
	}
	if t.ResolveAt > t.DeclineBelow {
		return fmt.Errorf("resolve_at %.2f above decline_below %.2f", t.ResolveAt, t.DeclineBelow)
	}
	if t.MaxDelta <= 0 {
		return fmt.Errorf("max_delta must be positive, got %.2f", t.MaxDelta)
	}
	if t.PeakHold < 0 {
		return fmt.Errorf("peak_hold cannot be negative, got %d", t.PeakHold)
	}
	return nil
}

// ThresholdSet holds the default thresholds and per-type overrides.
type ThresholdSet struct {
	Default Thresholds
	ByType  map[string]Thresholds
}

// DefaultThresholdSet returns a set with only DefaultThresholds.
func DefaultThresholdSet() ThresholdSet {
	return ThresholdSet{Default: DefaultThresholds()}
}

// For returns the thresholds for an arc type.
func (s ThresholdSet) For(arcType string) Thresholds {
	if t, ok := s.ByType[arcType]; ok {
		return t
	}
	return s.Default
}

// Validate checks every threshold in the set.
func (s ThresholdSet) Validate() error {
	if err := s.Default.Validate(); err != nil {
		return fmt.Errorf("default thresholds: %w", err)
	}
	for typ, t := range s.ByType {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("thresholds for %q: %w", typ, err)
		}
	}
	return nil
}
