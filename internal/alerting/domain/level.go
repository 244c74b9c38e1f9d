package alerting

import "fmt"

// Level is the alert level of a subject.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Levels lists every level from least to most severe.
var Levels = []Level{LevelNormal, LevelWarning, LevelCritical}

// Thresholds are offline percentages delimiting warning and critical.
type Thresholds struct {
	Lower  float64 `json:"lower_threshold" yaml:"lower_threshold"`
	Upper  float64 `json:"upper_threshold" yaml:"upper_threshold"`
	Active bool    `json:"is_active" yaml:"is_active"`
}

// Validate checks the range and ordering of the thresholds.
func (t Thresholds) Validate() error {
	if t.Lower < 0 || t.Lower > 100 || t.Upper < 0 || t.Upper > 100 {
		return fmt.Errorf("%w: lower=%.2f upper=%.2f out of range", ErrInvalidThresholds, t.Lower, t.Upper)
	}
	if t.Upper <= t.Lower {
		return fmt.Errorf("%w: upper %.2f must exceed lower %.2f", ErrInvalidThresholds, t.Upper, t.Lower)
	}
	return nil
}

// Counts is the device population of a subject.
type Counts struct {
	Total   int `json:"total"`
	Offline int `json:"offline"`
}

// Online returns the number of online devices.
func (c Counts) Online() int {
	if c.Offline > c.Total {
		return 0
	}
	return c.Total - c.Offline
}

// Percentage returns the offline share in percent; 0 when there are no devices.
func (c Counts) Percentage() float64 {
	if c.Total <= 0 {
		return 0
	}
	return float64(c.Offline) / float64(c.Total) * 100
}

// Evaluate classifies counts against thresholds.
// A percentage equal to the upper threshold is a warning, not critical.
func Evaluate(counts Counts, thresholds Thresholds) Level {
	pct := counts.Percentage()
	switch {
	case pct > thresholds.Upper:
		return LevelCritical
	case pct > thresholds.Lower:
		return LevelWarning
	default:
		return LevelNormal
	}
}
