// Package survey derives regulatory compliance dates for ships and their
// certificates: anniversary date, special survey cycle, next docking, next
// survey per certificate and the fleet worklist.
//
// Everything here is pure. Callers pass immutable snapshots and an explicit
// "today"; nothing reads the clock or touches storage, so a Calculator is safe
// for concurrent use.
package survey

import "fmt"

const (
	DefaultMarginMonths          = 3
	DefaultDueSoonThresholdDays  = 30
	DefaultCriticalThresholdDays = 7
	DefaultDockingIntervalMonths = 30

	// MaxDockingIntervalMonths is the class limit between consecutive dockings.
	MaxDockingIntervalMonths = 60
	// SpecialSurveyCycleMonths is the length of the class renewal cycle.
	SpecialSurveyCycleMonths = 60
)

// Settings are the tunable thresholds of the calculators.
type Settings struct {
	MarginMonths          int
	DueSoonThresholdDays  int
	CriticalThresholdDays int
	DockingIntervalMonths int
	// WindowRules maps a certificate abbreviation (upper case) to its window.
	WindowRules map[string]WindowRule
}

// DefaultSettings returns the values observed in the fleet UI.
func DefaultSettings() Settings {
	return Settings{
		MarginMonths:          DefaultMarginMonths,
		DueSoonThresholdDays:  DefaultDueSoonThresholdDays,
		CriticalThresholdDays: DefaultCriticalThresholdDays,
		DockingIntervalMonths: DefaultDockingIntervalMonths,
	}
}

// Validate rejects settings that would make the status tiers overlap.
func (s Settings) Validate() error {
	if s.MarginMonths <= 0 || s.MarginMonths > 6 {
		return fmt.Errorf("margin months must be between 1 and 6, got %d", s.MarginMonths)
	}
	if s.CriticalThresholdDays < 0 {
		return fmt.Errorf("critical threshold must be non-negative, got %d", s.CriticalThresholdDays)
	}
	if s.DueSoonThresholdDays < s.CriticalThresholdDays {
		return fmt.Errorf("due soon threshold (%d) must not be below critical threshold (%d)",
			s.DueSoonThresholdDays, s.CriticalThresholdDays)
	}
	if s.DockingIntervalMonths <= 0 || s.DockingIntervalMonths > MaxDockingIntervalMonths {
		return fmt.Errorf("docking interval must be between 1 and %d months, got %d",
			MaxDockingIntervalMonths, s.DockingIntervalMonths)
	}
	return nil
}

// Calculator runs the survey rules with one set of Settings.
type Calculator struct {
	settings Settings
}

// NewCalculator creates a calculator. A zero margin or docking interval falls
// back to the default. Thresholds are used as given: a zero critical
// threshold makes only the closing day critical, and zero for both leaves
// only the Overdue and Valid tiers outside that day.
func NewCalculator(settings Settings) (*Calculator, error) {
	def := DefaultSettings()
	if settings.MarginMonths == 0 {
		settings.MarginMonths = def.MarginMonths
	}
	if settings.DockingIntervalMonths == 0 {
		settings.DockingIntervalMonths = def.DockingIntervalMonths
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	rules := make(map[string]WindowRule, len(settings.WindowRules))
	for k, v := range settings.WindowRules {
		rules[ruleKey(k)] = v
	}
	settings.WindowRules = rules

	return &Calculator{settings: settings}, nil
}

// Settings returns a copy of the calculator settings.
func (c *Calculator) Settings() Settings {
	return c.settings
}
