package survey

import (
	"cloud.google.com/go/civil"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

// Docking calculation methods reported for audit display.
const (
	MethodInterval       = "interval"
	MethodCycleEnd       = "special_survey_cycle_end"
	msgLastDockingNeeded = "last docking date required"
)

// NextDocking derives the next docking date from the most recent of the two
// last docking dates plus the configured interval. When the special survey
// cycle ends earlier, the docking is due at the cycle end.
func (c *Calculator) NextDocking(ship *domain.Ship) (domain.DockingResult, error) {
	if ship == nil {
		return domain.DockingResult{Message: msgLastDockingNeeded}, nil
	}

	var latest *civil.Date
	for _, d := range []*civil.Date{ship.LastDocking, ship.LastDocking2} {
		if d == nil {
			continue
		}
		if err := calendar.Validate(*d); err != nil {
			return domain.DockingResult{}, err
		}
		if latest == nil || d.After(*latest) {
			latest = d
		}
	}
	if latest == nil {
		return domain.DockingResult{Message: msgLastDockingNeeded}, nil
	}

	interval := c.settings.DockingIntervalMonths
	next := addMonths(*latest, interval)
	method := MethodInterval

	if cycle := ship.SpecialSurveyCycle; cycle != nil {
		if err := calendar.Validate(cycle.To); err != nil {
			return domain.DockingResult{}, err
		}
		if cycle.To.After(*latest) && cycle.To.Before(next) {
			next = cycle.To
			method = MethodCycleEnd
		}
	}

	basedOn := *latest
	return domain.DockingResult{
		Success:           true,
		NextDocking:       &next,
		CalculationMethod: method,
		IntervalMonths:    interval,
		BasedOn:           &basedOn,
	}, nil
}
