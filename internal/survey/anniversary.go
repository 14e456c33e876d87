package survey

import (
	"cloud.google.com/go/civil"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

const msgNoFullTermCertificate = "insufficient data: no Full Term certificate with an issued date; enter the anniversary date manually"

// DeriveAnniversary computes a ship's anniversary date and special survey
// cycle from its most recently issued Full Term certificate. Manual overrides
// on the ship are returned as stored.
func (c *Calculator) DeriveAnniversary(ship *domain.Ship, certs []*domain.Certificate) (domain.AnniversaryResult, error) {
	source, err := latestFullTerm(certs)
	if err != nil {
		return domain.AnniversaryResult{}, err
	}

	var result domain.AnniversaryResult

	switch {
	case ship != nil && ship.Anniversary.IsManual():
		a := *ship.Anniversary
		result.Anniversary = &a
		result.Source = domain.SourceManual
	case source != nil:
		issued := *source.IssuedDate
		result.Anniversary = domain.AutoAnniversary(issued.Day, issued.Month, source.ID)
		result.Source = domain.SourceAuto
	}

	switch {
	case ship != nil && ship.SpecialSurveyCycle.IsManual():
		cycle := *ship.SpecialSurveyCycle
		result.SpecialSurveyCycle = &cycle
		result.CycleSource = domain.SourceManual
	case source != nil:
		issued := *source.IssuedDate
		result.SpecialSurveyCycle = &domain.SpecialSurveyCycle{
			From:        issued,
			To:          addMonths(issued, SpecialSurveyCycleMonths),
			Source:      domain.SourceAuto,
			DerivedFrom: source.ID,
		}
		result.CycleSource = domain.SourceAuto
	}

	if result.Anniversary == nil {
		result.Message = msgNoFullTermCertificate
		return result, nil
	}

	result.Success = true
	return result, nil
}

// latestFullTerm picks the Full Term certificate with the most recent issued
// date. Ties go to the lowest ID so repeated runs agree.
func latestFullTerm(certs []*domain.Certificate) (*domain.Certificate, error) {
	var best *domain.Certificate
	for _, cert := range certs {
		if cert == nil || !cert.IsFullTerm() || cert.IssuedDate == nil {
			continue
		}
		if err := calendar.Validate(*cert.IssuedDate); err != nil {
			return nil, err
		}
		if best == nil {
			best = cert
			continue
		}

		issued, bestIssued := *cert.IssuedDate, *best.IssuedDate
		if issued.After(bestIssued) || (issued == bestIssued && cert.ID < best.ID) {
			best = cert
		}
	}
	return best, nil
}

func addMonths(d civil.Date, n int) civil.Date {
	// inputs are validated by the callers
	out, _ := calendar.AddMonths(d, n)
	return out
}

// NormalizeLegacyCycle converts the legacy month-count form of the special
// survey cycle into [From, To], anchored on the last special survey. Without
// an anchor the cycle cannot be placed and nil is returned.
func NormalizeLegacyCycle(months int, lastSpecialSurvey *civil.Date) *domain.SpecialSurveyCycle {
	if months <= 0 || lastSpecialSurvey == nil || !lastSpecialSurvey.IsValid() {
		return nil
	}
	from := *lastSpecialSurvey
	return &domain.SpecialSurveyCycle{
		From:   from,
		To:     addMonths(from, months),
		Source: domain.SourceManual,
	}
}
