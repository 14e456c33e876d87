package survey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

// UpcomingSurveys runs the survey status for every certificate of the fleet
// and returns them most urgent first. The ship-name and status filters are
// applied after sorting; Total is the unfiltered row count. Certificates with
// insufficient data are counted in Skipped.
func (c *Calculator) UpcomingSurveys(fleet []domain.ShipCertificates, filter domain.UpcomingSurveyFilter) (*domain.UpcomingSurveys, error) {
	today := filter.Today
	if err := calendar.Validate(today); err != nil {
		return nil, err
	}

	var (
		entries []domain.UpcomingSurveyEntry
		skipped int
	)
	for _, item := range fleet {
		ship := item.Ship
		if ship == nil {
			continue
		}
		for _, cert := range item.Certificates {
			status, err := c.SurveyStatus(ship, cert, today)
			if err != nil {
				return nil, fmt.Errorf("ship %s certificate %s: %w", ship.Name, certLabel(cert), err)
			}
			if !status.Success {
				skipped++
				continue
			}

			entries = append(entries, domain.UpcomingSurveyEntry{
				ShipID:               ship.ID,
				ShipName:             ship.Name,
				CertificateID:        cert.ID,
				CertificateName:      cert.Name,
				CertificateAbbr:      cert.Abbreviation,
				NextSurveyDate:       *status.NextSurveyDate,
				NextSurveyType:       status.NextSurveyType,
				WindowType:           status.WindowType,
				WindowOpen:           status.Window.OpenDate,
				WindowClose:          status.Window.CloseDate,
				DaysUntilWindowClose: status.DaysUntilWindowClose,
				IsOverdue:            status.IsOverdue,
				IsCritical:           status.IsCritical,
				IsDueSoon:            status.IsDueSoon,
				Status:               status.Status,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.DaysUntilWindowClose != b.DaysUntilWindowClose {
			return a.DaysUntilWindowClose < b.DaysUntilWindowClose
		}
		if a.ShipName != b.ShipName {
			return a.ShipName < b.ShipName
		}
		return a.CertificateName < b.CertificateName
	})

	total := len(entries)
	filtered := make([]domain.UpcomingSurveyEntry, 0, total)
	shipName := strings.ToLower(strings.TrimSpace(filter.ShipName))
	wantStatus, hasStatus := domain.ParseSurveyStatus(filter.Status)
	for _, e := range entries {
		if shipName != "" && !strings.Contains(strings.ToLower(e.ShipName), shipName) {
			continue
		}
		if filter.Status != "" && (!hasStatus || e.Status != wantStatus) {
			continue
		}
		filtered = append(filtered, e)
	}

	return &domain.UpcomingSurveys{
		Entries: filtered,
		Total:   total,
		Count:   len(filtered),
		Skipped: skipped,
		Today:   today,
	}, nil
}

func certLabel(cert *domain.Certificate) string {
	if cert == nil {
		return "<nil>"
	}
	if cert.Name != "" {
		return cert.Name
	}
	return cert.ID
}
