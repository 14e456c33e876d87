package domain

import (
	"cloud.google.com/go/civil"
)

// AnniversaryResult is the outcome of deriving a ship's anniversary date and
// special survey cycle. Success=false means insufficient data, not failure.
type AnniversaryResult struct {
	Success            bool                `json:"success"`
	Message            string              `json:"message,omitempty"`
	Anniversary        *Anniversary        `json:"anniversary_date,omitempty"`
	SpecialSurveyCycle *SpecialSurveyCycle `json:"special_survey_cycle,omitempty"`
	Source             DateSource          `json:"source,omitempty"`
	CycleSource        DateSource          `json:"cycle_source,omitempty"`
}

// DockingResult is the outcome of the next docking calculation.
type DockingResult struct {
	Success           bool        `json:"success"`
	Message           string      `json:"message,omitempty"`
	NextDocking       *civil.Date `json:"next_docking,omitempty"`
	CalculationMethod string      `json:"calculation_method,omitempty"`
	IntervalMonths    int         `json:"interval_months,omitempty"`
	BasedOn           *civil.Date `json:"based_on,omitempty"`
}

// Schedule converts a successful result into the stored shape.
func (r DockingResult) Schedule() *DockingSchedule {
	if !r.Success || r.NextDocking == nil || r.BasedOn == nil {
		return nil
	}
	return &DockingSchedule{
		Date:              *r.NextDocking,
		CalculationMethod: r.CalculationMethod,
		IntervalMonths:    r.IntervalMonths,
		BasedOn:           *r.BasedOn,
	}
}

// SurveyWindowView is the derived window reported with a survey status. It is
// never persisted.
type SurveyWindowView struct {
	OpenDate              civil.Date `json:"open_date"`
	CloseDate             civil.Date `json:"close_date"`
	AnchorAnniversaryYear int        `json:"anchor_anniversary_year"`
}

// SurveyStatus is the outcome of the survey expiry calculation for one
// certificate.
type SurveyStatus struct {
	Success              bool              `json:"success"`
	Message              string            `json:"message,omitempty"`
	NextSurveyDate       *civil.Date       `json:"next_survey_date,omitempty"`
	NextSurveyType       string            `json:"next_survey_type,omitempty"`
	WindowType           string            `json:"window_type,omitempty"`
	Window               *SurveyWindowView `json:"window,omitempty"`
	DaysUntilWindowClose int               `json:"days_until_window_close"`
	IsOverdue            bool              `json:"is_overdue"`
	IsCritical           bool              `json:"is_critical"`
	IsDueSoon            bool              `json:"is_due_soon"`
	Status               string            `json:"status,omitempty"`
}

// UpcomingSurveyEntry is one row of the fleet worklist.
type UpcomingSurveyEntry struct {
	ShipID               string     `json:"ship_id"`
	ShipName             string     `json:"ship_name"`
	CertificateID        string     `json:"certificate_id"`
	CertificateName      string     `json:"cert_name"`
	CertificateAbbr      string     `json:"cert_abbreviation,omitempty"`
	NextSurveyDate       civil.Date `json:"next_survey_date"`
	NextSurveyType       string     `json:"next_survey_type"`
	WindowType           string     `json:"window_type"`
	WindowOpen           civil.Date `json:"window_open"`
	WindowClose          civil.Date `json:"window_close"`
	DaysUntilWindowClose int        `json:"days_until_window_close"`
	IsOverdue            bool       `json:"is_overdue"`
	IsCritical           bool       `json:"is_critical"`
	IsDueSoon            bool       `json:"is_due_soon"`
	Status               string     `json:"status"`
}

// UpcomingSurveyFilter narrows the worklist after sorting.
type UpcomingSurveyFilter struct {
	CompanyID string     `json:"company_id"`
	ShipName  string     `json:"ship_name,omitempty"`
	Status    string     `json:"status,omitempty"`
	Today     civil.Date `json:"today"`
}

// UpcomingSurveys is the aggregated worklist. Total counts entries before the
// filter so a caller can show "Count of Total".
type UpcomingSurveys struct {
	Entries []UpcomingSurveyEntry `json:"upcoming_surveys"`
	Total   int                   `json:"total_count"`
	Count   int                   `json:"count"`
	Skipped int                   `json:"skipped"`
	Today   civil.Date            `json:"today"`
}
