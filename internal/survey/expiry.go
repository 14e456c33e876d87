package survey

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

const windowTypeExpiry = "Expiry"

// Schedule is the next survey of a certificate before it is judged against a
// date. OK=false carries the insufficient-data reason in Message.
type Schedule struct {
	OK             bool
	Message        string
	NextSurveyDate civil.Date
	NextSurveyType string
	WindowType     string
	Window         calendar.Window
}

// NextSurvey selects the next survey date of cert on ship.
//
// The survey is due by the close of the first anniversary window that opens
// after the issued date. A certificate issued inside a window has completed
// that window's survey, so the following anniversary applies. A valid
// (expiry) date that comes first wins.
func (c *Calculator) NextSurvey(ship *domain.Ship, cert *domain.Certificate) (Schedule, error) {
	if cert == nil {
		return Schedule{Message: "certificate required"}, nil
	}
	if cert.IssuedDate == nil {
		return Schedule{Message: "insufficient data: issued date required"}, nil
	}
	issued := *cert.IssuedDate
	if err := calendar.Validate(issued); err != nil {
		return Schedule{}, err
	}
	if cert.ValidDate != nil {
		if err := calendar.Validate(*cert.ValidDate); err != nil {
			return Schedule{}, err
		}
	}

	if isNonAnnualTerm(cert.TermType) {
		if cert.ValidDate == nil {
			return Schedule{Message: fmt.Sprintf("insufficient data: valid date required for %s certificate",
				domain.NormalizeTermType(cert.TermType))}, nil
		}
		valid := *cert.ValidDate
		return Schedule{
			OK:             true,
			NextSurveyDate: valid,
			NextSurveyType: domain.SurveyRenewal,
			WindowType:     windowTypeExpiry,
			Window:         calendar.Window{Open: issued, Close: valid, Anniversary: valid, AnchorYear: valid.Year},
		}, nil
	}

	day, month, err := anniversaryFor(ship, cert)
	if err != nil {
		return Schedule{}, err
	}
	rule := c.windowRule(cert)

	w, err := nextWindow(day, month, issued, rule)
	if err != nil {
		return Schedule{}, err
	}

	next := w.Close
	surveyType := surveyTypeFor(ship, cert, day, month, w.AnchorYear)
	if cert.ValidDate != nil && !cert.ValidDate.After(next) {
		next = *cert.ValidDate
		surveyType = domain.SurveyRenewal
	}

	return Schedule{
		OK:             true,
		NextSurveyDate: next,
		NextSurveyType: surveyType,
		WindowType:     rule.Label,
		Window:         w,
	}, nil
}

// SurveyStatus computes the next survey of cert and classifies it against
// today.
func (c *Calculator) SurveyStatus(ship *domain.Ship, cert *domain.Certificate, today civil.Date) (domain.SurveyStatus, error) {
	if err := calendar.Validate(today); err != nil {
		return domain.SurveyStatus{}, err
	}

	sched, err := c.NextSurvey(ship, cert)
	if err != nil {
		return domain.SurveyStatus{}, err
	}
	if !sched.OK {
		return domain.SurveyStatus{Message: sched.Message}, nil
	}

	next := sched.NextSurveyDate
	status := domain.SurveyStatus{
		Success:        true,
		NextSurveyDate: &next,
		NextSurveyType: sched.NextSurveyType,
		WindowType:     sched.WindowType,
		Window: &domain.SurveyWindowView{
			OpenDate:              sched.Window.Open,
			CloseDate:             sched.Window.Close,
			AnchorAnniversaryYear: sched.Window.AnchorYear,
		},
	}
	if err := c.classify(&status, next, today); err != nil {
		return domain.SurveyStatus{}, err
	}
	return status, nil
}

// nextWindow walks the anniversaries from the year before issue until one
// opens after the issued date.
func nextWindow(day int, month time.Month, issued civil.Date, rule WindowRule) (calendar.Window, error) {
	for year := issued.Year - 1; ; year++ {
		w, err := rule.window(calendar.DayMonthIn(day, month, year))
		if err != nil {
			return calendar.Window{}, err
		}
		if w.Open.After(issued) {
			return w, nil
		}
	}
}

func (c *Calculator) classify(status *domain.SurveyStatus, closeDate, today civil.Date) error {
	days, err := calendar.DaysBetween(today, closeDate)
	if err != nil {
		return err
	}
	status.DaysUntilWindowClose = days

	switch {
	case days < 0:
		status.IsOverdue = true
		status.Status = domain.StatusOverdue
	case days <= c.settings.CriticalThresholdDays:
		status.IsCritical = true
		status.Status = domain.StatusCritical
	case days <= c.settings.DueSoonThresholdDays:
		status.IsDueSoon = true
		status.Status = domain.StatusDueSoon
	default:
		status.Status = domain.StatusValid
	}
	return nil
}

// anniversaryFor returns the day/month the certificate window hangs on: the
// ship anniversary, else the certificate's valid date, else its issue date.
func anniversaryFor(ship *domain.Ship, cert *domain.Certificate) (int, time.Month, error) {
	if ship != nil && ship.Anniversary != nil {
		a := ship.Anniversary
		if a.Month < time.January || a.Month > time.December || a.Day < 1 || a.Day > calendar.DaysInMonth(2000, a.Month) {
			return 0, 0, &calendar.InvalidDateError{
				Input:  fmt.Sprintf("%02d/%02d", a.Day, int(a.Month)),
				Reason: "anniversary is not a day of the year",
			}
		}
		return a.Day, a.Month, nil
	}
	if cert.ValidDate != nil {
		return cert.ValidDate.Day, cert.ValidDate.Month, nil
	}
	return cert.IssuedDate.Day, cert.IssuedDate.Month, nil
}

// surveyTypeFor names the survey due at the anniversary of anchorYear. The
// 2nd and 3rd anniversaries of the cycle carry the intermediate survey unless
// one is already recorded in the cycle; the 5th is the renewal.
func surveyTypeFor(ship *domain.Ship, cert *domain.Certificate, day int, month time.Month, anchorYear int) string {
	start := *cert.IssuedDate
	if ship != nil && ship.SpecialSurveyCycle != nil && !ship.SpecialSurveyCycle.From.After(start) {
		start = ship.SpecialSurveyCycle.From
	}

	first := calendar.DayMonthIn(day, month, start.Year)
	if !first.After(start) {
		first = calendar.DayMonthIn(day, month, start.Year+1)
	}
	n := anchorYear - first.Year + 1

	switch {
	case n >= 5:
		return domain.SurveyRenewal
	case n == 2 || n == 3:
		if ship != nil && ship.LastIntermediateSurvey != nil && !ship.LastIntermediateSurvey.Before(start) {
			return domain.SurveyAnnual
		}
		return domain.SurveyIntermediate
	default:
		return domain.SurveyAnnual
	}
}

func isNonAnnualTerm(term string) bool {
	switch domain.NormalizeTermType(term) {
	case domain.TermInterim, domain.TermShort, domain.TermProvisional, domain.TermConditional:
		return true
	}
	return false
}
