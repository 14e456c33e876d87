package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateSource tags where a ship date came from.
type DateSource string

const (
	SourceManual DateSource = "manual"
	SourceAuto   DateSource = "auto"
)

// Anniversary is the day/month of a ship's annual survey cycle. It is either a
// manual override or auto-derived from a Full Term certificate; the Source
// tag makes "both" and "neither" unrepresentable.
type Anniversary struct {
	Day         int        `json:"day"`
	Month       time.Month `json:"month"`
	Source      DateSource `json:"source"`
	DerivedFrom string     `json:"derived_from,omitempty"`
}

func ManualAnniversary(day int, month time.Month) *Anniversary {
	return &Anniversary{Day: day, Month: month, Source: SourceManual}
}

func AutoAnniversary(day int, month time.Month, certificateID string) *Anniversary {
	return &Anniversary{Day: day, Month: month, Source: SourceAuto, DerivedFrom: certificateID}
}

func (a *Anniversary) IsManual() bool {
	return a != nil && a.Source == SourceManual
}

// SpecialSurveyCycle is the canonical [From, To] shape of the five-year class
// cycle. Legacy month-count data is normalised before it reaches this type.
type SpecialSurveyCycle struct {
	From        civil.Date `json:"from_date"`
	To          civil.Date `json:"to_date"`
	Source      DateSource `json:"source"`
	DerivedFrom string     `json:"derived_from,omitempty"`
}

func (c *SpecialSurveyCycle) IsManual() bool {
	return c != nil && c.Source == SourceManual
}

// DockingSchedule is the derived next docking date with its audit trail.
type DockingSchedule struct {
	Date              civil.Date `json:"date"`
	CalculationMethod string     `json:"calculation_method"`
	IntervalMonths    int        `json:"interval_months"`
	BasedOn           civil.Date `json:"based_on"`
}

// Ship is a vessel in a company's fleet.
type Ship struct {
	ID                     string              `json:"id"`
	CompanyID              string              `json:"company_id"`
	Name                   string              `json:"name"`
	IMONumber              string              `json:"imo_number,omitempty"`
	Flag                   string              `json:"flag,omitempty"`
	ClassSociety           string              `json:"class_society,omitempty"`
	ShipType               string              `json:"ship_type,omitempty"`
	Anniversary            *Anniversary        `json:"anniversary_date,omitempty"`
	SpecialSurveyCycle     *SpecialSurveyCycle `json:"special_survey_cycle,omitempty"`
	LastDocking            *civil.Date         `json:"last_docking,omitempty"`
	LastDocking2           *civil.Date         `json:"last_docking_2,omitempty"`
	NextDocking            *DockingSchedule    `json:"next_docking,omitempty"`
	LastSpecialSurvey      *civil.Date         `json:"last_special_survey,omitempty"`
	LastIntermediateSurvey *civil.Date         `json:"last_intermediate_survey,omitempty"`
	KeelLaid               *civil.Date         `json:"keel_laid,omitempty"`
	DriveFolderID          string              `json:"drive_folder_id,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// Term types seen on certificates.
const (
	TermFull        = "Full Term"
	TermInterim     = "Interim"
	TermShort       = "Short Term"
	TermProvisional = "Provisional"
	TermConditional = "Conditional"
)

// Certificate belongs to exactly one ship.
type Certificate struct {
	ID             string      `json:"id"`
	ShipID         string      `json:"ship_id"`
	Name           string      `json:"name"`
	Abbreviation   string      `json:"abbreviation,omitempty"`
	Category       string      `json:"category,omitempty"`
	CertNo         string      `json:"cert_no,omitempty"`
	IssuedBy       string      `json:"issued_by,omitempty"`
	TermType       string      `json:"term_type,omitempty"`
	Annotation     string      `json:"annotation,omitempty"`
	IssuedDate     *civil.Date `json:"issued_date,omitempty"`
	ValidDate      *civil.Date `json:"valid_date,omitempty"`
	LastEndorse    *civil.Date `json:"last_endorse,omitempty"`
	NextSurveyDate *civil.Date `json:"next_survey_date,omitempty"`
	NextSurveyType string      `json:"next_survey_type,omitempty"`
	WindowType     string      `json:"window_type,omitempty"`
	FileID         string      `json:"file_id,omitempty"`
	FileName       string      `json:"file_name,omitempty"`
	ArchiveKey     string      `json:"archive_key,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// IsFullTerm reports whether the certificate seeds the special survey cycle.
func (c *Certificate) IsFullTerm() bool {
	return NormalizeTermType(c.TermType) == TermFull
}

// NormalizeTermType maps free-text term labels onto the known constants.
func NormalizeTermType(raw string) string {
	s := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	switch s {
	case "full term", "full-term", "fullterm", "full":
		return TermFull
	case "interim":
		return TermInterim
	case "short term", "short-term", "short":
		return TermShort
	case "provisional":
		return TermProvisional
	case "conditional":
		return TermConditional
	}
	return strings.TrimSpace(raw)
}

// ShipCertificates pairs a ship with its certificates for fleet scans.
type ShipCertificates struct {
	Ship         *Ship
	Certificates []*Certificate
}

// UploadedFile represents an uploaded certificate scan.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}
