package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

// ErrDisabled is returned when no extraction backend is configured.
var ErrDisabled = errors.New("certificate extraction is not configured")

// Extractor reads certificate fields out of an uploaded scan.
type Extractor interface {
	Extract(ctx context.Context, file domain.UploadedFile) (*Result, error)
}

// Result holds the extracted fields. Dates the model returned in a form we
// cannot read are dropped and listed in Warnings.
type Result struct {
	ShipName     string      `json:"ship_name,omitempty"`
	IMONumber    string      `json:"imo_number,omitempty"`
	Name         string      `json:"cert_name,omitempty"`
	Abbreviation string      `json:"cert_abbreviation,omitempty"`
	Category     string      `json:"category,omitempty"`
	CertNo       string      `json:"cert_no,omitempty"`
	IssuedBy     string      `json:"issued_by,omitempty"`
	TermType     string      `json:"term_type,omitempty"`
	Annotation   string      `json:"annotation,omitempty"`
	IssuedDate   *civil.Date `json:"issued_date,omitempty"`
	ValidDate    *civil.Date `json:"valid_date,omitempty"`
	LastEndorse  *civil.Date `json:"last_endorse,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
}

// rawResult is the JSON shape requested from the model.
type rawResult struct {
	ShipName        string `json:"ship_name"`
	IMONumber       string `json:"imo_number"`
	CertificateName string `json:"certificate_name"`
	Abbreviation    string `json:"abbreviation"`
	Category        string `json:"category"`
	CertNo          string `json:"cert_no"`
	IssuedBy        string `json:"issued_by"`
	TermType        string `json:"term_type"`
	Annotation      string `json:"annotation"`
	IssuedDate      string `json:"issued_date"`
	ValidDate       string `json:"valid_date"`
	LastEndorse     string `json:"last_endorse"`
}

const prompt = `You read scanned maritime certificates.
Return one JSON object with these string fields and nothing else:
ship_name, imo_number, certificate_name, abbreviation, category, cert_no,
issued_by, term_type, annotation, issued_date, valid_date, last_endorse.
term_type is one of "Full Term", "Interim", "Short Term", "Provisional", "Conditional".
annotation is the survey window written on the certificate, e.g. "+/-3M", or "".
Dates are YYYY-MM-DD. Use "" for anything not printed on the document.`

// ParseResponse decodes the model output. Markdown code fences around the
// JSON are tolerated.
func ParseResponse(text string) (*Result, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("empty extraction response")
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	r := &Result{
		ShipName:     strings.TrimSpace(raw.ShipName),
		IMONumber:    strings.TrimSpace(raw.IMONumber),
		Name:         strings.TrimSpace(raw.CertificateName),
		Abbreviation: strings.TrimSpace(raw.Abbreviation),
		Category:     strings.TrimSpace(raw.Category),
		CertNo:       strings.TrimSpace(raw.CertNo),
		IssuedBy:     strings.TrimSpace(raw.IssuedBy),
		TermType:     domain.NormalizeTermType(raw.TermType),
		Annotation:   strings.TrimSpace(raw.Annotation),
	}
	r.IssuedDate = r.date("issued_date", raw.IssuedDate)
	r.ValidDate = r.date("valid_date", raw.ValidDate)
	r.LastEndorse = r.date("last_endorse", raw.LastEndorse)

	return r, nil
}

func (r *Result) date(field, value string) *civil.Date {
	d, err := calendar.ParseOptional(value)
	if err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", field, err))
		return nil
	}
	return d
}

// Apply copies extracted values into cert where cert has none.
func (r *Result) Apply(cert *domain.Certificate) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&cert.Name, r.Name)
	fill(&cert.Abbreviation, r.Abbreviation)
	fill(&cert.Category, r.Category)
	fill(&cert.CertNo, r.CertNo)
	fill(&cert.IssuedBy, r.IssuedBy)
	fill(&cert.TermType, r.TermType)
	fill(&cert.Annotation, r.Annotation)

	if cert.IssuedDate == nil {
		cert.IssuedDate = r.IssuedDate
	}
	if cert.ValidDate == nil {
		cert.ValidDate = r.ValidDate
	}
	if cert.LastEndorse == nil {
		cert.LastEndorse = r.LastEndorse
	}
}

type noopExtractor struct{}

// NewNoopExtractor returns an Extractor that always fails with ErrDisabled.
func NewNoopExtractor() Extractor {
	return noopExtractor{}
}

func (noopExtractor) Extract(context.Context, domain.UploadedFile) (*Result, error) {
	return nil, ErrDisabled
}
