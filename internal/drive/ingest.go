package drive

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

// RegisterStore persists imported register rows.
type RegisterStore interface {
	UpsertShip(ctx context.Context, ship *domain.Ship) (string, error)
	UpsertCertificate(ctx context.Context, cert *domain.Certificate) (string, error)
}

// ShipRefresher recomputes the derived dates of a ship after its register
// rows were written.
type ShipRefresher interface {
	RecalculateShip(ctx context.Context, companyID, shipID string) error
}

// FileSource is the part of the Drive client the ingester needs.
type FileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	GetFile(ctx context.Context, fileID string) (*File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
}

type IngestService struct {
	files     FileSource
	store     RegisterStore
	refresher ShipRefresher
}

func NewIngestService(files FileSource, store RegisterStore, refresher ShipRefresher) *IngestService {
	return &IngestService{
		files:     files,
		store:     store,
		refresher: refresher,
	}
}

type IngestResult struct {
	Rows         int `json:"rows"`
	Ships        int `json:"ships"`
	Certificates int `json:"certificates"`
}

// RowError reports the register line that failed to parse.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// IngestFile downloads a CSV or XLSX register from Drive and imports it.
func (s *IngestService) IngestFile(ctx context.Context, companyID, fileID string) (*IngestResult, error) {
	if s.files == nil {
		return nil, fmt.Errorf("drive is not configured")
	}

	meta, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	format := FormatOf(meta.Name)
	if format == "" {
		return nil, fmt.Errorf("unsupported register file %q: expected .csv or .xlsx", meta.Name)
	}

	var buf bytes.Buffer
	if err := s.files.DownloadFile(ctx, fileID, &buf); err != nil {
		return nil, err
	}

	return s.IngestReader(ctx, companyID, &buf, format)
}

// IngestReader imports a register. The whole file is parsed before anything
// is written, so a bad row leaves the database untouched.
func (s *IngestService) IngestReader(ctx context.Context, companyID string, r io.Reader, format string) (*IngestResult, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, fmt.Errorf("company id is required")
	}

	records, err := readRecords(r, format)
	if err != nil {
		return nil, err
	}
	rows, err := ParseRegister(records)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Rows: len(rows)}
	shipIDs := make(map[string]string)
	var order []string

	for _, row := range rows {
		key := strings.ToLower(row.Ship.Name)
		shipID, ok := shipIDs[key]
		if !ok {
			ship := row.Ship
			ship.CompanyID = companyID
			shipID, err = s.store.UpsertShip(ctx, &ship)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", row.Line, err)
			}
			shipIDs[key] = shipID
			order = append(order, shipID)
			result.Ships++
		}

		if row.Certificate == nil {
			continue
		}
		cert := *row.Certificate
		cert.ShipID = shipID
		if _, err := s.store.UpsertCertificate(ctx, &cert); err != nil {
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		}
		result.Certificates++
	}

	if s.refresher != nil {
		for _, id := range order {
			if err := s.refresher.RecalculateShip(ctx, companyID, id); err != nil {
				log.Warn().Err(err).Str("ship_id", id).Msg("Failed to recalculate imported ship")
			}
		}
	}

	log.Info().
		Str("company_id", companyID).
		Int("rows", result.Rows).
		Int("ships", result.Ships).
		Int("certificates", result.Certificates).
		Msg("Register imported")

	return result, nil
}

func readRecords(r io.Reader, format string) ([][]string, error) {
	switch format {
	case formatXLSX:
		return readXLSXRows(r)
	case formatCSV, "":
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		records, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		return records, nil
	}
	return nil, fmt.Errorf("unsupported register format %q", format)
}

// RegisterRow is one parsed register line. Certificate is nil for lines that
// only carry ship data.
type RegisterRow struct {
	Line        int
	Ship        domain.Ship
	Certificate *domain.Certificate
}

// Register columns, keyed by the normalised header text.
const (
	colShipName         = "ship"
	colIMO              = "imo"
	colFlag             = "flag"
	colClass            = "class"
	colShipType         = "ship_type"
	colLastDocking      = "last_docking"
	colLastDocking2     = "last_docking_2"
	colLastSpecial      = "last_special_survey"
	colLastIntermediate = "last_intermediate_survey"
	colKeelLaid         = "keel_laid"
	colCycleMonths      = "special_survey_cycle"
	colCycleFrom        = "special_survey_from"
	colCycleTo          = "special_survey_to"
	colCertName         = "cert_name"
	colCertAbbr         = "cert_abbreviation"
	colCategory         = "category"
	colCertNo           = "cert_no"
	colIssuedBy         = "issued_by"
	colTermType         = "term_type"
	colIssuedDate       = "issued_date"
	colValidDate        = "valid_date"
	colLastEndorse      = "last_endorse"
	colAnnotation       = "annotation"
)

var headerAliases = map[string]string{
	"ship":                          colShipName,
	"ship name":                     colShipName,
	"vessel":                        colShipName,
	"vessel name":                   colShipName,
	"imo":                           colIMO,
	"imo no":                        colIMO,
	"imo number":                    colIMO,
	"flag":                          colFlag,
	"class":                         colClass,
	"class society":                 colClass,
	"ship type":                     colShipType,
	"type of ship":                  colShipType,
	"last docking":                  colLastDocking,
	"last docking 1":                colLastDocking,
	"last docking 2":                colLastDocking2,
	"previous docking":              colLastDocking2,
	"last special survey":           colLastSpecial,
	"last intermediate survey":      colLastIntermediate,
	"keel laid":                     colKeelLaid,
	"special survey cycle":          colCycleMonths,
	"special survey cycle (months)": colCycleMonths,
	"special survey cycle months":   colCycleMonths,
	"special survey from":           colCycleFrom,
	"special survey to":             colCycleTo,
	"certificate":                   colCertName,
	"certificate name":              colCertName,
	"cert name":                     colCertName,
	"abbreviation":                  colCertAbbr,
	"abbr":                          colCertAbbr,
	"category":                      colCategory,
	"cert no":                       colCertNo,
	"certificate no":                colCertNo,
	"certificate number":            colCertNo,
	"issued by":                     colIssuedBy,
	"term type":                     colTermType,
	"type":                          colTermType,
	"issued date":                   colIssuedDate,
	"issue date":                    colIssuedDate,
	"date of issue":                 colIssuedDate,
	"valid date":                    colValidDate,
	"valid until":                   colValidDate,
	"expiry date":                   colValidDate,
	"last endorse":                  colLastEndorse,
	"last endorsement":              colLastEndorse,
	"annotation":                    colAnnotation,
	"remarks":                       colAnnotation,
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.NewReplacer("_", " ", ".", "").Replace(h)
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// ParseRegister maps register records (header first) onto ships and
// certificates. Blank lines are skipped. Legacy month-count special survey
// cycles are normalised here so nothing downstream sees them.
func ParseRegister(records [][]string) ([]RegisterRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("register is empty")
	}

	colMap := make(map[string]int)
	for i, h := range records[0] {
		if key, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := colMap[key]; !dup {
				colMap[key] = i
			}
		}
	}
	if _, ok := colMap[colShipName]; !ok {
		return nil, fmt.Errorf("missing required column: Ship Name")
	}

	var rows []RegisterRow
	for i, record := range records[1:] {
		line := i + 2
		if isBlank(record) {
			continue
		}

		row, err := parseRow(record, colMap)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		row.Line = line
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(record []string, colMap map[string]int) (RegisterRow, error) {
	get := func(col string) string {
		if idx, ok := colMap[col]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	var firstErr error
	date := func(col string) *civil.Date {
		d, err := calendar.ParseOptional(get(col))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", col, err)
		}
		return d
	}

	var row RegisterRow
	row.Ship = domain.Ship{
		Name:                   get(colShipName),
		IMONumber:              get(colIMO),
		Flag:                   get(colFlag),
		ClassSociety:           get(colClass),
		ShipType:               get(colShipType),
		LastDocking:            date(colLastDocking),
		LastDocking2:           date(colLastDocking2),
		LastSpecialSurvey:      date(colLastSpecial),
		LastIntermediateSurvey: date(colLastIntermediate),
		KeelLaid:               date(colKeelLaid),
	}
	if row.Ship.Name == "" {
		return row, fmt.Errorf("ship name is required")
	}

	from, to := date(colCycleFrom), date(colCycleTo)
	if firstErr != nil {
		return row, firstErr
	}
	switch {
	case from != nil && to != nil:
		if to.Before(*from) {
			return row, fmt.Errorf("special survey cycle ends before it starts")
		}
		row.Ship.SpecialSurveyCycle = &domain.SpecialSurveyCycle{From: *from, To: *to, Source: domain.SourceManual}
	case get(colCycleMonths) != "":
		months, err := parseMonths(get(colCycleMonths))
		if err != nil {
			return row, err
		}
		row.Ship.SpecialSurveyCycle = survey.NormalizeLegacyCycle(months, row.Ship.LastSpecialSurvey)
	}

	name := get(colCertName)
	if name == "" {
		return row, nil
	}
	cert := &domain.Certificate{
		Name:         name,
		Abbreviation: get(colCertAbbr),
		Category:     get(colCategory),
		CertNo:       get(colCertNo),
		IssuedBy:     get(colIssuedBy),
		TermType:     domain.NormalizeTermType(get(colTermType)),
		Annotation:   get(colAnnotation),
		IssuedDate:   date(colIssuedDate),
		ValidDate:    date(colValidDate),
		LastEndorse:  date(colLastEndorse),
	}
	if firstErr != nil {
		return row, firstErr
	}
	row.Certificate = cert
	return row, nil
}

// parseMonths accepts "60" and spreadsheet floats like "60.0".
func parseMonths(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != float64(int(f)) {
		return 0, errors.New("special survey cycle must be a whole number of months")
	}
	return int(f), nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
