package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/export"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/repository/memory"
	"github.com/andresuchdata/fleetdocs/internal/service"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

type APISuite struct {
	suite.Suite
	router  *gin.Engine
	metrics *metrics.Metrics
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	calc, err := survey.NewCalculator(survey.DefaultSettings())
	s.Require().NoError(err)
	store := memory.New()
	s.metrics = metrics.New()

	ships := service.NewShipService(store, store, calc, nil, s.metrics)
	s.router = NewRouter(&Services{
		ShipService:        ships,
		CertificateService: service.NewCertificateService(store, store, ships, calc, service.CertificateServiceOptions{Metrics: s.metrics}),
		SurveyService:      service.NewSurveyService(store, calc, nil, nil, s.metrics, nil),
	}, []string{"*"}, s.metrics)
}

func (s *APISuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Company-ID", "acme")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APISuite) decode(w *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v))
}

func (s *APISuite) createShip() string {
	w := s.do(http.MethodPost, "/api/v1/ships", gin.H{
		"name":         "Ocean Star",
		"last_docking": "15/06/2023",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var ship domain.Ship
	s.decode(w, &ship)
	return ship.ID
}

func (s *APISuite) createCertificate(shipID string) string {
	w := s.do(http.MethodPost, "/api/v1/ships/"+shipID+"/certificates", gin.H{
		"cert_name":         "Cargo Ship Safety Construction",
		"cert_abbreviation": "CSSC",
		"term_type":         "Full Term",
		"issued_date":       "2024-03-20T00:00:00",
		"valid_date":        "20/03/2029",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var cert domain.Certificate
	s.decode(w, &cert)
	return cert.ID
}

func (s *APISuite) TestHealthAndMetrics() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)

	s.do(http.MethodGet, "/api/v1/ships", nil)
	w = s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `fleetdocs_http_requests_total{method="GET",route="/api/v1/ships",status="200"}`)
}

func (s *APISuite) TestHealthCheckFailure() {
	router := NewRouter(&Services{HealthCheck: func(context.Context) error {
		return errors.New("connection refused")
	}}, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *APISuite) TestCompanyIsRequired() {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ships", nil))
	s.Equal(http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ships?company_id=acme", nil))
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())

	for _, id := range []string{"*", "a*", "acme:1", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys/upcoming", nil)
		req.Header.Set("X-Company-ID", id)
		w = httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusBadRequest, w.Code, id)
	}
}

func (s *APISuite) TestShipErrors() {
	w := s.do(http.MethodPost, "/api/v1/ships", gin.H{"name": ""})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/ships", gin.H{"name": "Ocean Star", "last_docking": "31/02/2024"})
	s.Equal(http.StatusBadRequest, w.Code)
	var body map[string]string
	s.decode(w, &body)
	s.Contains(body["details"], "last_docking")

	w = s.do(http.MethodGet, "/api/v1/ships/unknown", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestShipLifecycle() {
	shipID := s.createShip()
	s.createCertificate(shipID)

	w := s.do(http.MethodGet, "/api/v1/ships/"+shipID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var ship domain.Ship
	s.decode(w, &ship)
	s.Require().NotNil(ship.Anniversary)
	s.Equal(domain.SourceAuto, ship.Anniversary.Source)
	s.Require().NotNil(ship.NextDocking)
	s.Equal("2025-12-15", ship.NextDocking.Date.String())

	w = s.do(http.MethodPut, "/api/v1/ships/"+shipID+"/anniversary", gin.H{"day": 30, "month": 2})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/ships/"+shipID+"/anniversary", gin.H{"day": 15, "month": 1})
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &ship)
	s.Equal(domain.SourceManual, ship.Anniversary.Source)

	w = s.do(http.MethodDelete, "/api/v1/ships/"+shipID+"/anniversary/override", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var result domain.AnniversaryResult
	s.decode(w, &result)
	s.True(result.Success)
	s.Equal(20, result.Anniversary.Day)

	w = s.do(http.MethodPut, "/api/v1/ships/"+shipID+"/special-survey-cycle", gin.H{"from_date": "01/01/2021", "to_date": "30/06/2025"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &ship)
	s.Equal("special_survey_cycle_end", ship.NextDocking.CalculationMethod)

	w = s.do(http.MethodPost, "/api/v1/ships/"+shipID+"/docking/recalculate", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var docking domain.DockingResult
	s.decode(w, &docking)
	s.True(docking.Success)

	w = s.do(http.MethodDelete, "/api/v1/ships/"+shipID, nil)
	s.Equal(http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/api/v1/ships/"+shipID+"/certificates", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestSurveyStatus() {
	certID := s.createCertificate(s.createShip())

	w := s.do(http.MethodGet, "/api/v1/certificates/"+certID+"/survey-status?today=13/06/2025", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status domain.SurveyStatus
	s.decode(w, &status)
	s.True(status.Success)
	s.Equal("2025-06-20", status.NextSurveyDate.String())
	s.Equal(domain.StatusCritical, status.Status)
	s.Equal(7, status.DaysUntilWindowClose)

	w = s.do(http.MethodGet, "/api/v1/certificates/"+certID+"/survey-status?today=2025-13-01", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/certificates/"+certID+"/survey-status", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestSurveyStatusInsufficientDataIsOK() {
	shipID := s.createShip()
	w := s.do(http.MethodPost, "/api/v1/ships/"+shipID+"/certificates", gin.H{"cert_name": "Safe Manning"})
	s.Require().Equal(http.StatusCreated, w.Code)
	var cert domain.Certificate
	s.decode(w, &cert)

	w = s.do(http.MethodGet, "/api/v1/certificates/"+cert.ID+"/survey-status?today=2025-06-01", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status domain.SurveyStatus
	s.decode(w, &status)
	s.False(status.Success)
	s.NotEmpty(status.Message)
}

func (s *APISuite) TestCertificateUpdateAndDelete() {
	certID := s.createCertificate(s.createShip())

	w := s.do(http.MethodPut, "/api/v1/certificates/"+certID, gin.H{
		"cert_name":   "Cargo Ship Safety Construction",
		"term_type":   "Full Term",
		"issued_date": "20/03/2024",
		"valid_date":  "19/03/2024",
	})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/certificates/"+certID, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/certificates/"+certID, nil)
	s.Equal(http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/api/v1/certificates/"+certID, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestUpcomingAndExport() {
	s.createCertificate(s.createShip())

	w := s.do(http.MethodGet, "/api/v1/surveys/upcoming?today=2025-06-01", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var list domain.UpcomingSurveys
	s.decode(w, &list)
	s.Require().Len(list.Entries, 1)
	s.Equal(domain.StatusDueSoon, list.Entries[0].Status)
	s.Equal(1, list.Total)

	w = s.do(http.MethodGet, "/api/v1/surveys/upcoming?today=2025-06-01&status=overdue", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &list)
	s.Empty(list.Entries)
	s.NotNil(list.Entries)

	w = s.do(http.MethodGet, "/api/v1/surveys/upcoming?today=yesterday", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/surveys/upcoming?today=2025-06-01&status=urgent", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/surveys/upcoming/export?today=2025-06-01", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	s.Contains(w.Header().Get("Content-Disposition"), "upcoming-surveys-2025-06-01.xlsx")
}

func (s *APISuite) TestUploadsWithoutBackends() {
	certID := s.createCertificate(s.createShip())

	w := s.do(http.MethodPost, "/api/v1/certificates/extract", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	req := multipartRequest(s.T(), "/api/v1/certificates/extract", "scan.pdf", []byte("%PDF"))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusServiceUnavailable, w.Code)

	req = multipartRequest(s.T(), "/api/v1/certificates/"+certID+"/file", "scan.pdf", []byte("%PDF"))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusServiceUnavailable, w.Code)

	req = multipartRequest(s.T(), "/api/v1/certificates/"+certID+"/file?extract=true", "scan.pdf", []byte("%PDF"))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func multipartRequest(t *testing.T, path, filename string, data []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Company-ID", "acme")
	return req
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", " "})
	require.False(t, all)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	require.True(t, all)
}
