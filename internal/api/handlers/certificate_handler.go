package handlers

import (
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/fleetdocs/internal/service"
)

type CertificateHandler struct {
	service *service.CertificateService
	today   func() civil.Date
}

func NewCertificateHandler(service *service.CertificateService, today func() civil.Date) *CertificateHandler {
	return &CertificateHandler{service: service, today: today}
}

type certificateRequest struct {
	Name         string `json:"cert_name"`
	Abbreviation string `json:"cert_abbreviation"`
	Category     string `json:"category"`
	CertNo       string `json:"cert_no"`
	IssuedBy     string `json:"issued_by"`
	TermType     string `json:"term_type"`
	Annotation   string `json:"annotation"`
	IssuedDate   string `json:"issued_date"`
	ValidDate    string `json:"valid_date"`
	LastEndorse  string `json:"last_endorse"`
}

func (r certificateRequest) toInput() (service.CertificateInput, error) {
	in := service.CertificateInput{
		Name:         r.Name,
		Abbreviation: r.Abbreviation,
		Category:     r.Category,
		CertNo:       r.CertNo,
		IssuedBy:     r.IssuedBy,
		TermType:     r.TermType,
		Annotation:   r.Annotation,
	}

	var err error
	if in.IssuedDate, err = parseDate("issued_date", r.IssuedDate); err != nil {
		return in, err
	}
	if in.ValidDate, err = parseDate("valid_date", r.ValidDate); err != nil {
		return in, err
	}
	if in.LastEndorse, err = parseDate("last_endorse", r.LastEndorse); err != nil {
		return in, err
	}
	return in, nil
}

func (h *CertificateHandler) ListByShip(c *gin.Context) {
	certs, err := h.service.ListByShip(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		respondError(c, "failed to fetch certificates", err)
		return
	}
	c.JSON(http.StatusOK, certs)
}

func (h *CertificateHandler) Get(c *gin.Context) {
	cert, err := h.service.Get(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		respondError(c, "failed to fetch certificate", err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *CertificateHandler) Create(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}

	cert, err := h.service.Create(c.Request.Context(), companyID(c), c.Param("id"), in)
	if err != nil {
		respondError(c, "failed to create certificate", err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

func (h *CertificateHandler) Update(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}

	cert, err := h.service.Update(c.Request.Context(), companyID(c), c.Param("id"), in)
	if err != nil {
		respondError(c, "failed to update certificate", err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *CertificateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), companyID(c), c.Param("id")); err != nil {
		respondError(c, "failed to delete certificate", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SurveyStatus reports the next survey of a certificate. Insufficient data
// is a 200 with success=false.
func (h *CertificateHandler) SurveyStatus(c *gin.Context) {
	today, err := parseToday(c)
	if err != nil {
		respondError(c, "invalid today", err)
		return
	}
	if today == (civil.Date{}) && h.today != nil {
		today = h.today()
	}

	status, err := h.service.SurveyStatus(c.Request.Context(), companyID(c), c.Param("id"), today)
	if err != nil {
		respondError(c, "failed to calculate survey status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// UploadFile stores a certificate scan. With ?extract=true the blank
// certificate fields are also filled from the scan.
func (h *CertificateHandler) UploadFile(c *gin.Context) {
	file, err := readUpload(c, "file")
	if err != nil {
		respondError(c, "invalid upload", err)
		return
	}

	upload := h.service.UploadFile
	if extract, _ := strconv.ParseBool(c.Query("extract")); extract {
		upload = h.service.UploadAndFill
	}
	cert, err := upload(c.Request.Context(), companyID(c), c.Param("id"), file)
	if err != nil {
		respondError(c, "failed to store certificate file", err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *CertificateHandler) Extract(c *gin.Context) {
	file, err := readUpload(c, "file")
	if err != nil {
		respondError(c, "invalid upload", err)
		return
	}

	result, err := h.service.Extract(c.Request.Context(), file)
	if err != nil {
		respondError(c, "failed to extract certificate fields", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CertificateHandler) bind(c *gin.Context) (service.CertificateInput, bool) {
	var req certificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return service.CertificateInput{}, false
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, "invalid certificate", err)
		return service.CertificateInput{}, false
	}
	return in, true
}
