package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/export"
	"github.com/andresuchdata/fleetdocs/internal/service"
)

type SurveyHandler struct {
	service *service.SurveyService
}

func NewSurveyHandler(service *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{service: service}
}

func (h *SurveyHandler) parseFilter(c *gin.Context) (domain.UpcomingSurveyFilter, error) {
	today, err := parseToday(c)
	if err != nil {
		return domain.UpcomingSurveyFilter{}, err
	}

	return domain.UpcomingSurveyFilter{
		CompanyID: companyID(c),
		ShipName:  strings.TrimSpace(c.Query("ship_name")),
		Status:    strings.TrimSpace(c.Query("status")),
		Today:     today,
	}, nil
}

func (h *SurveyHandler) Upcoming(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		respondError(c, "invalid filter", err)
		return
	}

	list, err := h.service.Upcoming(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "failed to fetch upcoming surveys", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *SurveyHandler) Export(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		respondError(c, "invalid filter", err)
		return
	}

	data, name, err := h.service.ExportXLSX(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "failed to export upcoming surveys", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentTypeXLSX, data)
}
