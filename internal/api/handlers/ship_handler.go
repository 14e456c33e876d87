package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/fleetdocs/internal/service"
)

type ShipHandler struct {
	service *service.ShipService
}

func NewShipHandler(service *service.ShipService) *ShipHandler {
	return &ShipHandler{service: service}
}

type shipRequest struct {
	Name                   string `json:"name"`
	IMONumber              string `json:"imo_number"`
	Flag                   string `json:"flag"`
	ClassSociety           string `json:"class_society"`
	ShipType               string `json:"ship_type"`
	LastDocking            string `json:"last_docking"`
	LastDocking2           string `json:"last_docking_2"`
	LastSpecialSurvey      string `json:"last_special_survey"`
	LastIntermediateSurvey string `json:"last_intermediate_survey"`
	KeelLaid               string `json:"keel_laid"`
	DriveFolderID          string `json:"drive_folder_id"`
}

func (r shipRequest) toInput() (service.ShipInput, error) {
	in := service.ShipInput{
		Name:          r.Name,
		IMONumber:     r.IMONumber,
		Flag:          r.Flag,
		ClassSociety:  r.ClassSociety,
		ShipType:      r.ShipType,
		DriveFolderID: r.DriveFolderID,
	}

	var err error
	if in.LastDocking, err = parseDate("last_docking", r.LastDocking); err != nil {
		return in, err
	}
	if in.LastDocking2, err = parseDate("last_docking_2", r.LastDocking2); err != nil {
		return in, err
	}
	if in.LastSpecialSurvey, err = parseDate("last_special_survey", r.LastSpecialSurvey); err != nil {
		return in, err
	}
	if in.LastIntermediateSurvey, err = parseDate("last_intermediate_survey", r.LastIntermediateSurvey); err != nil {
		return in, err
	}
	if in.KeelLaid, err = parseDate("keel_laid", r.KeelLaid); err != nil {
		return in, err
	}
	return in, nil
}

type anniversaryRequest struct {
	Day   int `json:"day" binding:"required"`
	Month int `json:"month" binding:"required"`
}

type cycleRequest struct {
	FromDate string `json:"from_date" binding:"required"`
	ToDate   string `json:"to_date" binding:"required"`
}

func (h *ShipHandler) List(c *gin.Context) {
	ships, err := h.service.List(c.Request.Context(), companyID(c))
	if err != nil {
		respondError(c, "failed to fetch ships", err)
		return
	}
	c.JSON(http.StatusOK, ships)
}

func (h *ShipHandler) Get(c *gin.Context) {
	ship, err := h.service.Get(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		respondError(c, "failed to fetch ship", err)
		return
	}
	c.JSON(http.StatusOK, ship)
}

func (h *ShipHandler) Create(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, "invalid ship", err)
		return
	}

	ship, err := h.service.Create(c.Request.Context(), companyID(c), in)
	if err != nil {
		respondError(c, "failed to create ship", err)
		return
	}
	c.JSON(http.StatusCreated, ship)
}

func (h *ShipHandler) Update(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, "invalid ship", err)
		return
	}

	ship, err := h.service.Update(c.Request.Context(), companyID(c), c.Param("id"), in)
	if err != nil {
		respondError(c, "failed to update ship", err)
		return
	}
	c.JSON(http.StatusOK, ship)
}

func (h *ShipHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), companyID(c), c.Param("id")); err != nil {
		respondError(c, "failed to delete ship", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ShipHandler) RecalculateAnniversary(c *gin.Context) {
	result, err := h.service.RecalculateAnniversary(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		respondError(c, "failed to calculate anniversary date", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ShipHandler) SetAnniversary(c *gin.Context) {
	var req anniversaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ship, err := h.service.SetManualAnniversary(c.Request.Context(), companyID(c), c.Param("id"), req.Day, time.Month(req.Month))
	if err != nil {
		respondError(c, "failed to set anniversary date", err)
		return
	}
	c.JSON(http.StatusOK, ship)
}

func (h *ShipHandler) ClearAnniversaryOverride(c *gin.Context) {
	result, err := h.service.ClearAnniversaryOverride(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		respondError(c, "failed to reset anniversary date", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ShipHandler) SetSpecialSurveyCycle(c *gin.Context) {
	var req cycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	from, err := parseDate("from_date", req.FromDate)
	if err != nil {
		respondError(c, "invalid special survey cycle", err)
		return
	}
	to, err := parseDate("to_date", req.ToDate)
	if err != nil {
		respondError(c, "invalid special survey cycle", err)
		return
	}
	if from == nil || to == nil {
		respondError(c, "invalid special survey cycle", &service.ValidationError{Message: "from_date and to_date are required"})
		return
	}

	ship, err := h.service.SetSpecialSurveyCycle(c.Request.Context(), companyID(c), c.Param("id"), *from, *to)
	if err != nil {
		respondError(c, "failed to set special survey cycle", err)
		return
	}
	c.JSON(http.StatusOK, ship)
}

func (h *ShipHandler) RecalculateDocking(c *gin.Context) {
	result, err := h.service.RecalculateDocking(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		respondError(c, "failed to calculate next docking", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
