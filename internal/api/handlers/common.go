package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/api/middleware"
	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/extraction"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/service"
)

const maxUploadBytes = 20 << 20

func companyID(c *gin.Context) string {
	return c.GetString(middleware.CompanyIDKey)
}

// respondError maps service errors onto status codes and writes the
// {"error", "details"} body.
func respondError(c *gin.Context, message string, err error) {
	var (
		dateErr       *calendar.InvalidDateError
		validationErr *service.ValidationError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &dateErr), errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, extraction.ErrDisabled), errors.Is(err, service.ErrUploadDisabled):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

// parseDate reads an optional request date in any accepted format.
func parseDate(field, value string) (*civil.Date, error) {
	d, err := calendar.ParseOptional(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// parseToday reads the "today" query parameter. Empty means the server's
// today.
func parseToday(c *gin.Context) (civil.Date, error) {
	d, err := parseDate("today", c.Query("today"))
	if err != nil || d == nil {
		return civil.Date{}, err
	}
	return *d, nil
}

func readUpload(c *gin.Context, field string) (domain.UploadedFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return domain.UploadedFile{}, &service.ValidationError{Field: field, Message: "file is required"}
	}
	if header.Size > maxUploadBytes {
		return domain.UploadedFile{}, &service.ValidationError{Field: field, Message: "file is too large"}
	}

	f, err := header.Open()
	if err != nil {
		return domain.UploadedFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return domain.UploadedFile{}, err
	}

	return domain.UploadedFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
