package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
)

// Browser is the part of the Drive client the handler lists and streams from.
type Browser interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	FindFolderByPath(ctx context.Context, path string) (string, error)
	GetFile(ctx context.Context, fileID string) (*File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
}

type Handler struct {
	service       Browser
	ingestService *IngestService
}

func NewHandler(service Browser, ingestService *IngestService) *Handler {
	return &Handler{
		service:       service,
		ingestService: ingestService,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/files/download", h.DownloadFile).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/ingest", h.IngestFile).Methods(http.MethodPost)
	router.HandleFunc("/api/drive/ingest/folder", h.IngestFolder).Methods(http.MethodPost)
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")

	if folderPath := query.Get("path"); folderPath != "" {
		id, err := h.service.FindFolderByPath(r.Context(), folderPath)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		folderID = id
	}

	files, err := h.service.ListFiles(r.Context(), folderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if files == nil {
		files = []*File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, errors.New("fileId parameter is required"))
		return
	}

	meta, err := h.service.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(meta.Name)))

	if err := h.service.DownloadFile(r.Context(), fileID, w); err != nil {
		// Headers are already sent; all we can do is log.
		log.Error().Err(err).Str("file_id", fileID).Msg("Drive download failed")
	}
}

func (h *Handler) IngestFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fileID := query.Get("fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, errors.New("fileId parameter is required"))
		return
	}
	companyID := r.Header.Get("X-Company-ID")
	if companyID == "" {
		companyID = query.Get("companyId")
	}
	if companyID == "" {
		writeError(w, http.StatusBadRequest, errors.New("company id is required"))
		return
	}

	result, err := h.ingestService.IngestFile(r.Context(), companyID, fileID)
	if err != nil {
		status := http.StatusInternalServerError
		var rowErr *RowError
		var dateErr *calendar.InvalidDateError
		if errors.As(err, &rowErr) || errors.As(err, &dateErr) {
			status = http.StatusBadRequest
		}
		writeError(w, status, fmt.Errorf("ingestion failed: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "File ingested successfully",
		"result":  result,
	})
}

func (h *Handler) IngestFolder(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")
	if folderID == "" && query.Get("path") != "" {
		id, err := h.service.FindFolderByPath(r.Context(), query.Get("path"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		folderID = id
	}
	if folderID == "" {
		writeError(w, http.StatusBadRequest, errors.New("folderId or path parameter is required"))
		return
	}
	companyID := r.Header.Get("X-Company-ID")
	if companyID == "" {
		companyID = query.Get("companyId")
	}
	if companyID == "" {
		writeError(w, http.StatusBadRequest, errors.New("company id is required"))
		return
	}

	workers, _ := strconv.Atoi(query.Get("workers"))
	if workers <= 0 || workers > maxIngestWorkers {
		workers = defaultIngestWorkers
	}

	results, err := h.ingestService.IngestFolder(r.Context(), companyID, folderID, workers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("folder ingestion failed: %w", err))
		return
	}

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"files":   len(results),
		"failed":  failed,
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
