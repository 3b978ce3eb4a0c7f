package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/p2p/internal/platform/httpx"
)

// HistoryLister reads archived job summaries.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]HistoryRecord, error)
}

// Handler exposes bulk upload endpoints.
type Handler struct {
	logger    *slog.Logger
	manager   *Manager
	history   HistoryLister
	defaults  RecordDefaults
	maxBytes  int64
	validator *validator.Validate
}

// NewHandler builds Handler instance. history may be nil.
func NewHandler(logger *slog.Logger, manager *Manager, history HistoryLister, defaults RecordDefaults, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Handler{
		logger:    logger,
		manager:   manager,
		history:   history,
		defaults:  defaults,
		maxBytes:  maxBytes,
		validator: validator.New(),
	}
}

// MountRoutes registers bulk routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bulk-upload", h.upload)
	r.Get("/bulk-status/{jobId}", h.status)
	r.Post("/bulk-cancel", h.cancel)
	r.Get("/bulk-jobs", h.list)
	r.Get("/bulk-history", h.listHistory)
	r.Get("/bulk-stream/{jobId}", func(w http.ResponseWriter, r *http.Request) {
		h.stream(w, r, chi.URLParam(r, "jobId"))
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "file field is required")
		return
	}
	defer file.Close()

	records, err := ParseRecords(file, header.Header.Get("Content-Type"), header.Filename, h.defaults)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jobID, err := h.manager.Submit(records)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"jobId": jobID, "totalItems": len(records)})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	job, err := h.manager.Status(chi.URLParam(r, "jobId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

type cancelRequest struct {
	JobID string `json:"jobId" validate:"required"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON with a jobId field")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "jobId is required")
		return
	}
	if err := h.manager.Cancel(req.JobID); err != nil {
		h.respondError(w, r, err)
		return
	}
	job, err := h.manager.Status(req.JobID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	jobs := h.manager.List()
	httpx.JSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": len(jobs)})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"history": []HistoryRecord{}, "total": 0})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list bulk history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": records, "total": len(records)})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, ErrJobNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, ErrJobFinished):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
	case errors.As(err, &tooLarge):
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Upload Too Large", err.Error())
	case errors.Is(err, ErrUnsupportedFormat):
		httpx.Problem(w, http.StatusUnsupportedMediaType, "Unsupported Format", err.Error())
	case errors.Is(err, ErrInvalidRecord), errors.Is(err, ErrNoRecords):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	default:
		h.logger.Error("bulk request", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
