package procurement

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/p2p/internal/command"
	"github.com/odyssey-erp/p2p/internal/ledger"
	"github.com/odyssey-erp/p2p/internal/platform/httpx"
)

// Handler manages command and ledger endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	interpreter *command.Interpreter
	validator   *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, interpreter *command.Interpreter) *Handler {
	return &Handler{logger: logger, service: service, interpreter: interpreter, validator: validator.New()}
}

// MountRoutes registers command routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/execute", h.execute)
	r.Get("/commands", h.listCommands)
	r.Get("/po-status/{poNumber}", h.poStatus)
	r.Get("/po-list", h.poList)
	r.Post("/cancel", h.cancel)
}

type executeRequest struct {
	Command string `json:"command" validate:"required,max=1000"`
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON with a command field")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "command is required")
		return
	}
	item := h.interpreter.Parse(req.Command)
	if !item.Valid() {
		h.logger.Info("command rejected", slog.String("intent", string(item.Intent)), slog.Int("errors", len(item.Errors)))
		httpx.JSON(w, http.StatusUnprocessableEntity, h.service.Execute(r.Context(), item))
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Execute(r.Context(), item))
}

func (h *Handler) listCommands(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"commands": command.Catalog()})
}

func (h *Handler) poStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Status(r.Context(), chi.URLParam(r, "poNumber"))
	if err != nil {
		if errors.Is(err, ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("po status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, progress)
}

func (h *Handler) poList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListPurchaseOrders(r.Context())
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchaseOrders": entries, "total": len(entries)})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	n := h.service.Cancel()
	httpx.JSON(w, http.StatusOK, map[string]any{"cancelled": n > 0, "inFlight": n})
}
