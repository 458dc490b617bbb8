package banking

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alm-erp/alm-erp/internal/platform/httpx"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// Handler wires HTTP endpoints for bank synchronization.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	client    *Client
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, client *Client) *Handler {
	return &Handler{logger: logger, service: service, client: client, validator: validator.New()}
}

// MountRoutes registers banking routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync", h.sync)
	r.Get("/status", h.status)
	r.Get("/accounts", h.accounts)
}

type syncRequest struct {
	CompanyID int64  `json:"company_id" validate:"required,gt=0"`
	From      string `json:"from" validate:"required,datetime=2006-01-02"`
	To        string `json:"to" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%s: %w", err.Error(), shared.ErrValidation))
		return
	}
	from, _ := time.Parse("2006-01-02", req.From)
	to, _ := time.Parse("2006-01-02", req.To)

	summary, err := h.service.SyncRange(r.Context(), req.CompanyID, from, to)
	if err != nil {
		h.logger.Error("bank sync", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if err := h.client.TestConnection(r.Context()); err != nil {
		h.logger.Error("tesote status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) accounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.client.Accounts(r.Context())
	if err != nil {
		h.logger.Error("tesote accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}
