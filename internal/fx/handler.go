package fx

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alm-erp/alm-erp/internal/platform/httpx"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// Handler exposes rate lookups and the manual refresh trigger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches fx routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rates/latest", h.latest)
	r.Get("/rates", h.atDate)
	r.Post("/refresh", h.refresh)
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	companyID, err := queryCompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rates, err := h.service.LatestRates(r.Context(), companyID)
	if err != nil {
		h.logger.Error("latest rates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}

func (h *Handler) atDate(w http.ResponseWriter, r *http.Request) {
	companyID, err := queryCompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid date: %w", shared.ErrValidation))
		return
	}
	rates, err := h.service.RatesAt(r.Context(), companyID, date)
	if err != nil {
		h.logger.Error("rates at date", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RefreshAll(r.Context())
	if err != nil {
		h.logger.Error("manual rate refresh", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func queryCompanyID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("company_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("company_id required: %w", shared.ErrValidation)
	}
	return id, nil
}
