package lodging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alm-erp/alm-erp/internal/platform/httpx"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// Handler wires HTTP endpoints for reservation advances.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers lodging routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/advances", h.registerAdvance)
	r.Get("/{id}/advances", h.listAdvances)
	r.Get("/{id}/advances/totals", h.totals)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/checkin", h.checkin)
	r.Post("/{id}/checkout", h.checkout)
}

func (h *Handler) registerAdvance(w http.ResponseWriter, r *http.Request) {
	id, err := reservationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input RegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", shared.ErrValidation))
		return
	}
	input.ReservationID = id
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%s: %w", err.Error(), shared.ErrValidation))
		return
	}
	advance, err := h.service.RegisterAdvance(r.Context(), input)
	if err != nil {
		h.logger.Error("register advance", slog.Int64("reservation", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, advance)
}

func (h *Handler) listAdvances(w http.ResponseWriter, r *http.Request) {
	id, err := reservationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	advances, err := h.service.Advances(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, advances)
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	id, err := reservationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.Totals(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Confirm)
}

func (h *Handler) checkin(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Checkin)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	id, err := reservationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	applied, err := h.service.Checkout(r.Context(), id)
	if err != nil {
		h.logger.Error("checkout", slog.Int64("reservation", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"applied": applied})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) error) {
	id, err := reservationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := op(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func reservationID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid reservation id: %w", shared.ErrValidation)
	}
	return id, nil
}
