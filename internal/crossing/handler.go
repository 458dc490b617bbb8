package crossing

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

// Handler wires HTTP endpoints for crossings.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers crossing routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/draft", h.draft)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%s: %w", err.Error(), shared.ErrValidation))
		return
	}
	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create crossing", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.RespondError(w, fmt.Errorf("company_id required: %w", shared.ErrValidation))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	crossings, err := h.service.List(r.Context(), companyID, shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.logger.Error("list crossings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, crossings)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.respondWith(w, r, http.StatusOK, h.service.Get)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	h.respondWith(w, r, http.StatusOK, h.service.Post)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.respondWith(w, r, http.StatusOK, h.service.Cancel)
}

func (h *Handler) draft(w http.ResponseWriter, r *http.Request) {
	h.respondWith(w, r, http.StatusOK, h.service.ResetToDraft)
}

func (h *Handler) respondWith(w http.ResponseWriter, r *http.Request, status int, op func(ctx context.Context, id int64) (Crossing, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("invalid crossing id: %w", shared.ErrValidation))
		return
	}
	result, err := op(r.Context(), id)
	if err != nil {
		h.logger.Error("crossing operation", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, status, result)
}
