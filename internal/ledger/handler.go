package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alm-erp/alm-erp/internal/platform/httpx"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// ReportStore loads the valued document lines feeding the entries report.
type ReportStore interface {
	ListReportLines(ctx context.Context, companyID int64, accountType AccountType, from, to time.Time) ([]ReportLine, error)
}

// Handler exposes the partner entries report.
type Handler struct {
	logger     *slog.Logger
	store      ReportStore
	convention SignConvention
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, store ReportStore, convention SignConvention) *Handler {
	return &Handler{logger: logger, store: store, convention: convention}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.entries)
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.RespondError(w, fmt.Errorf("company_id required: %w", shared.ErrValidation))
		return
	}
	accountType := AccountType(r.URL.Query().Get("account_type"))
	if !accountType.IsValid() {
		httpx.RespondError(w, fmt.Errorf("account_type must be receivable or payable: %w", shared.ErrValidation))
		return
	}
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid from date: %w", shared.ErrValidation))
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid to date: %w", shared.ErrValidation))
		return
	}
	if from.After(to) {
		httpx.RespondError(w, fmt.Errorf("from must not be after to: %w", shared.ErrValidation))
		return
	}

	lines, err := h.store.ListReportLines(r.Context(), companyID, accountType, from, to)
	if err != nil {
		h.logger.Error("list report lines", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	report, err := BuildEntriesReport(accountType, h.convention, lines)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
