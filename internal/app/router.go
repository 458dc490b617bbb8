package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alm-erp/alm-erp/internal/banking"
	"github.com/alm-erp/alm-erp/internal/crossing"
	"github.com/alm-erp/alm-erp/internal/fx"
	"github.com/alm-erp/alm-erp/internal/ledger"
	"github.com/alm-erp/alm-erp/internal/lodging"
	"github.com/alm-erp/alm-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	FXHandler       *fx.Handler
	BankingHandler  *banking.Handler
	CrossingHandler *crossing.Handler
	LedgerHandler   *ledger.Handler
	LodgingHandler  *lodging.Handler
	JobHandler      *jobs.Handler
	Pool            *pgxpool.Pool
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.Config != nil {
			r.Use(BearerTokenGuard(params.Config.APIToken, params.Logger))
		}
		if params.FXHandler != nil {
			r.Route("/fx", params.FXHandler.MountRoutes)
		}
		if params.BankingHandler != nil {
			r.Route("/banking", params.BankingHandler.MountRoutes)
		}
		if params.CrossingHandler != nil {
			r.Route("/crossings", params.CrossingHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.LodgingHandler != nil {
			r.Route("/reservations", params.LodgingHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
