package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	accesshttp "github.com/meridian-books/meridian/internal/access/http"
	attesthttp "github.com/meridian-books/meridian/internal/attest/http"
	exporthttp "github.com/meridian-books/meridian/internal/export/http"
	ledgerhttp "github.com/meridian-books/meridian/internal/ledger/http"
	"github.com/meridian-books/meridian/internal/observability"
	periodshttp "github.com/meridian-books/meridian/internal/periods/http"
	replayhttp "github.com/meridian-books/meridian/internal/replay/http"
	statementshttp "github.com/meridian-books/meridian/internal/statements/http"
	taxhttp "github.com/meridian-books/meridian/internal/tax/http"
	"github.com/meridian-books/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	LedgerHandler     *ledgerhttp.Handler
	PeriodsHandler    *periodshttp.Handler
	ReplayHandler     *replayhttp.Handler
	StatementsHandler *statementshttp.Handler
	TaxHandler        *taxhttp.Handler
	ExportHandler     *exporthttp.Handler
	AttestHandler     *attesthttp.Handler
	AccessHandler     *accesshttp.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults. Every ledger
// route is scoped under /companies/{companyID}; tenancy comes from the path,
// never from the payload.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/companies/{companyID}", func(r chi.Router) {
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.PeriodsHandler != nil {
			params.PeriodsHandler.MountRoutes(r)
		}
		if params.ReplayHandler != nil {
			params.ReplayHandler.MountRoutes(r)
		}
		if params.StatementsHandler != nil {
			params.StatementsHandler.MountRoutes(r)
		}
		if params.TaxHandler != nil {
			params.TaxHandler.MountRoutes(r)
		}
		if params.ExportHandler != nil {
			params.ExportHandler.MountRoutes(r)
		}
		if params.AttestHandler != nil {
			params.AttestHandler.MountRoutes(r)
		}
	})

	if params.AccessHandler != nil {
		r.Route("/access", params.AccessHandler.MountRoutes)
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
