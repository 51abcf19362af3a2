package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/auth"
	"github.com/odyssey-erp/po-console/internal/consumption"
	"github.com/odyssey-erp/po-console/internal/invoice"
	"github.com/odyssey-erp/po-console/internal/observability"
	"github.com/odyssey-erp/po-console/internal/organizations"
	"github.com/odyssey-erp/po-console/internal/po"
	"github.com/odyssey-erp/po-console/internal/projects"
	"github.com/odyssey-erp/po-console/internal/shared"
	"github.com/odyssey-erp/po-console/internal/srn"
	"github.com/odyssey-erp/po-console/jobs"
)

// APIPrefix is where the console JSON API is mounted.
const APIPrefix = "/api/console"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
	JobHandler     *jobs.Handler

	AuthHandler          *auth.Handler
	POHandler            *po.Handler
	ConsumptionHandler   *consumption.Handler
	SRNHandler           *srn.Handler
	InvoiceHandler       *invoice.Handler
	ProjectsHandler      *projects.Handler
	OrganizationsHandler *organizations.Handler
	AttachmentsHandler   *attachments.Handler
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route(APIPrefix, func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireTenant)
			if params.POHandler != nil {
				params.POHandler.MountRoutes(r)
			}
			if params.ConsumptionHandler != nil {
				params.ConsumptionHandler.MountRoutes(r)
			}
			if params.SRNHandler != nil {
				params.SRNHandler.MountRoutes(r)
			}
			if params.InvoiceHandler != nil {
				params.InvoiceHandler.MountRoutes(r)
			}
			if params.ProjectsHandler != nil {
				params.ProjectsHandler.MountRoutes(r)
			}
			if params.OrganizationsHandler != nil {
				params.OrganizationsHandler.MountRoutes(r)
			}
			if params.AttachmentsHandler != nil {
				params.AttachmentsHandler.MountRoutes(r)
			}
		})
	})

	return r
}

