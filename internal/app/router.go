package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fixflow-erp/fixflow/internal/audit"
	"github.com/fixflow-erp/fixflow/internal/catalog"
	"github.com/fixflow-erp/fixflow/internal/customer"
	"github.com/fixflow-erp/fixflow/internal/issue"
	"github.com/fixflow-erp/fixflow/internal/location"
	"github.com/fixflow-erp/fixflow/internal/observability"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/report"
	"github.com/fixflow-erp/fixflow/internal/serviceop"
	"github.com/fixflow-erp/fixflow/internal/shipment"
	"github.com/fixflow-erp/fixflow/internal/warehouse"
	"github.com/fixflow-erp/fixflow/jobs"
	pdfreport "github.com/fixflow-erp/fixflow/report"
	"github.com/fixflow-erp/fixflow/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CatalogHandler   *catalog.Handler
	CustomerHandler  *customer.Handler
	LocationHandler  *location.Handler
	ProductHandler   *product.Handler
	WarehouseHandler *warehouse.Handler
	IssueHandler     *issue.Handler
	ServiceOpHandler *serviceop.Handler
	ShipmentHandler  *shipment.Handler
	ReportHandler    *report.Handler
	AuditHandler     *audit.Handler
	PDFHandler       *pdfreport.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with FixFlow defaults.
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

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(api)
		}
		if params.CustomerHandler != nil {
			params.CustomerHandler.MountRoutes(api)
		}
		if params.LocationHandler != nil {
			params.LocationHandler.MountRoutes(api)
		}
		if params.ProductHandler != nil {
			params.ProductHandler.MountRoutes(api)
		}
		if params.WarehouseHandler != nil {
			params.WarehouseHandler.MountRoutes(api)
		}
		if params.IssueHandler != nil {
			params.IssueHandler.MountRoutes(api)
		}
		if params.ServiceOpHandler != nil {
			params.ServiceOpHandler.MountRoutes(api)
		}
		if params.ShipmentHandler != nil {
			params.ShipmentHandler.MountRoutes(api)
		}
		if params.ReportHandler != nil {
			params.ReportHandler.MountRoutes(api)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(api)
		}
		if params.PDFHandler != nil {
			api.Route("/reports/pdf", func(pr chi.Router) {
				params.PDFHandler.MountRoutes(pr)
			})
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				params.JobHandler.MountRoutes(jr)
			})
		}
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		r.Handle("/*", http.FileServer(http.FS(staticFS)))
	}

	return r
}
