package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	ireport "github.com/fixflow-erp/fixflow/internal/report"
)

// OverviewSource provides the dashboard aggregate to render.
type OverviewSource interface {
	Overview(ctx context.Context) (ireport.Overview, error)
}

// Handler manages PDF report endpoints.
type Handler struct {
	client *Client
	source OverviewSource
	logger *slog.Logger
}

// NewHandler creates a PDF report handler.
func NewHandler(client *Client, source OverviewSource, logger *slog.Logger) *Handler {
	return &Handler{client: client, source: source, logger: logger}
}

// MountRoutes registers PDF report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/overview.pdf", h.overviewPDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) overviewPDF(w http.ResponseWriter, r *http.Request) {
	overview, err := h.source.Overview(r.Context())
	if err != nil {
		h.logger.Error("build overview", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	html, err := renderOverviewHTML(overview)
	if err != nil {
		h.logger.Error("render overview html", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render overview pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="overview.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

var overviewTemplate = template.Must(template.New("overview").Funcs(template.FuncMap{
	"percent": func(rate float64) string { return fmt.Sprintf("%.0f%%", rate*100) },
}).Parse(`<!DOCTYPE html>
<html>
<head><title>FixFlow Overview</title></head>
<body>
<h1>FixFlow Overview</h1>
<p>Generated at {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
<p>Total units: {{.TotalUnitsLabel}} &middot; In warranty: {{.InWarranty}} &middot; Expired: {{.WarrantyExpired}} &middot; Open issues: {{.OpenIssues}}</p>
<h2>Units by status</h2>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Status</th><th>Count</th></tr>
{{range .UnitsByStatus}}<tr><td>{{.Status}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
<h2>Location utilization</h2>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Location</th><th>Current</th><th>Capacity</th><th>Utilization</th></tr>
{{range .Locations}}<tr><td>{{.Name}}</td><td>{{.Current}}</td><td>{{if .Capacity}}{{.Capacity}}{{else}}-{{end}}</td><td>{{percent .UtilizationRate}}</td></tr>
{{end}}</table>
</body>
</html>`))

func renderOverviewHTML(overview ireport.Overview) (string, error) {
	var buf bytes.Buffer
	if err := overviewTemplate.Execute(&buf, overview); err != nil {
		return "", err
	}
	return buf.String(), nil
}
