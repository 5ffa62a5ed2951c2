package serviceop

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

// Handler manages repair pipeline endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers service pipeline routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/service/issues/{issueID}", func(r chi.Router) {
		r.Get("/operations", h.list)
		r.Post("/receive", h.stepHandler(h.service.Receive))
		r.Post("/pre-test", h.stepHandler(h.service.PreTest))
		r.Post("/repair/start", h.stepHandler(h.service.StartRepair))
		r.Post("/repair/complete", h.stepHandler(h.service.CompleteRepair))
		r.Post("/scrap", h.stepHandler(h.service.Scrap))
	})
}

type stepFunc func(ctx context.Context, issueID int64, req OpRequest, actor shared.Actor) (Operation, error)

func (h *Handler) stepHandler(step stepFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issueID, err := strconv.ParseInt(chi.URLParam(r, "issueID"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid issue id")
			return
		}
		var req OpRequest
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &req); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
				return
			}
			if err := h.validate.Struct(req); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
				return
			}
		}
		op, err := step(r.Context(), issueID, req, shared.ActorFromContext(r.Context()))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, op)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	issueID, err := strconv.ParseInt(chi.URLParam(r, "issueID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid issue id")
		return
	}
	ops, err := h.service.ListForIssue(r.Context(), issueID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"operations": ops})
}
