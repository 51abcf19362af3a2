package organizations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Handler exposes the selector endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the selector handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers selector routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/organizations", h.search)
	r.Post("/organizations/resolve", h.resolve)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	query := r.URL.Query()
	httpx.JSON(w, http.StatusOK, h.service.Search(r.Context(), tenant, query.Get("type"), query.Get("q")))
}

type resolveRequest struct {
	Type   string   `json:"type"`
	Multi  bool     `json:"multi"`
	Value  string   `json:"value"`
	Values []string `json:"values"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Multi {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"selections": h.service.ResolveMulti(r.Context(), tenant, req.Type, req.Values),
		})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"selection": h.service.ResolveSingle(r.Context(), tenant, req.Type, req.Value),
	})
}
