package attachments

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Handler serves persisted attachments of any record.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the attachment handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers attachment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/attachments", h.list)
	r.Get("/attachments/{id}/download", h.download)
	r.Delete("/attachments/{id}", h.delete)
}

// ParseLevel validates a level query value.
func ParseLevel(raw string) (Level, error) {
	switch level := Level(strings.ToUpper(strings.TrimSpace(raw))); level {
	case LevelSRN, LevelConsumption, LevelInvoice:
		return level, nil
	}
	return "", fmt.Errorf("%w: unknown attachment level %q", httpx.ErrBadRequest, raw)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	level, err := ParseLevel(r.URL.Query().Get("level"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	refID, err := httpx.QueryInt64(r, "referenceId")
	if err != nil || refID == nil {
		httpx.RespondError(w, fmt.Errorf("%w: referenceId is required", httpx.ErrBadRequest))
		return
	}
	items, err := h.service.List(r.Context(), tenant, level, *refID)
	if err != nil {
		h.logger.Error("list attachments", slog.Any("error", err), slog.Int64("reference_id", *refID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dl, err := h.service.Download(r.Context(), tenant, id)
	if err != nil {
		h.logger.Error("download attachment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	defer func() {
		_ = dl.Body.Close()
	}()
	filename := dl.Filename
	if filename == "" {
		filename = fmt.Sprintf("attachment-%d", id)
	}
	if err := httpx.Attachment(w, dl.ContentType, filename, dl.Body); err != nil {
		h.logger.Warn("stream attachment", slog.Any("error", err), slog.Int64("id", id))
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), tenant, id); err != nil {
		h.logger.Error("delete attachment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
