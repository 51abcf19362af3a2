package srn

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/listing"
	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// FormLoader loads the reference datasets of the SRN form.
type FormLoader interface {
	LoadForm(ctx context.Context, t shared.Tenant, req reference.FormRequest) (reference.FormData, error)
}

// Grid is the SRN management listing.
var Grid = listing.Grid[backend.SRN]{
	Entity: "srn",
	Columns: []listing.Column[backend.SRN]{
		listing.TextColumn("srnName", "SRN", func(s backend.SRN) string { return s.Name }, true),
		listing.TextColumn("poNumber", "PO Number", func(s backend.SRN) string { return s.PONumber }, true),
		listing.TextColumn("msName", "Milestone", func(s backend.SRN) string { return s.MilestoneName }, true),
		listing.TextColumn("srnDsc", "Description", func(s backend.SRN) string { return s.Description }, true),
		listing.AmountColumn("srnAmount", "Amount",
			func(s backend.SRN) decimal.Decimal { return s.Amount },
			func(s backend.SRN) string { return s.Currency }),
		listing.TextColumn("srnType", "Type", func(s backend.SRN) string { return s.Type }, true),
		listing.TextColumn("srnDate", "Date", func(s backend.SRN) string { return s.Date }, false),
		listing.TextColumn("srnRemarks", "Remarks", func(s backend.SRN) string { return s.Remarks }, false),
	},
	DefaultSort: "srnDate",
}

// Handler manages SRN endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	forms   FormLoader
	now     func() time.Time
}

// NewHandler builds the SRN handler.
func NewHandler(logger *slog.Logger, service *Service, forms FormLoader) *Handler {
	return &Handler{logger: logger, service: service, forms: forms, now: time.Now}
}

// MountRoutes registers SRN routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/srns/form", h.form)
	r.Post("/srns/type", h.chooseType)
	r.Get("/srns", h.list)
	r.Get("/srns/export.csv", h.exportCSV)
	r.Post("/srns", h.create)
	r.Get("/srns/{id}", h.get)
	r.Put("/srns/{id}", h.update)
	r.Delete("/srns/{id}", h.delete)
	r.Get("/srns/{id}/linked-amounts", h.linkedAmounts)
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.forms.LoadForm(r.Context(), tenant, reference.FormRequest{PurchaseOrders: true})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reference":      data,
		"srnTypes":       []string{TypePartial, TypeFull},
		"maxAttachments": attachments.MaxFiles,
	})
}

func (h *Handler) chooseType(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req TypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sel, err := h.service.ChooseType(r.Context(), tenant, req)
	if err != nil {
		h.logger.Warn("choose srn type", slog.Any("error", err), slog.Int64("po_id", req.POID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sel)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) ([]backend.SRN, bool) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	poID, err := httpx.QueryInt64(r, "poId")
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	items, err := h.service.List(r.Context(), tenant, poID)
	if err != nil {
		h.logger.Error("list srns", slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	return items, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, Grid.Apply(items, listing.ParseQuery(r)))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	items, ok := h.load(w, r)
	if !ok {
		return
	}
	Grid.ServeCSV(w, h.logger, items, listing.ParseQuery(r), h.now())
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	files, err := attachments.DecodeSubmission(w, r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Create(r.Context(), tenant, in, files, r.Header.Get(httpx.IdempotencyKeyHeader))
	if err != nil {
		h.logger.Warn("create srn", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
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
	var in Input
	files, err := attachments.DecodeSubmission(w, r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Update(r.Context(), tenant, id, in, files, r.Header.Get(httpx.IdempotencyKeyHeader))
	if err != nil {
		h.logger.Warn("update srn", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
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
	detail, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		h.logger.Error("get srn", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
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
		h.logger.Error("delete srn", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) linkedAmounts(w http.ResponseWriter, r *http.Request) {
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
	amounts, err := h.service.LinkedAmounts(r.Context(), tenant, id)
	if err != nil {
		h.logger.Error("srn linked amounts", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, amounts)
}
