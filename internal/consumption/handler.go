package consumption

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
	"github.com/odyssey-erp/po-console/internal/money"
	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// FormLoader loads the reference datasets of the consumption form.
type FormLoader interface {
	LoadForm(ctx context.Context, t shared.Tenant, req reference.FormRequest) (reference.FormData, error)
}

// Grid is the consumption sub-grid of a PO.
var Grid = listing.Grid[backend.Consumption]{
	Entity: "consumption",
	Columns: []listing.Column[backend.Consumption]{
		listing.TextColumn("poNumber", "PO Number", func(c backend.Consumption) string { return c.PONumber }, true),
		listing.TextColumn("msName", "Milestone", func(c backend.Consumption) string { return c.MilestoneName }, true),
		listing.AmountColumn("amount", "Amount",
			func(c backend.Consumption) decimal.Decimal { return c.Amount },
			func(c backend.Consumption) string { return c.Currency }),
		listing.TextColumn("utilizationType", "Type", func(c backend.Consumption) string { return c.UtilizationType }, true),
		listing.TextColumn("resourceDetails", "Resource", func(c backend.Consumption) string { return c.Resource }, true),
		listing.TextColumn("projectName", "Project", func(c backend.Consumption) string { return c.ProjectName }, true),
		listing.TextColumn("workDesc", "Work", func(c backend.Consumption) string { return c.WorkDesc }, true),
		listing.TextColumn("workAssignDate", "Assigned", func(c backend.Consumption) string { return c.AssignDate }, false),
		listing.TextColumn("workCompletionDate", "Completed", func(c backend.Consumption) string { return c.CompletionDate }, false),
		listing.TextColumn("remarks", "Remarks", func(c backend.Consumption) string { return c.Remarks }, false),
	},
	DefaultSort: "workAssignDate",
}

// Handler manages consumption endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	forms   FormLoader
	now     func() time.Time
}

// NewHandler builds the consumption handler.
func NewHandler(logger *slog.Logger, service *Service, forms FormLoader) *Handler {
	return &Handler{logger: logger, service: service, forms: forms, now: time.Now}
}

// MountRoutes registers consumption routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/consumptions/form", h.form)
	r.Get("/consumptions", h.list)
	r.Get("/consumptions/export.csv", h.exportCSV)
	r.Get("/consumptions/balance", h.balanceByPO)
	r.Post("/consumptions", h.create)
	r.Get("/consumptions/{id}", h.get)
	r.Put("/consumptions/{id}", h.update)
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.forms.LoadForm(r.Context(), tenant, reference.FormRequest{PurchaseOrders: true, Projects: true})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reference":        data,
		"utilizationTypes": []string{TypeFixed, TypeTM, TypeMixed},
		"maxAttachments":   attachments.MaxFiles,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListByPO(r.Context(), tenant, r.URL.Query().Get("poNumber"))
	if err != nil {
		h.logger.Error("list consumptions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Grid.Apply(items, listing.ParseQuery(r)))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListByPO(r.Context(), tenant, r.URL.Query().Get("poNumber"))
	if err != nil {
		h.logger.Error("export consumptions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	Grid.ServeCSV(w, h.logger, items, listing.ParseQuery(r), h.now())
}

func (h *Handler) balanceByPO(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bal, err := h.service.BalanceByPO(r.Context(), tenant, r.URL.Query().Get("poNumber"))
	if err != nil {
		h.logger.Error("consumption balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"balance":   bal.Amount,
		"currency":  bal.Currency,
		"formatted": money.Format(bal.Amount, bal.Currency),
	})
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
		h.logger.Error("get consumption", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
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
		h.logger.Warn("create consumption", slog.Any("error", err))
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
		h.logger.Warn("update consumption", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
