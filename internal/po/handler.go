package po

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/listing"
	"github.com/odyssey-erp/po-console/internal/money"
	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Grid is the purchase order listing.
var Grid = listing.Grid[backend.PurchaseOrder]{
	Entity: "purchase_orders",
	Columns: []listing.Column[backend.PurchaseOrder]{
		listing.TextColumn("poNumber", "PO Number", func(p backend.PurchaseOrder) string { return p.PONumber }, true),
		listing.TextColumn("poType", "Type", func(p backend.PurchaseOrder) string { return p.POType }, true),
		listing.TextColumn("customerName", "Customer", func(p backend.PurchaseOrder) string { return p.CustomerName }, true),
		listing.TextColumn("supplierName", "Supplier", func(p backend.PurchaseOrder) string { return p.SupplierName }, true),
		listing.TextColumn("projectName", "Project", func(p backend.PurchaseOrder) string { return p.ProjectName }, true),
		listing.AmountColumn("poAmount", "Amount",
			func(p backend.PurchaseOrder) decimal.Decimal { return p.Amount },
			func(p backend.PurchaseOrder) string { return p.Currency }),
		listing.TextColumn("poStartDate", "Start", func(p backend.PurchaseOrder) string { return p.StartDate }, false),
		listing.TextColumn("poEndDate", "End", func(p backend.PurchaseOrder) string { return p.EndDate }, false),
	},
	DefaultSort: "poNumber",
}

// Handler exposes PO lookups.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler builds the PO handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers PO routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pos", h.list)
	r.Get("/pos/export.csv", h.exportCSV)
	r.Get("/pos/{poId}", h.detail)
	r.Get("/pos/{poId}/balance", h.balance)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pos, err := h.service.List(r.Context(), tenant)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Grid.Apply(pos, listing.ParseQuery(r)))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pos, err := h.service.List(r.Context(), tenant)
	if err != nil {
		h.logger.Error("export purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	Grid.ServeCSV(w, h.logger, pos, listing.ParseQuery(r), h.now())
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	poID, err := httpx.PathInt64(r, "poId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Detail(r.Context(), tenant, poID, reference.MilestoneScope(r.URL.Query().Get("scope")))
	if err != nil {
		h.logger.Error("purchase order detail", slog.Any("error", err), slog.Int64("po_id", poID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	poID, err := httpx.PathInt64(r, "poId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	msID, err := httpx.QueryInt64(r, "milestoneId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	purposeRaw := r.URL.Query().Get("purpose")
	if purposeRaw == "" {
		purposeRaw = string(balance.PurposeConsumption)
	}
	purpose, err := balance.ParsePurpose(purposeRaw)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var amount *decimal.Decimal
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := money.Parse(raw)
		if err != nil {
			httpx.RespondError(w, shared.NewValidationError("amount", fmt.Sprintf("%q is not a valid amount", raw)))
			return
		}
		amount = &parsed
	}
	view, err := h.service.Balance(r.Context(), tenant, purpose, balance.Target{POID: poID, MilestoneID: msID}, amount)
	if err != nil {
		h.logger.Warn("purchase order balance", slog.Any("error", err), slog.Int64("po_id", poID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}
