package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/listing"
	"github.com/odyssey-erp/po-console/internal/organizations"
	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// FormLoader loads the reference datasets of the invoice form.
type FormLoader interface {
	LoadForm(ctx context.Context, t shared.Tenant, req reference.FormRequest) (reference.FormData, error)
}

// Grid is the invoice listing.
var Grid = listing.Grid[backend.Invoice]{
	Entity: "invoices",
	Columns: []listing.Column[backend.Invoice]{
		listing.TextColumn("invoiceNumber", "Invoice", func(i backend.Invoice) string { return i.InvoiceNumber }, true),
		listing.TextColumn("invoiceType", "Type", func(i backend.Invoice) string { return i.InvoiceType }, true),
		listing.TextColumn("customerName", "Customer", func(i backend.Invoice) string { return i.CustomerName }, true),
		listing.TextColumn("supplierName", "Supplier", func(i backend.Invoice) string { return i.SupplierName }, true),
		listing.TextColumn("projectName", "Project", func(i backend.Invoice) string { return i.ProjectName }, true),
		listing.TextColumn("poNumber", "PO Number", func(i backend.Invoice) string { return i.PONumber }, true),
		listing.TextColumn("fromDate", "From", func(i backend.Invoice) string { return i.FromDate }, false),
		listing.TextColumn("toDate", "To", func(i backend.Invoice) string { return i.ToDate }, false),
		listing.AmountColumn("totalAmount", "Total",
			func(i backend.Invoice) decimal.Decimal { return i.TotalAmount },
			func(i backend.Invoice) string { return i.Currency }),
	},
	DefaultSort: "fromDate",
}

// Handler manages invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	forms   FormLoader
	now     func() time.Time
}

// NewHandler builds the invoice handler.
func NewHandler(logger *slog.Logger, service *Service, forms FormLoader) *Handler {
	return &Handler{logger: logger, service: service, forms: forms, now: time.Now}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices/form", h.form)
	r.Get("/invoices/projects", h.projects)
	r.Get("/invoices/draft", h.openDraft)
	r.Put("/invoices/draft", h.updateDraft)
	r.Delete("/invoices/draft", h.resetDraft)
	r.Post("/invoices/draft/attachments", h.stageFiles)
	r.Delete("/invoices/draft/attachments/{fileId}", h.removeFile)
	r.Post("/invoices/preview", h.preview)
	r.Post("/invoices", h.submit)
	r.Get("/invoices", h.list)
	r.Get("/invoices/export.csv", h.exportCSV)
	r.Get("/invoices/{id}/download", h.download)
	r.Get("/invoices/{id}/attachments/{n}", h.downloadAttachment)
}

// session returns the request session and its owner key for staged files.
func session(r *http.Request) (*shared.Session, string, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil, "", shared.ErrUnauthenticated
	}
	return sess, sess.ID, nil
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.forms.LoadForm(r.Context(), tenant, reference.FormRequest{
		Users:             true,
		InvoiceProjects:   true,
		OrganizationTypes: []string{organizations.TypeCustomer, organizations.TypeSupplier},
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reference":      data,
		"invoiceTypes":   []string{TypeDomestic, TypeInternational},
		"maxItems":       MaxItems,
		"maxEmployees":   MaxEmployees,
		"maxAttachments": attachments.MaxFiles,
	})
}

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Projects(r.Context(), tenant)
	if err != nil {
		h.logger.Error("list invoice projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) openDraft(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, _, err := session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	state, restored := LoadDraft(sess)
	view, err := h.service.Recompute(r.Context(), tenant, state)
	if err != nil {
		view = View{State: NewState()}
		restored = false
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"restored": restored, "state": view.State, "totals": view.Totals})
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, _, err := session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var state State
	if err := httpx.DecodeJSON(r, &state); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Staged files are managed through their own endpoints.
	current, _ := LoadDraft(sess)
	state.Attachments = current.Attachments
	view, err := h.service.Recompute(r.Context(), tenant, state)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	SaveDraft(sess, view.State, h.logger)
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) resetDraft(w http.ResponseWriter, r *http.Request) {
	sess, owner, err := session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	state, _ := LoadDraft(sess)
	h.service.Discard(r.Context(), owner, state)
	ClearDraft(sess)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stageFiles(w http.ResponseWriter, r *http.Request) {
	sess, owner, err := session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, attachments.MaxSubmissionBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	incoming, err := attachments.ReadMultipart(r.MultipartForm, attachments.FormField)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	state, _ := LoadDraft(sess)
	state, res, err := h.service.StageFiles(r.Context(), owner, state, incoming)
	if err != nil {
		h.logger.Error("stage invoice files", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	SaveDraft(sess, state, h.logger)
	httpx.JSON(w, http.StatusOK, map[string]any{"attachments": state.Attachments, "rejected": res.Rejected})
}

func (h *Handler) removeFile(w http.ResponseWriter, r *http.Request) {
	sess, owner, err := session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	state, _ := LoadDraft(sess)
	state, err = h.service.RemoveFile(r.Context(), owner, state, chi.URLParam(r, "fileId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	SaveDraft(sess, state, h.logger)
	httpx.JSON(w, http.StatusOK, map[string]any{"attachments": state.Attachments})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var state State
	if err := httpx.DecodeJSON(r, &state); err != nil {
		httpx.RespondError(w, err)
		return
	}
	dl, err := h.service.Preview(r.Context(), tenant, state)
	if err != nil {
		h.logger.Warn("preview invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	defer func() {
		_ = dl.Body.Close()
	}()
	if err := httpx.Inline(w, dl.ContentType, "invoice-preview.pdf", dl.Body); err != nil {
		h.logger.Warn("stream invoice preview", slog.Any("error", err))
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, owner, err := session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var state State
	if err := httpx.DecodeJSON(r, &state); err != nil {
		httpx.RespondError(w, err)
		return
	}
	current, _ := LoadDraft(sess)
	state.Attachments = current.Attachments
	result, err := h.service.Submit(r.Context(), tenant, owner, state, r.Header.Get(httpx.IdempotencyKeyHeader))
	if err != nil {
		h.logger.Warn("submit invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	ClearDraft(sess)
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) ([]backend.Invoice, bool) {
	tenant, err := shared.RequireTenantFrom(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	items, err := h.service.List(r.Context(), tenant)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
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
		h.logger.Error("download invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.stream(w, dl, fmt.Sprintf("invoice-%d.pdf", id))
}

func (h *Handler) downloadAttachment(w http.ResponseWriter, r *http.Request) {
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
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 {
		httpx.RespondError(w, fmt.Errorf("%w: n must be a non-negative integer", httpx.ErrBadRequest))
		return
	}
	dl, err := h.service.DownloadAttachment(r.Context(), tenant, id, n)
	if err != nil {
		h.logger.Error("download invoice attachment", slog.Any("error", err), slog.Int64("id", id), slog.Int("n", n))
		httpx.RespondError(w, err)
		return
	}
	h.stream(w, dl, fmt.Sprintf("invoice-%d-attachment-%d", id, n))
}

func (h *Handler) stream(w http.ResponseWriter, dl *backend.Download, fallback string) {
	defer func() {
		_ = dl.Body.Close()
	}()
	filename := dl.Filename
	if filename == "" {
		filename = fallback
	}
	if err := httpx.Attachment(w, dl.ContentType, filename, dl.Body); err != nil {
		h.logger.Warn("stream invoice download", slog.Any("error", err))
	}
}
