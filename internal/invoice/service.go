package invoice

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/money"
	"github.com/odyssey-erp/po-console/internal/shared"
)

const (
	idempotencyModule = "invoice"
	attachmentField   = "attachments"
)

// Backend is the invoice surface of the upstream API.
type Backend interface {
	Invoices(ctx context.Context, token string) ([]backend.Invoice, error)
	GenerateInvoice(ctx context.Context, token string, in backend.InvoiceRequest) (backend.Invoice, error)
	GenerateInvoiceWithAttachments(ctx context.Context, token string, in backend.InvoiceRequest, files []backend.FilePart) (backend.Invoice, error)
	PreviewInvoice(ctx context.Context, token string, in backend.InvoiceRequest) (*backend.Download, error)
	DownloadInvoice(ctx context.Context, token string, id int64) (*backend.Download, error)
	DownloadInvoiceAttachment(ctx context.Context, token string, invoiceID int64, n int) (*backend.Download, error)
	TimesheetTasks(ctx context.Context, token string, userID int64, start, end string) ([]backend.TimesheetTask, error)
}

// Roster provides the cached reference data of the invoice form.
type Roster interface {
	Users(ctx context.Context, t shared.Tenant) ([]backend.User, error)
	InvoiceProjects(ctx context.Context, t shared.Tenant) ([]backend.Project, error)
}

// Blobs keeps staged file content between requests.
type Blobs interface {
	Put(ctx context.Context, owner string, f attachments.File) error
	Load(ctx context.Context, owner string, files []attachments.File) ([]attachments.File, error)
	Delete(ctx context.Context, owner string, ids ...string) error
}

// Service orchestrates invoice drafts and submissions.
type Service struct {
	backend     Backend
	roster      Roster
	blobs       Blobs
	idempotency shared.IdempotencyPort
	audit       shared.AuditPort
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewService constructs the invoice service.
func NewService(b Backend, roster Roster, blobs Blobs, idem shared.IdempotencyPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:     b,
		roster:      roster,
		blobs:       blobs,
		idempotency: idem,
		audit:       audit,
		validate:    shared.NewValidator(),
		logger:      logger,
	}
}

func checkRowLimits(s State) error {
	if len(s.Items) > MaxItems {
		return shared.NewValidationError("items", "at most 5 line items are allowed")
	}
	if len(s.Employees) > MaxEmployees {
		return shared.NewValidationError("invoiceEmployees", "at most 5 employee rows are allowed")
	}
	return nil
}

// Recompute refreshes every derived field of the form: row amounts,
// employee names, timesheet hours and totals.
func (s *Service) Recompute(ctx context.Context, t shared.Tenant, state State) (View, error) {
	state.normalize()
	if err := checkRowLimits(state); err != nil {
		return View{}, err
	}
	users, err := s.roster.Users(ctx, t)
	if err != nil {
		s.logger.Warn("load invoice roster", slog.Any("error", err))
		users = nil
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	for i := range state.Employees {
		if name, ok := names[state.Employees[i].UserID]; ok && state.Employees[i].Name == "" {
			state.Employees[i].Name = name
		}
	}
	RecomputeRows(state.Items, state.Employees)

	fetched := false
	if shouldFetchTimesheet(state, len(users)) {
		fetched = s.refreshTasks(ctx, t, &state)
	} else {
		state.Tasks = []backend.TimesheetTask{}
	}
	ApplyTimesheet(&state, fetched)

	totals := DeriveInvoiceTotals(state.Form, state.Items, state.Employees)
	state.Form.TotalAmount = totals.Total
	return View{State: state, Totals: totals}, nil
}

// refreshTasks loads the selected employee's tasks and reports whether the
// lookup succeeded. Failures keep the previously fetched tasks.
func (s *Service) refreshTasks(ctx context.Context, t shared.Tenant, state *State) bool {
	start, end, err := FetchWindow(state.Form.FromDate, state.Form.ToDate)
	if err != nil {
		return false
	}
	userID := state.Employees[selectedEmployees(state.Employees)[0]].UserID
	tasks, err := s.backend.TimesheetTasks(ctx, t.Token, userID, start, end)
	if err != nil {
		s.logger.Warn("load timesheet tasks", slog.Any("error", err), slog.Int64("user_id", userID))
		return false
	}
	if tasks == nil {
		tasks = []backend.TimesheetTask{}
	}
	state.Tasks = tasks
	return true
}

// buildRequest validates the form and produces the backend payload.
func (s *Service) buildRequest(t shared.Tenant, state State) (backend.InvoiceRequest, error) {
	state.normalize()
	if err := s.validate.Struct(state.Form); err != nil {
		return backend.InvoiceRequest{}, shared.FromValidator(err)
	}
	if _, _, err := parseRange(state.Form.FromDate, state.Form.ToDate); err != nil {
		return backend.InvoiceRequest{}, err
	}
	if err := checkRowLimits(state); err != nil {
		return backend.InvoiceRequest{}, err
	}
	RecomputeRows(state.Items, state.Employees)
	totals := DeriveInvoiceTotals(state.Form, state.Items, state.Employees)
	if !money.Positive(totals.Total) || !hasBillableRow(state.Items, state.Employees) {
		return backend.InvoiceRequest{}, shared.NewValidationError("totalAmount", "add at least one item or employee row with an amount above zero")
	}

	req := backend.InvoiceRequest{
		TenantID:        t.TenantID,
		InvoiceType:     state.Form.InvoiceType,
		PONumber:        state.Form.PONumber,
		ProjectName:     state.Form.ProjectName,
		CustomerName:    state.Form.CustomerName,
		CustomerAddress: state.Form.CustomerAddress,
		SupplierName:    state.Form.SupplierName,
		SupplierAddress: state.Form.SupplierAddress,
		FromDate:        state.Form.FromDate,
		ToDate:          state.Form.ToDate,
		Currency:        state.Form.Currency,
		Rate:            totals.Rate,
		Hours:           totals.Hours,
		TotalAmount:     totals.Total,
		Remarks:         state.Form.Remarks,
		Items:           activeItems(state.Items),
		Employees:       activeEmployees(state.Employees),
	}
	if selected := selectedEmployees(state.Employees); state.AttachTimesheet && len(selected) == 1 {
		summary, err := BuildTimesheet(state.Employees[selected[0]].Name, state.Form.FromDate, state.Form.ToDate, state.Tasks)
		if err != nil {
			return backend.InvoiceRequest{}, err
		}
		req.Timesheet = summary
	}
	return req, nil
}

// Preview renders the invoice document without storing it.
func (s *Service) Preview(ctx context.Context, t shared.Tenant, state State) (*backend.Download, error) {
	req, err := s.buildRequest(t, state)
	if err != nil {
		return nil, err
	}
	return s.backend.PreviewInvoice(ctx, t.Token, req)
}

// Submit generates the invoice. Staged files owned by owner travel with it
// in a single multipart call and are released afterwards.
func (s *Service) Submit(ctx context.Context, t shared.Tenant, owner string, state State, idemKey string) (Result, error) {
	req, err := s.buildRequest(t, state)
	if err != nil {
		return Result{}, err
	}
	var files []attachments.File
	if len(state.Attachments) > 0 {
		files, err = s.blobs.Load(ctx, owner, state.Attachments)
		if err != nil {
			return Result{}, err
		}
	}

	var result Result
	err = shared.Guard(ctx, s.idempotency, idemKey, idempotencyModule, func(ctx context.Context) error {
		var (
			inv backend.Invoice
			err error
		)
		if len(files) > 0 {
			parts := make([]backend.FilePart, len(files))
			for i, f := range files {
				parts[i] = f.Part(attachmentField)
			}
			inv, err = s.backend.GenerateInvoiceWithAttachments(ctx, t.Token, req, parts)
		} else {
			inv, err = s.backend.GenerateInvoice(ctx, t.Token, req)
		}
		if err != nil {
			return err
		}
		result = Result{Invoice: inv, Attached: len(files)}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.releaseFiles(ctx, owner, state.Attachments)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "invoice.create", "invoice",
		strconv.FormatInt(result.Invoice.ID, 10), map[string]any{
			"type":        req.InvoiceType,
			"total":       req.TotalAmount.StringFixed(2),
			"attachments": len(files),
		}))
	return result, nil
}

// StageFiles adds files to the draft and keeps their content for submit.
func (s *Service) StageFiles(ctx context.Context, owner string, state State, incoming []attachments.File) (State, attachments.StageResult, error) {
	state.normalize()
	res := attachments.Stage(state.Attachments, incoming, attachments.StageOptions{})
	for _, f := range res.Staged[len(state.Attachments):] {
		if err := s.blobs.Put(ctx, owner, f); err != nil {
			return state, attachments.StageResult{}, err
		}
	}
	state.Attachments = res.Staged
	return state, res, nil
}

// RemoveFile drops a staged file. It was never uploaded, so nothing is sent
// upstream.
func (s *Service) RemoveFile(ctx context.Context, owner string, state State, id string) (State, error) {
	remaining, ok := attachments.Remove(state.Attachments, id)
	if !ok {
		return state, shared.ErrNotFound
	}
	s.releaseFiles(ctx, owner, []attachments.File{{ID: id}})
	state.Attachments = remaining
	state.normalize()
	return state, nil
}

// Discard releases the staged files of an abandoned draft.
func (s *Service) Discard(ctx context.Context, owner string, state State) {
	s.releaseFiles(ctx, owner, state.Attachments)
}

func (s *Service) releaseFiles(ctx context.Context, owner string, files []attachments.File) {
	if len(files) == 0 || s.blobs == nil {
		return
	}
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	if err := s.blobs.Delete(ctx, owner, ids...); err != nil {
		s.logger.Warn("release staged files", slog.Any("error", err))
	}
}

// List returns the generated invoices.
func (s *Service) List(ctx context.Context, t shared.Tenant) ([]backend.Invoice, error) {
	items, err := s.backend.Invoices(ctx, t.Token)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []backend.Invoice{}
	}
	return items, nil
}

// Projects lists the projects invoices can be raised for.
func (s *Service) Projects(ctx context.Context, t shared.Tenant) ([]backend.Project, error) {
	return s.roster.InvoiceProjects(ctx, t)
}

// Download streams a generated invoice document.
func (s *Service) Download(ctx context.Context, t shared.Tenant, id int64) (*backend.Download, error) {
	return s.backend.DownloadInvoice(ctx, t.Token, id)
}

// DownloadAttachment streams the n-th attachment of an invoice.
func (s *Service) DownloadAttachment(ctx context.Context, t shared.Tenant, invoiceID int64, n int) (*backend.Download, error) {
	return s.backend.DownloadInvoiceAttachment(ctx, t.Token, invoiceID, n)
}
