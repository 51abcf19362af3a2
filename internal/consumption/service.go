package consumption

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/shared"
)

const idempotencyModule = "consumption"

// Backend is the consumption surface of the upstream API.
type Backend interface {
	CreateConsumption(ctx context.Context, token string, in backend.Consumption) (backend.Consumption, error)
	UpdateConsumption(ctx context.Context, token string, id int64, in backend.Consumption) (backend.Consumption, error)
	Consumption(ctx context.Context, token string, id int64) (backend.Consumption, error)
	ConsumptionsByPO(ctx context.Context, token, poNumber string) ([]backend.Consumption, error)
	ConsumptionBalance(ctx context.Context, token, poNumber string) (backend.Balance, error)
}

// POReader resolves the PO a consumption is charged to.
type POReader interface {
	PurchaseOrder(ctx context.Context, t shared.Tenant, poID int64) (backend.PurchaseOrder, error)
}

// Service orchestrates consumption submissions.
type Service struct {
	backend     Backend
	pos         POReader
	checker     *balance.Checker
	attachments *attachments.Service
	idempotency shared.IdempotencyPort
	audit       shared.AuditPort
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewService constructs the consumption service.
func NewService(b Backend, pos POReader, checker *balance.Checker, att *attachments.Service, idem shared.IdempotencyPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:     b,
		pos:         pos,
		checker:     checker,
		attachments: att,
		idempotency: idem,
		audit:       audit,
		validate:    shared.NewValidator(),
		logger:      logger,
	}
}

func (s *Service) validateInput(in Input) error {
	if err := s.validate.Struct(in); err != nil {
		return shared.FromValidator(err)
	}
	return in.checkRules()
}

// Create validates the form, checks the remaining balance, stores the
// consumption and then uploads its files one by one. An amount above the
// balance never reaches the backend.
func (s *Service) Create(ctx context.Context, t shared.Tenant, in Input, files []attachments.File, idemKey string) (Result, error) {
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	staged := attachments.Stage(nil, files, attachments.StageOptions{})
	po, err := s.pos.PurchaseOrder(ctx, t, in.POID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.checker.Check(ctx, t, balance.Request{
		Purpose:  balance.PurposeConsumption,
		Target:   in.Target(),
		Amount:   in.Amount,
		Currency: po.Currency,
		Field:    "amount",
	}); err != nil {
		return Result{}, err
	}

	var result Result
	err = shared.Guard(ctx, s.idempotency, idemKey, idempotencyModule, func(ctx context.Context) error {
		created, err := s.backend.CreateConsumption(ctx, t.Token, in.record(po))
		if err != nil {
			return err
		}
		result.Consumption = created
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	result.Rejected = staged.Rejected
	result.Attachments = s.attachments.Upload(ctx, t, attachments.LevelConsumption, result.Consumption.ID, staged.Staged)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "consumption.create", "consumption",
		strconv.FormatInt(result.Consumption.ID, 10), map[string]any{
			"po_number": po.PONumber,
			"amount":    in.Amount.StringFixed(2),
			"files":     len(result.Attachments.Uploaded),
		}))
	return result, nil
}

// Update edits a consumption. When the PO and milestone are unchanged the
// record's previous amount counts as available again.
func (s *Service) Update(ctx context.Context, t shared.Tenant, id int64, in Input, files []attachments.File, idemKey string) (Result, error) {
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	existing, err := s.backend.Consumption(ctx, t.Token, id)
	if err != nil {
		return Result{}, err
	}
	staged, err := s.attachments.StageForRecord(ctx, t, attachments.LevelConsumption, id, files, attachments.StageOptions{})
	if err != nil {
		return Result{}, err
	}
	po, err := s.pos.PurchaseOrder(ctx, t, in.POID)
	if err != nil {
		return Result{}, err
	}
	req := balance.Request{
		Purpose:  balance.PurposeConsumption,
		Target:   in.Target(),
		Amount:   in.Amount,
		Currency: po.Currency,
		Field:    "amount",
	}
	previous := balance.Target{POID: existing.POID, MilestoneID: existing.MilestoneID}
	if previous.Same(in.Target()) {
		req.Credit = existing.Amount
	}
	if _, err := s.checker.Check(ctx, t, req); err != nil {
		return Result{}, err
	}

	var result Result
	err = shared.Guard(ctx, s.idempotency, idemKey, idempotencyModule, func(ctx context.Context) error {
		record := in.record(po)
		record.ID = id
		updated, err := s.backend.UpdateConsumption(ctx, t.Token, id, record)
		if err != nil {
			return err
		}
		if updated.ID == 0 {
			updated.ID = id
		}
		result.Consumption = updated
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	result.Rejected = staged.Rejected
	result.Attachments = s.attachments.Upload(ctx, t, attachments.LevelConsumption, id, staged.Staged)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "consumption.update", "consumption",
		strconv.FormatInt(id, 10), map[string]any{"amount": in.Amount.StringFixed(2)}))
	return result, nil
}

// Get returns a consumption with its stored attachments.
func (s *Service) Get(ctx context.Context, t shared.Tenant, id int64) (Detail, error) {
	record, err := s.backend.Consumption(ctx, t.Token, id)
	if err != nil {
		return Detail{}, err
	}
	files, err := s.attachments.List(ctx, t, attachments.LevelConsumption, id)
	if err != nil {
		s.logger.Warn("list consumption attachments", slog.Int64("id", id), slog.Any("error", err))
		files = []backend.AttachmentMeta{}
	}
	return Detail{Consumption: record, Attachments: files}, nil
}

// ListByPO lists the consumptions recorded against a PO number.
func (s *Service) ListByPO(ctx context.Context, t shared.Tenant, poNumber string) ([]backend.Consumption, error) {
	if poNumber == "" {
		return nil, shared.NewValidationError("poNumber", "is required")
	}
	items, err := s.backend.ConsumptionsByPO(ctx, t.Token, poNumber)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []backend.Consumption{}
	}
	return items, nil
}

// BalanceByPO is the consumption balance of a PO number.
func (s *Service) BalanceByPO(ctx context.Context, t shared.Tenant, poNumber string) (backend.Balance, error) {
	if poNumber == "" {
		return backend.Balance{}, shared.NewValidationError("poNumber", "is required")
	}
	return s.backend.ConsumptionBalance(ctx, t.Token, poNumber)
}
