package srn

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/shared"
)

const idempotencyModule = "srn"

// Backend is the SRN surface of the upstream API.
type Backend interface {
	CreateSRN(ctx context.Context, token string, in backend.SRN) (backend.SRN, error)
	UpdateSRN(ctx context.Context, token string, id int64, in backend.SRN) (backend.SRN, error)
	DeleteSRN(ctx context.Context, token string, id int64) error
	SRN(ctx context.Context, token string, id int64) (backend.SRN, error)
	SRNs(ctx context.Context, token string) ([]backend.SRN, error)
	SRNsByPO(ctx context.Context, token string, poID int64) ([]backend.SRN, error)
	SRNExists(ctx context.Context, token string, poID int64, msID *int64) (bool, error)
	LinkedAmounts(ctx context.Context, token string, id int64) (backend.LinkedAmounts, error)
}

// POReader resolves the PO an SRN is drawn from.
type POReader interface {
	PurchaseOrder(ctx context.Context, t shared.Tenant, poID int64) (backend.PurchaseOrder, error)
}

// Service orchestrates SRN submissions.
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

// NewService constructs the SRN service.
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

// hasExisting reports whether SRNs other than excludeID are recorded
// against target.
func (s *Service) hasExisting(ctx context.Context, t shared.Tenant, target balance.Target, excludeID int64) (bool, error) {
	if excludeID == 0 {
		exists, err := s.backend.SRNExists(ctx, t.Token, target.POID, target.MilestoneID)
		if err == nil {
			return exists, nil
		}
		s.logger.Warn("srn check failed, scanning PO list", slog.Int64("po_id", target.POID), slog.Any("error", err))
	}
	items, err := s.backend.SRNsByPO(ctx, t.Token, target.POID)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.ID == excludeID && excludeID != 0 {
			continue
		}
		if target.Same(balance.Target{POID: item.POID, MilestoneID: item.MilestoneID}) {
			return true, nil
		}
	}
	return false, nil
}

// SelectType applies the type rules for target. credit is the amount of the
// SRN being edited when its target is unchanged, zero otherwise.
func (s *Service) SelectType(ctx context.Context, t shared.Tenant, srnType string, target balance.Target, excludeID int64, credit decimal.Decimal) (TypeSelection, error) {
	if srnType != TypePartial && srnType != TypeFull {
		return TypeSelection{}, shared.NewValidationError("srnType", "must be one of partial full")
	}
	currency := ""
	if po, err := s.pos.PurchaseOrder(ctx, t, target.POID); err == nil {
		currency = po.Currency
	}
	bal, err := s.checker.Available(ctx, t, balance.PurposeSRN, target)
	if err != nil {
		return TypeSelection{}, err
	}
	available := bal.Amount.Add(credit)
	sel := TypeSelection{Type: srnType, Available: available, Currency: currency}
	if srnType == TypePartial {
		return sel, nil
	}
	exists, err := s.hasExisting(ctx, t, target, excludeID)
	if err != nil {
		return TypeSelection{}, err
	}
	if exists {
		return TypeSelection{}, shared.NewValidationError("srnType", "A full SRN is not allowed because SRNs already exist for this PO or milestone")
	}
	sel.Amount = available
	sel.ReadOnly = true
	return sel, nil
}

func (s *Service) validateInput(in Input) error {
	if err := s.validate.Struct(in); err != nil {
		return shared.FromValidator(err)
	}
	if in.Type == TypePartial && !in.Amount.GreaterThan(decimal.Zero) {
		return shared.NewValidationError("srnAmount", "must be greater than 0")
	}
	return nil
}

// settle applies the type and balance rules to in. Full SRNs take the
// whole available balance; partial SRNs must fit in it.
func (s *Service) settle(ctx context.Context, t shared.Tenant, in *Input, po backend.PurchaseOrder, excludeID int64, credit decimal.Decimal) error {
	if in.Type == TypeFull {
		sel, err := s.SelectType(ctx, t, TypeFull, in.Target(), excludeID, credit)
		if err != nil {
			return err
		}
		if !sel.Amount.GreaterThan(decimal.Zero) {
			return shared.NewValidationError("srnAmount", "No balance is left for a full SRN")
		}
		in.Amount = sel.Amount
		return nil
	}
	_, err := s.checker.Check(ctx, t, balance.Request{
		Purpose:  balance.PurposeSRN,
		Target:   in.Target(),
		Amount:   in.Amount,
		Currency: po.Currency,
		Credit:   credit,
		Field:    "srnAmount",
	})
	return err
}

// Create stores a new SRN and uploads its files. Files repeated by name,
// size and modification time are dropped.
func (s *Service) Create(ctx context.Context, t shared.Tenant, in Input, files []attachments.File, idemKey string) (Result, error) {
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	staged := attachments.Stage(nil, files, attachments.StageOptions{Dedupe: true})
	po, err := s.pos.PurchaseOrder(ctx, t, in.POID)
	if err != nil {
		return Result{}, err
	}
	if err := s.settle(ctx, t, &in, po, 0, decimal.Zero); err != nil {
		return Result{}, err
	}

	var result Result
	err = shared.Guard(ctx, s.idempotency, idemKey, idempotencyModule, func(ctx context.Context) error {
		created, err := s.backend.CreateSRN(ctx, t.Token, in.record(po))
		if err != nil {
			return err
		}
		result.SRN = created
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	result.Rejected = staged.Rejected
	result.Duplicates = staged.Duplicates
	result.Attachments = s.attachments.Upload(ctx, t, attachments.LevelSRN, result.SRN.ID, staged.Staged)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "srn.create", "srn",
		strconv.FormatInt(result.SRN.ID, 10), map[string]any{
			"po_id":  in.POID,
			"type":   in.Type,
			"amount": in.Amount.StringFixed(2),
		}))
	return result, nil
}

// Update edits an SRN. When the PO and milestone are unchanged the SRN's
// previous amount counts as available again, and it is not counted as an
// existing SRN for the full type rule.
func (s *Service) Update(ctx context.Context, t shared.Tenant, id int64, in Input, files []attachments.File, idemKey string) (Result, error) {
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	existing, err := s.backend.SRN(ctx, t.Token, id)
	if err != nil {
		return Result{}, err
	}
	staged, err := s.attachments.StageForRecord(ctx, t, attachments.LevelSRN, id, files, attachments.StageOptions{Dedupe: true})
	if err != nil {
		return Result{}, err
	}
	po, err := s.pos.PurchaseOrder(ctx, t, in.POID)
	if err != nil {
		return Result{}, err
	}
	credit := decimal.Zero
	if in.Target().Same(balance.Target{POID: existing.POID, MilestoneID: existing.MilestoneID}) {
		credit = existing.Amount
	}
	if err := s.settle(ctx, t, &in, po, id, credit); err != nil {
		return Result{}, err
	}

	var result Result
	err = shared.Guard(ctx, s.idempotency, idemKey, idempotencyModule, func(ctx context.Context) error {
		record := in.record(po)
		record.ID = id
		updated, err := s.backend.UpdateSRN(ctx, t.Token, id, record)
		if err != nil {
			return err
		}
		if updated.ID == 0 {
			updated.ID = id
		}
		result.SRN = updated
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	result.Rejected = staged.Rejected
	result.Duplicates = staged.Duplicates
	result.Attachments = s.attachments.Upload(ctx, t, attachments.LevelSRN, id, staged.Staged)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "srn.update", "srn",
		strconv.FormatInt(id, 10), map[string]any{"type": in.Type, "amount": in.Amount.StringFixed(2)}))
	return result, nil
}

// Delete removes an SRN.
func (s *Service) Delete(ctx context.Context, t shared.Tenant, id int64) error {
	if err := s.backend.DeleteSRN(ctx, t.Token, id); err != nil {
		return err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "srn.delete", "srn", strconv.FormatInt(id, 10), nil))
	return nil
}

// Get returns an SRN with its stored attachments.
func (s *Service) Get(ctx context.Context, t shared.Tenant, id int64) (Detail, error) {
	record, err := s.backend.SRN(ctx, t.Token, id)
	if err != nil {
		return Detail{}, err
	}
	files, err := s.attachments.List(ctx, t, attachments.LevelSRN, id)
	if err != nil {
		s.logger.Warn("list srn attachments", slog.Int64("id", id), slog.Any("error", err))
		files = []backend.AttachmentMeta{}
	}
	return Detail{SRN: record, Attachments: files}, nil
}

// List returns every SRN, or those of one PO when poID is set.
func (s *Service) List(ctx context.Context, t shared.Tenant, poID *int64) ([]backend.SRN, error) {
	var (
		items []backend.SRN
		err   error
	)
	if poID != nil {
		items, err = s.backend.SRNsByPO(ctx, t.Token, *poID)
	} else {
		items, err = s.backend.SRNs(ctx, t.Token)
	}
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []backend.SRN{}
	}
	return items, nil
}

// LinkedAmounts returns the consumption and invoice totals linked to an SRN.
func (s *Service) LinkedAmounts(ctx context.Context, t shared.Tenant, id int64) (backend.LinkedAmounts, error) {
	return s.backend.LinkedAmounts(ctx, t.Token, id)
}

// TypeRequest is a type change on the SRN form. SRNID is set while
// editing.
type TypeRequest struct {
	Type        string `json:"srnType"`
	POID        int64  `json:"poId"`
	MilestoneID *int64 `json:"msId"`
	SRNID       int64  `json:"srnId"`
}

// ChooseType resolves a type change, accounting for the edited SRN.
func (s *Service) ChooseType(ctx context.Context, t shared.Tenant, req TypeRequest) (TypeSelection, error) {
	target := balance.Target{POID: req.POID, MilestoneID: req.MilestoneID}
	credit := decimal.Zero
	if req.SRNID > 0 {
		existing, err := s.backend.SRN(ctx, t.Token, req.SRNID)
		if err != nil {
			return TypeSelection{}, err
		}
		if target.Same(balance.Target{POID: existing.POID, MilestoneID: existing.MilestoneID}) {
			credit = existing.Amount
		}
	}
	return s.SelectType(ctx, t, req.Type, target, req.SRNID, credit)
}
