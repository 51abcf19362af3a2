// Package po serves purchase order lookups: listing, detail with
// milestones and the live balance check used by the forms.
package po

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/money"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Reference is the cached reference data the service reads.
type Reference interface {
	PurchaseOrders(ctx context.Context, t shared.Tenant) ([]backend.PurchaseOrder, error)
	PurchaseOrder(ctx context.Context, t shared.Tenant, poID int64) (backend.PurchaseOrder, error)
	Milestones(ctx context.Context, t shared.Tenant, poID int64, scope reference.MilestoneScope) ([]backend.Milestone, error)
}

// Service answers PO queries.
type Service struct {
	ref     Reference
	checker *balance.Checker
}

// NewService constructs the PO service.
func NewService(ref Reference, checker *balance.Checker) *Service {
	return &Service{ref: ref, checker: checker}
}

// Detail is a PO with the milestones selectable for one flow.
type Detail struct {
	PurchaseOrder  backend.PurchaseOrder `json:"purchaseOrder"`
	Milestones     []backend.Milestone   `json:"milestones"`
	CurrencySymbol string                `json:"currencySymbol"`
}

// List returns every PO of the tenant.
func (s *Service) List(ctx context.Context, t shared.Tenant) ([]backend.PurchaseOrder, error) {
	pos, err := s.ref.PurchaseOrders(ctx, t)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = []backend.PurchaseOrder{}
	}
	return pos, nil
}

// Detail loads a PO and its milestones for scope.
func (s *Service) Detail(ctx context.Context, t shared.Tenant, poID int64, scope reference.MilestoneScope) (Detail, error) {
	po, err := s.ref.PurchaseOrder(ctx, t, poID)
	if err != nil {
		return Detail{}, err
	}
	milestones, err := s.ref.Milestones(ctx, t, poID, scope)
	if err != nil {
		return Detail{}, err
	}
	if milestones == nil {
		milestones = []backend.Milestone{}
	}
	return Detail{PurchaseOrder: po, Milestones: milestones, CurrencySymbol: money.Symbol(po.Currency)}, nil
}

// BalanceView is the live balance shown next to an amount field.
type BalanceView struct {
	Purpose   balance.Purpose `json:"purpose"`
	Target    balance.Target  `json:"target"`
	Available decimal.Decimal `json:"available"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted"`
}

// Balance reads the remaining balance of target. When amount is given it
// is checked against the balance and an over-balance amount fails with a
// balance.ExceededError.
func (s *Service) Balance(ctx context.Context, t shared.Tenant, purpose balance.Purpose, target balance.Target, amount *decimal.Decimal) (BalanceView, error) {
	currency := ""
	if po, err := s.ref.PurchaseOrder(ctx, t, target.POID); err == nil {
		currency = po.Currency
	}
	view := BalanceView{Purpose: purpose, Target: target, Currency: currency}
	if amount == nil {
		bal, err := s.checker.Available(ctx, t, purpose, target)
		if err != nil {
			return BalanceView{}, err
		}
		view.Available = bal.Amount
	} else {
		available, err := s.checker.Check(ctx, t, balance.Request{
			Purpose:  purpose,
			Target:   target,
			Amount:   *amount,
			Currency: currency,
			Field:    "amount",
		})
		if err != nil {
			return BalanceView{}, err
		}
		view.Available = available
	}
	view.Formatted = money.Format(view.Available, currency)
	return view, nil
}
