// Package balance checks entered amounts against the remaining PO or
// milestone balance reported by the backend.
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/money"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Purpose picks the balance endpoints: consumptions and SRNs draw on
// separately tracked balances.
type Purpose string

const (
	PurposeConsumption Purpose = "consumption"
	PurposeSRN         Purpose = "srn"
)

// ParsePurpose validates a purpose value.
func ParsePurpose(raw string) (Purpose, error) {
	switch p := Purpose(raw); p {
	case PurposeConsumption, PurposeSRN:
		return p, nil
	}
	return "", shared.NewValidationError("purpose", "must be one of consumption srn")
}

// Target is the PO, or one of its milestones, an amount is charged to.
type Target struct {
	POID        int64  `json:"poId"`
	MilestoneID *int64 `json:"msId,omitempty"`
}

// HasMilestone reports whether a milestone is selected.
func (t Target) HasMilestone() bool {
	return t.MilestoneID != nil && *t.MilestoneID > 0
}

// Same reports whether both targets point at the same PO and milestone.
func (t Target) Same(other Target) bool {
	if t.POID != other.POID || t.HasMilestone() != other.HasMilestone() {
		return false
	}
	return !t.HasMilestone() || *t.MilestoneID == *other.MilestoneID
}

// Source is the backend surface balances are read from.
type Source interface {
	POBalance(ctx context.Context, token string, poID int64) (backend.Balance, error)
	POBalanceForConsumption(ctx context.Context, token string, poID int64) (backend.Balance, error)
	MilestoneBalance(ctx context.Context, token string, poID, msID int64) (backend.Balance, error)
	MilestoneBalanceForConsumption(ctx context.Context, token string, poID, msID int64) (backend.Balance, error)
}

// ErrExceeded matches every ExceededError.
var ErrExceeded = errors.New("amount exceeds available balance")

// ExceededError is the field error raised when an amount is above the
// remaining balance.
type ExceededError struct {
	Field      string
	Entered    decimal.Decimal
	Available  decimal.Decimal
	Currency   string
	ClearAfter time.Duration
}

func (e *ExceededError) Error() string {
	return e.message()
}

func (e *ExceededError) message() string {
	return fmt.Sprintf("Amount exceeds the available balance of %s", money.FormatPlain(e.Available, e.Currency))
}

// Is matches ErrExceeded and shared.ErrValidation.
func (e *ExceededError) Is(target error) bool {
	return target == ErrExceeded || target == shared.ErrValidation
}

// FieldErrors renders the error inline against the amount field.
func (e *ExceededError) FieldErrors() map[string]string {
	return map[string]string{e.Field: e.message()}
}

// ClearAfterMillis hints how long the form shows the error. Zero means the
// error stays until corrected.
func (e *ExceededError) ClearAfterMillis() int64 {
	return e.ClearAfter.Milliseconds()
}

// Checker reads balances and validates amounts against them. Balances are
// always read live.
type Checker struct {
	source     Source
	clearAfter time.Duration
}

// NewChecker constructs a Checker. clearAfter is the auto-clear hint
// attached to consumption balance errors.
func NewChecker(source Source, clearAfter time.Duration) *Checker {
	return &Checker{source: source, clearAfter: clearAfter}
}

// Available returns the remaining balance of target. A selected milestone
// takes precedence over the PO.
func (c *Checker) Available(ctx context.Context, t shared.Tenant, purpose Purpose, target Target) (backend.Balance, error) {
	if target.POID <= 0 {
		return backend.Balance{}, shared.NewValidationError("poId", "select a purchase order")
	}
	switch {
	case purpose == PurposeConsumption && target.HasMilestone():
		return c.source.MilestoneBalanceForConsumption(ctx, t.Token, target.POID, *target.MilestoneID)
	case purpose == PurposeConsumption:
		return c.source.POBalanceForConsumption(ctx, t.Token, target.POID)
	case target.HasMilestone():
		return c.source.MilestoneBalance(ctx, t.Token, target.POID, *target.MilestoneID)
	default:
		return c.source.POBalance(ctx, t.Token, target.POID)
	}
}

// Request is one amount to validate.
type Request struct {
	Purpose  Purpose
	Target   Target
	Amount   decimal.Decimal
	Currency string
	// Credit is added to the fetched balance; edits pass the record's
	// previous amount when its target is unchanged.
	Credit decimal.Decimal
	// Field names the form field the error renders against.
	Field string
}

// Check fetches the balance for req and fails with an ExceededError when
// the amount is above it. The effective available amount is returned.
func (c *Checker) Check(ctx context.Context, t shared.Tenant, req Request) (decimal.Decimal, error) {
	bal, err := c.Available(ctx, t, req.Purpose, req.Target)
	if err != nil {
		return decimal.Zero, err
	}
	available := bal.Amount.Add(req.Credit)
	if req.Amount.GreaterThan(available) {
		currency := req.Currency
		if currency == "" {
			currency = bal.Currency
		}
		field := req.Field
		if field == "" {
			field = "amount"
		}
		exceeded := &ExceededError{
			Field:     field,
			Entered:   req.Amount,
			Available: available,
			Currency:  currency,
		}
		if req.Purpose == PurposeConsumption {
			exceeded.ClearAfter = c.clearAfter
		}
		return available, exceeded
	}
	return available, nil
}
