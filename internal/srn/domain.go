// Package srn records payments (service receipt notes) drawn against a PO
// or one of its milestones.
package srn

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
)

// SRN types.
const (
	TypePartial = "partial"
	TypeFull    = "full"
)

// Input is the SRN form.
type Input struct {
	POID        int64           `json:"poId" validate:"required,gt=0"`
	MilestoneID *int64          `json:"msId"`
	Name        string          `json:"srnName" validate:"required,max=255"`
	Description string          `json:"srnDsc" validate:"max=2000"`
	Amount      decimal.Decimal `json:"srnAmount"`
	Type        string          `json:"srnType" validate:"required,oneof=partial full"`
	Date        string          `json:"srnDate" validate:"required,datetime=2006-01-02"`
	Remarks     string          `json:"srnRemarks" validate:"max=1000"`
}

// Target is the balance the SRN draws on.
func (in Input) Target() balance.Target {
	return balance.Target{POID: in.POID, MilestoneID: in.MilestoneID}
}

func (in Input) record(po backend.PurchaseOrder) backend.SRN {
	var msID *int64
	if in.Target().HasMilestone() {
		msID = in.MilestoneID
	}
	return backend.SRN{
		POID:        in.POID,
		PONumber:    po.PONumber,
		MilestoneID: msID,
		Name:        in.Name,
		Description: in.Description,
		Amount:      in.Amount.Round(2),
		Currency:    po.Currency,
		Type:        in.Type,
		Date:        in.Date,
		Remarks:     in.Remarks,
	}
}

// TypeSelection is the form state after choosing an SRN type. A full SRN
// takes the whole remaining balance and locks the amount field.
type TypeSelection struct {
	Type      string          `json:"srnType"`
	Amount    decimal.Decimal `json:"srnAmount"`
	ReadOnly  bool            `json:"readOnly"`
	Available decimal.Decimal `json:"available"`
	Currency  string          `json:"currency"`
}

// Result is the outcome of a create or edit.
type Result struct {
	SRN         backend.SRN              `json:"srn"`
	Attachments attachments.UploadReport `json:"attachments"`
	Rejected    []attachments.Rejection  `json:"rejected,omitempty"`
	Duplicates  []string                 `json:"duplicates,omitempty"`
}

// Detail is one SRN with its stored attachments.
type Detail struct {
	SRN         backend.SRN              `json:"srn"`
	Attachments []backend.AttachmentMeta `json:"attachments"`
}
