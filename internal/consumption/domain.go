// Package consumption records resource utilization charged against a PO
// or one of its milestones.
package consumption

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Utilization types.
const (
	TypeFixed = "Fixed"
	TypeTM    = "T&M"
	TypeMixed = "Mixed"
)

const dateLayout = "2006-01-02"

// Input is the consumption form.
type Input struct {
	POID            int64           `json:"poId" validate:"required,gt=0"`
	MilestoneID     *int64          `json:"msId"`
	Amount          decimal.Decimal `json:"amount"`
	UtilizationType string          `json:"utilizationType" validate:"required,oneof=Fixed T&M Mixed"`
	Resource        string          `json:"resourceDetails" validate:"required,max=255"`
	ProjectName     string          `json:"projectName" validate:"required,max=255"`
	WorkDesc        string          `json:"workDesc" validate:"required,max=2000"`
	AssignDate      string          `json:"workAssignDate" validate:"required,datetime=2006-01-02"`
	CompletionDate  string          `json:"workCompletionDate" validate:"required,datetime=2006-01-02"`
	Remarks         string          `json:"remarks" validate:"max=1000"`
}

// Target is the balance the input draws on.
func (in Input) Target() balance.Target {
	return balance.Target{POID: in.POID, MilestoneID: in.MilestoneID}
}

func (in Input) checkRules() error {
	verr := &shared.ValidationError{}
	if !in.Amount.GreaterThan(decimal.Zero) {
		verr.Add("amount", "must be greater than 0")
	}
	assign, errA := time.Parse(dateLayout, in.AssignDate)
	done, errC := time.Parse(dateLayout, in.CompletionDate)
	if errA == nil && errC == nil && done.Before(assign) {
		verr.Add("workCompletionDate", "must not be before the assign date")
	}
	return verr.OrNil()
}

func (in Input) record(po backend.PurchaseOrder) backend.Consumption {
	var msID *int64
	if in.Target().HasMilestone() {
		msID = in.MilestoneID
	}
	return backend.Consumption{
		POID:            in.POID,
		PONumber:        po.PONumber,
		MilestoneID:     msID,
		Amount:          in.Amount.Round(2),
		Currency:        po.Currency,
		UtilizationType: in.UtilizationType,
		Resource:        in.Resource,
		ProjectName:     in.ProjectName,
		WorkDesc:        in.WorkDesc,
		AssignDate:      in.AssignDate,
		CompletionDate:  in.CompletionDate,
		Remarks:         in.Remarks,
	}
}

// Result is the outcome of a create or edit.
type Result struct {
	Consumption backend.Consumption      `json:"consumption"`
	Attachments attachments.UploadReport `json:"attachments"`
	Rejected    []attachments.Rejection  `json:"rejected,omitempty"`
}

// Detail is one consumption with its stored attachments.
type Detail struct {
	Consumption backend.Consumption      `json:"consumption"`
	Attachments []backend.AttachmentMeta `json:"attachments"`
}
