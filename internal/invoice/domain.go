// Package invoice builds invoices from line items, employee consumption rows
// and timesheets, and keeps the in-progress form as a session draft.
package invoice

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
)

// Invoice types.
const (
	TypeDomestic      = "DOMESTIC"
	TypeInternational = "INTERNATIONAL"
)

// Row limits of the invoice form.
const (
	MaxItems     = 5
	MaxEmployees = 5
)

const dateLayout = "2006-01-02"

// FormData is the header of the invoice form.
type FormData struct {
	InvoiceType     string          `json:"invoiceType" validate:"required,oneof=DOMESTIC INTERNATIONAL"`
	PONumber        string          `json:"poNumber"`
	ProjectName     string          `json:"projectName"`
	CustomerName    string          `json:"customerName" validate:"required,max=255"`
	CustomerAddress string          `json:"customerAddress" validate:"max=1000"`
	SupplierName    string          `json:"supplierName" validate:"required,max=255"`
	SupplierAddress string          `json:"supplierAddress" validate:"max=1000"`
	FromDate        string          `json:"fromDate" validate:"required,datetime=2006-01-02"`
	ToDate          string          `json:"toDate" validate:"required,datetime=2006-01-02"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	Rate            decimal.Decimal `json:"rate"`
	Hours           decimal.Decimal `json:"hours"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Remarks         string          `json:"remarks" validate:"max=2000"`
}

// State is everything the invoice form holds between requests. It is the
// draft stored in the session.
type State struct {
	Form            FormData                  `json:"formData"`
	Items           []backend.InvoiceItem     `json:"items"`
	Employees       []backend.InvoiceEmployee `json:"invoiceEmployees"`
	AttachTimesheet bool                      `json:"attachTimesheet"`
	Tasks           []backend.TimesheetTask   `json:"tasks"`
	Attachments     []attachments.File        `json:"attachments"`
}

// NewState returns a blank invoice form.
func NewState() State {
	return State{
		Form:        FormData{InvoiceType: TypeDomestic},
		Items:       []backend.InvoiceItem{},
		Employees:   []backend.InvoiceEmployee{},
		Tasks:       []backend.TimesheetTask{},
		Attachments: []attachments.File{},
	}
}

// normalize replaces nil slices so a state always serializes the same way.
func (s *State) normalize() {
	if s.Items == nil {
		s.Items = []backend.InvoiceItem{}
	}
	if s.Employees == nil {
		s.Employees = []backend.InvoiceEmployee{}
	}
	if s.Tasks == nil {
		s.Tasks = []backend.TimesheetTask{}
	}
	if s.Attachments == nil {
		s.Attachments = []attachments.File{}
	}
}

// View is a recomputed state returned to the form.
type View struct {
	State  State  `json:"state"`
	Totals Totals `json:"totals"`
}

// Result is the outcome of a submit.
type Result struct {
	Invoice  backend.Invoice `json:"invoice"`
	Attached int             `json:"attached"`
}
