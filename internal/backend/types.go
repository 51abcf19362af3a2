package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is the upstream PO record.
type PurchaseOrder struct {
	ID            int64           `json:"poId"`
	PONumber      string          `json:"poNumber"`
	POType        string          `json:"poType"`
	CustomerName  string          `json:"customerName"`
	SupplierName  string          `json:"supplierName"`
	ProjectName   string          `json:"projectName"`
	Currency      string          `json:"poCurrency"`
	Amount        decimal.Decimal `json:"poAmount"`
	StartDate     string          `json:"poStartDate,omitempty"`
	EndDate       string          `json:"poEndDate,omitempty"`
	SponsorName   string          `json:"sponsorName,omitempty"`
	BudgetLineRef string          `json:"budgetLineItem,omitempty"`
}

// Milestone is a sub allocation of a PO.
type Milestone struct {
	ID       int64           `json:"msId"`
	POID     int64           `json:"poId"`
	Name     string          `json:"msName"`
	Desc     string          `json:"msDesc,omitempty"`
	Amount   decimal.Decimal `json:"msAmount"`
	Currency string          `json:"msCurrency"`
	Date     string          `json:"msDate,omitempty"`
	Duration int             `json:"msDuration,omitempty"`
}

// Balance is a remaining PO or milestone amount. The backend answers either
// a bare number or an object; both decode here.
type Balance struct {
	Amount   decimal.Decimal
	Currency string
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Balance) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		b.Amount = decimal.Zero
		return nil
	}
	if data[0] != '{' {
		return b.Amount.UnmarshalJSON(data)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	found := false
	for _, key := range []string{"balance", "remainingBalance", "availableBalance", "amount"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if err := b.Amount.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("balance %s: %w", key, err)
		}
		found = true
		break
	}
	if !found {
		return errors.New("balance: no amount field in object")
	}
	for _, key := range []string{"currency", "poCurrency", "msCurrency"} {
		if raw, ok := obj[key]; ok {
			_ = json.Unmarshal(raw, &b.Currency)
			break
		}
	}
	return nil
}

// Consumption is a resource utilization record charged against a PO.
type Consumption struct {
	ID              int64           `json:"utilizationId,omitempty"`
	POID            int64           `json:"poId"`
	PONumber        string          `json:"poNumber"`
	MilestoneID     *int64          `json:"msId,omitempty"`
	MilestoneName   string          `json:"msName,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	UtilizationType string          `json:"utilizationType"`
	Resource        string          `json:"resourceDetails"`
	ProjectName     string          `json:"projectName"`
	WorkDesc        string          `json:"workDesc"`
	AssignDate      string          `json:"workAssignDate"`
	CompletionDate  string          `json:"workCompletionDate"`
	Remarks         string          `json:"remarks,omitempty"`
	CreatedAt       string          `json:"createdTimestamp,omitempty"`
}

// SRN is a payment record drawn against a PO or milestone.
type SRN struct {
	ID            int64           `json:"srnId,omitempty"`
	POID          int64           `json:"poId"`
	PONumber      string          `json:"poNumber,omitempty"`
	MilestoneID   *int64          `json:"msId,omitempty"`
	MilestoneName string          `json:"msName,omitempty"`
	Name          string          `json:"srnName"`
	Description   string          `json:"srnDsc"`
	Amount        decimal.Decimal `json:"srnAmount"`
	Currency      string          `json:"srnCurrency"`
	Type          string          `json:"srnType"`
	Date          string          `json:"srnDate"`
	Remarks       string          `json:"srnRemarks,omitempty"`
	CreatedAt     string          `json:"createdTimestamp,omitempty"`
}

// LinkedAmounts sums the records linked to one SRN.
type LinkedAmounts struct {
	SRNID             int64           `json:"srnId"`
	SRNAmount         decimal.Decimal `json:"srnAmount"`
	ConsumptionAmount decimal.Decimal `json:"consumptionAmount"`
	InvoiceAmount     decimal.Decimal `json:"invoiceAmount"`
}

// InvoiceItem is one line item row.
type InvoiceItem struct {
	Description string          `json:"description"`
	Rate        decimal.Decimal `json:"rate"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceEmployee is one employee consumption row.
type InvoiceEmployee struct {
	UserID   int64           `json:"userId"`
	Name     string          `json:"employeeName"`
	Role     string          `json:"role,omitempty"`
	Rate     decimal.Decimal `json:"rate"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// TimesheetEntry is one day of the timesheet summary embedded in invoices.
type TimesheetEntry struct {
	Date        string `json:"date"`
	Day         string `json:"day"`
	Weekend     bool   `json:"weekend"`
	Hours       int    `json:"hoursSpent"`
	Minutes     int    `json:"minutesSpent"`
	Description string `json:"taskDescription,omitempty"`
}

// TimesheetSummary is the timesheet block of an invoice document.
type TimesheetSummary struct {
	EmployeeName string           `json:"employeeName"`
	FromDate     string           `json:"fromDate"`
	ToDate       string           `json:"toDate"`
	TotalHours   decimal.Decimal  `json:"totalHours"`
	TargetHours  int              `json:"targetHours"`
	Entries      []TimesheetEntry `json:"entries"`
}

// InvoiceRequest is the payload of preview and generate calls.
type InvoiceRequest struct {
	TenantID        string            `json:"tenantId"`
	InvoiceType     string            `json:"invoiceType"`
	PONumber        string            `json:"poNumber,omitempty"`
	ProjectName     string            `json:"projectName,omitempty"`
	CustomerName    string            `json:"customerName"`
	CustomerAddress string            `json:"customerAddress"`
	SupplierName    string            `json:"supplierName"`
	SupplierAddress string            `json:"supplierAddress"`
	FromDate        string            `json:"fromDate"`
	ToDate          string            `json:"toDate"`
	Currency        string            `json:"currency"`
	Rate            decimal.Decimal   `json:"rate"`
	Hours           decimal.Decimal   `json:"hours"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	Remarks         string            `json:"remarks,omitempty"`
	Items           []InvoiceItem     `json:"items"`
	Employees       []InvoiceEmployee `json:"invoiceEmployees"`
	Timesheet       *TimesheetSummary `json:"timesheet,omitempty"`
}

// Invoice is a generated invoice as listed by the backend.
type Invoice struct {
	ID              int64           `json:"id"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	InvoiceType     string          `json:"invoiceType"`
	PONumber        string          `json:"poNumber,omitempty"`
	ProjectName     string          `json:"projectName,omitempty"`
	CustomerName    string          `json:"customerName"`
	SupplierName    string          `json:"supplierName"`
	FromDate        string          `json:"fromDate"`
	ToDate          string          `json:"toDate"`
	Currency        string          `json:"currency"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	AttachmentCount int             `json:"attachmentCount"`
	CreatedAt       string          `json:"createdAt,omitempty"`
}

// User is a tenant user; the employee roster of invoices.
type User struct {
	ID          int64  `json:"userId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// Project is a tenant project.
type Project struct {
	ID          int64           `json:"projectId,omitempty"`
	Name        string          `json:"projectName"`
	Code        string          `json:"projectCode"`
	Currency    string          `json:"currency,omitempty"`
	Cost        decimal.Decimal `json:"projectCost"`
	StartDate   string          `json:"startDate,omitempty"`
	EndDate     string          `json:"endDate,omitempty"`
	ManagerName string          `json:"projectManager,omitempty"`
}

// ProjectRequest is the create payload for projects.
type ProjectRequest struct {
	Name              string          `json:"projectName"`
	Code              string          `json:"projectCode"`
	Description       string          `json:"projectDescription,omitempty"`
	ManagerID         int64           `json:"projectManagerId"`
	SponsorID         int64           `json:"sponsorId,omitempty"`
	BusinessOwnerID   int64           `json:"businessOwnerId,omitempty"`
	TechLeadID        int64           `json:"techLeadId,omitempty"`
	Currency          string          `json:"currency"`
	Cost              decimal.Decimal `json:"projectCost"`
	BusinessValue     decimal.Decimal `json:"businessValueAmount"`
	BusinessValueType string          `json:"businessValueType,omitempty"`
	TeamMemberIDs     []int64         `json:"teamMemberIds"`
	ImpactedSystems   []string        `json:"impactedSystems"`
	StartDate         string          `json:"startDate"`
	EndDate           string          `json:"endDate"`
}

// GeneratedCode is the answer of the project code generator.
type GeneratedCode struct {
	Code string `json:"projectCode"`
}

// Organization is a customer or supplier.
type Organization struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	TaxID        string `json:"taxId,omitempty"`
	TaxRegNumber string `json:"taxRegistrationNumber,omitempty"`
}

// System is an impacted system of a project.
type System struct {
	ID   int64  `json:"systemId"`
	Name string `json:"systemName"`
}

// AttachmentMeta describes a stored attachment.
type AttachmentMeta struct {
	ID          int64  `json:"id"`
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
	Level       string `json:"level"`
	ReferenceID int64  `json:"referenceId"`
	UploadedAt  string `json:"uploadedAt,omitempty"`
}

// TimesheetTask is one logged task of a user.
type TimesheetTask struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	TaskDate     string `json:"taskDate"`
	HoursSpent   int    `json:"hoursSpent"`
	MinutesSpent int    `json:"minutesSpent"`
	Description  string `json:"taskDescription"`
	ProjectName  string `json:"projectName,omitempty"`
}
