package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/money"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// TargetHoursPerDay is the expected working time of a weekday.
const TargetHoursPerDay = 8

// selectedEmployees returns the indexes of rows with a user chosen.
func selectedEmployees(employees []backend.InvoiceEmployee) []int {
	var idx []int
	for i, e := range employees {
		if e.UserID > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// parseRange reads the invoice period.
func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, shared.NewValidationError("fromDate", "must be a date in 2006-01-02 form")
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, shared.NewValidationError("toDate", "must be a date in 2006-01-02 form")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, shared.NewValidationError("toDate", "must not be before the from date")
	}
	return start, end, nil
}

// FetchWindow is the task query range for an invoice period. It starts one
// day before the period so tasks logged late on the eve are included.
func FetchWindow(from, to string) (string, string, error) {
	start, end, err := parseRange(from, to)
	if err != nil {
		return "", "", err
	}
	return start.AddDate(0, 0, -1).Format(dateLayout), end.Format(dateLayout), nil
}

// TotalMinutes sums the time logged across tasks.
func TotalMinutes(tasks []backend.TimesheetTask) int {
	total := 0
	for _, t := range tasks {
		total += t.HoursSpent*60 + t.MinutesSpent
	}
	return total
}

// DecimalHours converts minutes into hours rounded to two decimals.
func DecimalHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// Weekdays counts Monday to Friday dates in [from, to].
func Weekdays(from, to time.Time) int {
	count := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !weekend(d) {
			count++
		}
	}
	return count
}

func weekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}

// BuildTimesheet turns fetched tasks into the timesheet block of the
// invoice document.
func BuildTimesheet(employeeName, from, to string, tasks []backend.TimesheetTask) (*backend.TimesheetSummary, error) {
	start, end, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	entries := make([]backend.TimesheetEntry, 0, len(tasks))
	for _, t := range tasks {
		day, err := time.Parse(dateLayout, t.TaskDate)
		if err != nil {
			return nil, fmt.Errorf("invoice: task %d has date %q: %w", t.ID, t.TaskDate, err)
		}
		entries = append(entries, backend.TimesheetEntry{
			Date:        t.TaskDate,
			Day:         day.Weekday().String(),
			Weekend:     weekend(day),
			Hours:       t.HoursSpent,
			Minutes:     t.MinutesSpent,
			Description: t.Description,
		})
	}
	return &backend.TimesheetSummary{
		EmployeeName: employeeName,
		FromDate:     from,
		ToDate:       to,
		TotalHours:   DecimalHours(TotalMinutes(tasks)),
		TargetHours:  TargetHoursPerDay * Weekdays(start, end),
		Entries:      entries,
	}, nil
}

// shouldFetchTimesheet reports whether the form has what the task lookup
// needs: a period, a single selected employee and a loaded roster.
func shouldFetchTimesheet(s State, rosterSize int) bool {
	if s.Form.FromDate == "" || s.Form.ToDate == "" || rosterSize == 0 {
		return false
	}
	return len(selectedEmployees(s.Employees)) == 1
}

// ApplyTimesheet writes the hours of the tasks into the form. fetched
// reports whether the tasks were loaded on this pass; a fetch that found
// nothing bills zero hours. With the timesheet attached, the single selected
// employee row is billed for the whole hours logged. The toggle switches
// itself off unless exactly one employee row is selected.
func ApplyTimesheet(s *State, fetched bool) {
	selected := selectedEmployees(s.Employees)
	if len(selected) != 1 {
		s.AttachTimesheet = false
	}
	if !fetched && len(s.Tasks) == 0 {
		return
	}
	hours := DecimalHours(TotalMinutes(s.Tasks))
	s.Form.Hours = hours
	if !s.AttachTimesheet {
		return
	}
	row := &s.Employees[selected[0]]
	row.Quantity = hours.Floor()
	row.Amount = money.LineAmount(row.Rate, row.Quantity)
}
