// Package projects creates tenant projects with their team and impacted
// systems.
package projects

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

const idempotencyModule = "project"

// Input is the project form.
type Input struct {
	Name              string          `json:"projectName" validate:"required,max=255"`
	Code              string          `json:"projectCode" validate:"max=64"`
	Description       string          `json:"projectDescription" validate:"max=2000"`
	ManagerID         int64           `json:"projectManagerId" validate:"required,gt=0"`
	SponsorID         int64           `json:"sponsorId" validate:"gte=0"`
	BusinessOwnerID   int64           `json:"businessOwnerId" validate:"gte=0"`
	TechLeadID        int64           `json:"techLeadId" validate:"gte=0"`
	Currency          string          `json:"currency" validate:"required,len=3"`
	Cost              decimal.Decimal `json:"projectCost"`
	BusinessValue     decimal.Decimal `json:"businessValueAmount"`
	BusinessValueType string          `json:"businessValueType" validate:"max=64"`
	TeamMemberIDs     []int64         `json:"teamMemberIds"`
	ImpactedSystems   []string        `json:"impactedSystems"`
	StartDate         string          `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate           string          `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// SystemChoice is one impacted system as picked on the form. Names not
// known to the tenant are created with the project.
type SystemChoice struct {
	Name    string `json:"systemName"`
	ID      int64  `json:"systemId,omitempty"`
	Created bool   `json:"created"`
}

// FormContext is what the project form needs when it opens.
type FormContext struct {
	Code    string           `json:"projectCode"`
	Users   []backend.User   `json:"users"`
	Systems []backend.System `json:"systems"`
}

// Result is a created project.
type Result struct {
	Project backend.Project `json:"project"`
	Systems []SystemChoice  `json:"systems"`
}

// Backend is the project surface of the upstream API.
type Backend interface {
	GenerateProjectCode(ctx context.Context, token string) (string, error)
	CreateProject(ctx context.Context, token, tenantID string, in backend.ProjectRequest) (backend.Project, error)
}

// Reference provides cached tenant data.
type Reference interface {
	LoadForm(ctx context.Context, t shared.Tenant, req reference.FormRequest) (reference.FormData, error)
	Systems(ctx context.Context, t shared.Tenant) ([]backend.System, error)
	Projects(ctx context.Context, t shared.Tenant) ([]backend.Project, error)
	Invalidate(ctx context.Context, t shared.Tenant)
}

// Service orchestrates project creation.
type Service struct {
	backend     Backend
	ref         Reference
	idempotency shared.IdempotencyPort
	audit       shared.AuditPort
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewService constructs the project service.
func NewService(b Backend, ref Reference, idem shared.IdempotencyPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:     b,
		ref:         ref,
		idempotency: idem,
		audit:       audit,
		validate:    shared.NewValidator(),
		logger:      logger,
	}
}

// Form loads the users and systems and reserves a project code. A failed
// code request leaves the code empty; Create asks again.
func (s *Service) Form(ctx context.Context, t shared.Tenant) (FormContext, error) {
	data, err := s.ref.LoadForm(ctx, t, reference.FormRequest{Users: true, Systems: true})
	if err != nil {
		return FormContext{}, err
	}
	code, err := s.backend.GenerateProjectCode(ctx, t.Token)
	if err != nil {
		s.logger.Warn("generate project code", slog.Any("error", err))
		code = ""
	}
	return FormContext{Code: code, Users: data.Users, Systems: data.Systems}, nil
}

// List returns the tenant's projects.
func (s *Service) List(ctx context.Context, t shared.Tenant) ([]backend.Project, error) {
	return s.ref.Projects(ctx, t)
}

// ResolveSystems matches picked system names against the known systems,
// case-insensitively. Blank and repeated names are dropped.
func ResolveSystems(known []backend.System, picked []string) []SystemChoice {
	out := make([]SystemChoice, 0, len(picked))
	seen := make(map[string]struct{}, len(picked))
	for _, raw := range picked {
		name := strings.TrimSpace(raw)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		choice := SystemChoice{Name: name, Created: true}
		for _, sys := range known {
			if strings.EqualFold(sys.Name, name) {
				choice = SystemChoice{Name: sys.Name, ID: sys.ID}
				break
			}
		}
		out = append(out, choice)
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) check(in Input) error {
	if err := s.validate.Struct(in); err != nil {
		return shared.FromValidator(err)
	}
	if in.Cost.IsNegative() {
		return shared.NewValidationError("projectCost", "must not be negative")
	}
	if in.BusinessValue.IsNegative() {
		return shared.NewValidationError("businessValueAmount", "must not be negative")
	}
	start, _ := time.Parse("2006-01-02", in.StartDate)
	end, _ := time.Parse("2006-01-02", in.EndDate)
	if end.Before(start) {
		return shared.NewValidationError("endDate", "must not be before the start date")
	}
	return nil
}

// Create stores the project and drops the tenant's cached reference data so
// the new project shows up in pickers.
func (s *Service) Create(ctx context.Context, t shared.Tenant, in Input, idemKey string) (Result, error) {
	if err := s.check(in); err != nil {
		return Result{}, err
	}
	if in.Code == "" {
		code, err := s.backend.GenerateProjectCode(ctx, t.Token)
		if err != nil {
			return Result{}, err
		}
		in.Code = code
	}
	known, err := s.ref.Systems(ctx, t)
	if err != nil {
		s.logger.Warn("load systems", slog.Any("error", err))
	}
	systems := ResolveSystems(known, in.ImpactedSystems)
	names := make([]string, len(systems))
	for i, sys := range systems {
		names[i] = sys.Name
	}

	req := backend.ProjectRequest{
		Name:              strings.TrimSpace(in.Name),
		Code:              in.Code,
		Description:       in.Description,
		ManagerID:         in.ManagerID,
		SponsorID:         in.SponsorID,
		BusinessOwnerID:   in.BusinessOwnerID,
		TechLeadID:        in.TechLeadID,
		Currency:          strings.ToUpper(in.Currency),
		Cost:              in.Cost.Round(2),
		BusinessValue:     in.BusinessValue.Round(2),
		BusinessValueType: in.BusinessValueType,
		TeamMemberIDs:     uniqueIDs(in.TeamMemberIDs),
		ImpactedSystems:   names,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
	}

	var result Result
	err = shared.Guard(ctx, s.idempotency, idemKey, idempotencyModule, func(ctx context.Context) error {
		created, err := s.backend.CreateProject(ctx, t.Token, t.TenantID, req)
		if err != nil {
			return err
		}
		result = Result{Project: created, Systems: systems}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.ref.Invalidate(ctx, t)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "project.create", "project",
		strconv.FormatInt(result.Project.ID, 10), map[string]any{
			"code":    req.Code,
			"systems": names,
		}))
	return result, nil
}
