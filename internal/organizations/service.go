// Package organizations backs the searchable, creatable customer and
// supplier selector.
package organizations

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Organization types known to the backend.
const (
	TypeCustomer = "CUSTOMER"
	TypeSupplier = "SUPPLIER"
)

// Source reads organization lists.
type Source interface {
	OrganizationsByType(ctx context.Context, t shared.Tenant, orgType string) ([]backend.Organization, error)
	Organizations(ctx context.Context, t shared.Tenant) ([]backend.Organization, error)
}

// Selection is a resolved selector value. Created marks names typed by
// the user that are not in the fetched list; the selector never persists
// them.
type Selection struct {
	Value   string               `json:"value"`
	Record  backend.Organization `json:"record"`
	Created bool                 `json:"created"`
	Address string               `json:"address"`
}

// Service resolves selector input against the remote list.
type Service struct {
	source Source
	logger *slog.Logger
}

// NewService constructs the selector service.
func NewService(source Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger}
}

// List fetches organizations of orgType, falling back to the tenant wide
// list when the typed endpoint fails. A failing fallback yields an empty
// list.
func (s *Service) List(ctx context.Context, t shared.Tenant, orgType string) []backend.Organization {
	orgType = strings.ToUpper(strings.TrimSpace(orgType))
	if orgType != "" {
		orgs, err := s.source.OrganizationsByType(ctx, t, orgType)
		if err == nil {
			return nonNil(orgs)
		}
		s.logger.Warn("organizations by type failed, using tenant list", slog.String("type", orgType), slog.Any("error", err))
	}
	orgs, err := s.source.Organizations(ctx, t)
	if err != nil {
		s.logger.Warn("organizations tenant list failed", slog.Any("error", err))
		return []backend.Organization{}
	}
	return nonNil(orgs)
}

// Search filters List by a case-insensitive name substring.
func (s *Service) Search(ctx context.Context, t shared.Tenant, orgType, q string) []backend.Organization {
	orgs := s.List(ctx, t, orgType)
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return orgs
	}
	out := make([]backend.Organization, 0, len(orgs))
	for _, org := range orgs {
		if strings.Contains(strings.ToLower(org.Name), needle) {
			out = append(out, org)
		}
	}
	return out
}

// ResolveSingle maps one selected value to its full record. A blank value
// resolves to an empty selection.
func (s *Service) ResolveSingle(ctx context.Context, t shared.Tenant, orgType, value string) Selection {
	value = strings.TrimSpace(value)
	if value == "" {
		return Selection{}
	}
	return resolve(s.List(ctx, t, orgType), orgType, value)
}

// ResolveMulti maps each selected value to its record, dropping blanks and
// repeats while keeping order.
func (s *Service) ResolveMulti(ctx context.Context, t shared.Tenant, orgType string, values []string) []Selection {
	orgs := s.List(ctx, t, orgType)
	seen := make(map[string]struct{}, len(values))
	out := make([]Selection, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		key := strings.ToLower(value)
		if value == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, resolve(orgs, orgType, value))
	}
	return out
}

func resolve(orgs []backend.Organization, orgType, value string) Selection {
	for _, org := range orgs {
		if strings.EqualFold(strings.TrimSpace(org.Name), value) {
			return Selection{Value: org.Name, Record: org, Address: Address(org)}
		}
	}
	record := backend.Organization{Name: value, Type: strings.ToUpper(strings.TrimSpace(orgType))}
	return Selection{Value: value, Record: record, Created: true}
}

// Address joins the postal fields of org into one comma separated line.
func Address(org backend.Organization) string {
	parts := []string{org.AddressLine1, org.AddressLine2, org.City, org.State, org.PostalCode, org.Country}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func nonNil(orgs []backend.Organization) []backend.Organization {
	if orgs == nil {
		return []backend.Organization{}
	}
	return orgs
}
