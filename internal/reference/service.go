// Package reference serves the read-only datasets the console forms are
// built from: purchase orders, milestones, users, projects, organizations
// and systems. Loads are cached per tenant in Redis and coalesced.
package reference

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Upstream is the subset of the backend client reference data is read from.
type Upstream interface {
	PurchaseOrders(ctx context.Context, token string) ([]backend.PurchaseOrder, error)
	PurchaseOrder(ctx context.Context, token string, poID int64) (backend.PurchaseOrder, error)
	Milestones(ctx context.Context, token string, poID int64) ([]backend.Milestone, error)
	MilestonesForPO(ctx context.Context, token string, poID int64) ([]backend.Milestone, error)
	MilestonesForConsumption(ctx context.Context, token string, poID int64) ([]backend.Milestone, error)
	Users(ctx context.Context, token, tenantID string) ([]backend.User, error)
	Projects(ctx context.Context, token, tenantID string) ([]backend.Project, error)
	InvoiceProjects(ctx context.Context, token string) ([]backend.Project, error)
	OrganizationsByType(ctx context.Context, token, orgType string) ([]backend.Organization, error)
	Organizations(ctx context.Context, token string) ([]backend.Organization, error)
	Systems(ctx context.Context, token string) ([]backend.System, error)
}

// MilestoneScope selects which milestone listing is read.
type MilestoneScope string

const (
	MilestonesAll         MilestoneScope = "all"
	MilestonesSRN         MilestoneScope = "srn"
	MilestonesConsumption MilestoneScope = "consumption"
)

// LoadTimeout bounds one shared upstream load.
const LoadTimeout = 30 * time.Second

// Service exposes typed, cached reference queries.
type Service struct {
	upstream Upstream
	cache    *Cache
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService constructs the reference service. cache may be nil.
func NewService(upstream Upstream, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{upstream: upstream, cache: cache, logger: logger}
}

// load answers dataset from the cache or the loader. Concurrent misses for
// the same key share one upstream call. Failed loads are not cached.
func load[T any](ctx context.Context, s *Service, t shared.Tenant, dataset string, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	metricName := strings.SplitN(dataset, ":", 2)[0]
	key, err := s.cache.BuildKey(ctx, t.TenantID, dataset)
	if err != nil {
		s.logger.Warn("reference cache key", slog.String("dataset", dataset), slog.Any("error", err))
		key = "reference:" + t.TenantID + ":" + dataset
	}

	var cached T
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("reference cache read", slog.String("key", key), slog.Any("error", err))
	}
	if hit {
		recordHit(metricName)
		return cached, nil
	}
	recordMiss(metricName)

	resultCh := s.group.DoChan(key, func() (interface{}, error) {
		// The flight is shared, so it must outlive the caller that started it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		start := time.Now()
		value, err := loader(loadCtx)
		observeLoad(metricName, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(loadCtx, key, value); err != nil {
			s.logger.Warn("reference cache write", slog.String("key", key), slog.Any("error", err))
		}
		return value, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate drops every cached dataset of the tenant.
func (s *Service) Invalidate(ctx context.Context, t shared.Tenant) {
	if err := s.cache.Bump(ctx, t.TenantID); err != nil {
		s.logger.Warn("reference invalidate", slog.String("tenant", t.TenantID), slog.Any("error", err))
	}
}

// PurchaseOrders lists the tenant's POs.
func (s *Service) PurchaseOrders(ctx context.Context, t shared.Tenant) ([]backend.PurchaseOrder, error) {
	return load(ctx, s, t, "purchase_orders", func(ctx context.Context) ([]backend.PurchaseOrder, error) {
		return s.upstream.PurchaseOrders(ctx, t.Token)
	})
}

// PurchaseOrder returns one PO.
func (s *Service) PurchaseOrder(ctx context.Context, t shared.Tenant, poID int64) (backend.PurchaseOrder, error) {
	return load(ctx, s, t, "purchase_order:"+strconv.FormatInt(poID, 10), func(ctx context.Context) (backend.PurchaseOrder, error) {
		return s.upstream.PurchaseOrder(ctx, t.Token, poID)
	})
}

// Milestones lists the milestones of a PO for the given scope.
func (s *Service) Milestones(ctx context.Context, t shared.Tenant, poID int64, scope MilestoneScope) ([]backend.Milestone, error) {
	fetch := s.upstream.Milestones
	switch scope {
	case MilestonesSRN:
		fetch = s.upstream.MilestonesForPO
	case MilestonesConsumption:
		fetch = s.upstream.MilestonesForConsumption
	default:
		scope = MilestonesAll
	}
	dataset := "milestones:" + string(scope) + ":" + strconv.FormatInt(poID, 10)
	return load(ctx, s, t, dataset, func(ctx context.Context) ([]backend.Milestone, error) {
		return fetch(ctx, t.Token, poID)
	})
}

// Users lists the tenant's users.
func (s *Service) Users(ctx context.Context, t shared.Tenant) ([]backend.User, error) {
	return load(ctx, s, t, "users", func(ctx context.Context) ([]backend.User, error) {
		return s.upstream.Users(ctx, t.Token, t.TenantID)
	})
}

// Projects lists the tenant's projects.
func (s *Service) Projects(ctx context.Context, t shared.Tenant) ([]backend.Project, error) {
	return load(ctx, s, t, "projects", func(ctx context.Context) ([]backend.Project, error) {
		return s.upstream.Projects(ctx, t.Token, t.TenantID)
	})
}

// InvoiceProjects lists the projects invoices can be raised for.
func (s *Service) InvoiceProjects(ctx context.Context, t shared.Tenant) ([]backend.Project, error) {
	return load(ctx, s, t, "invoice_projects", func(ctx context.Context) ([]backend.Project, error) {
		return s.upstream.InvoiceProjects(ctx, t.Token)
	})
}

// OrganizationsByType lists organizations of one type.
func (s *Service) OrganizationsByType(ctx context.Context, t shared.Tenant, orgType string) ([]backend.Organization, error) {
	return load(ctx, s, t, "organizations:"+strings.ToUpper(orgType), func(ctx context.Context) ([]backend.Organization, error) {
		return s.upstream.OrganizationsByType(ctx, t.Token, orgType)
	})
}

// Organizations lists every organization of the tenant.
func (s *Service) Organizations(ctx context.Context, t shared.Tenant) ([]backend.Organization, error) {
	return load(ctx, s, t, "organizations:tenant", func(ctx context.Context) ([]backend.Organization, error) {
		return s.upstream.Organizations(ctx, t.Token)
	})
}

// organizationsOrTenant falls back to the tenant wide list when the typed
// lookup fails.
func (s *Service) organizationsOrTenant(ctx context.Context, t shared.Tenant, orgType string) ([]backend.Organization, error) {
	orgs, err := s.OrganizationsByType(ctx, t, orgType)
	if err == nil || ctx.Err() != nil {
		return orgs, err
	}
	s.logger.Warn("organizations by type failed, using tenant list", slog.String("type", orgType), slog.Any("error", err))
	return s.Organizations(ctx, t)
}

// Systems lists the impacted systems of the tenant.
func (s *Service) Systems(ctx context.Context, t shared.Tenant) ([]backend.System, error) {
	return load(ctx, s, t, "systems", func(ctx context.Context) ([]backend.System, error) {
		return s.upstream.Systems(ctx, t.Token)
	})
}

// FormRequest names the datasets a form needs.
type FormRequest struct {
	PurchaseOrders    bool
	Users             bool
	Projects          bool
	InvoiceProjects   bool
	Systems           bool
	OrganizationTypes []string
}

// FormData carries the datasets of a form. Datasets that failed to load
// are empty, never nil.
type FormData struct {
	PurchaseOrders  []backend.PurchaseOrder           `json:"purchaseOrders,omitempty"`
	Users           []backend.User                    `json:"users,omitempty"`
	Projects        []backend.Project                 `json:"projects,omitempty"`
	InvoiceProjects []backend.Project                 `json:"invoiceProjects,omitempty"`
	Systems         []backend.System                  `json:"systems,omitempty"`
	Organizations   map[string][]backend.Organization `json:"organizations,omitempty"`
}

// LoadForm fetches the requested datasets concurrently. A failing dataset
// is logged and left empty; only cancellation fails the call.
func (s *Service) LoadForm(ctx context.Context, t shared.Tenant, req FormRequest) (FormData, error) {
	out := FormData{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	if req.PurchaseOrders {
		out.PurchaseOrders = []backend.PurchaseOrder{}
		g.Go(func() error {
			out.PurchaseOrders = orEmpty(s, "purchase_orders", out.PurchaseOrders, func() ([]backend.PurchaseOrder, error) {
				return s.PurchaseOrders(gctx, t)
			})
			return nil
		})
	}
	if req.Users {
		out.Users = []backend.User{}
		g.Go(func() error {
			out.Users = orEmpty(s, "users", out.Users, func() ([]backend.User, error) { return s.Users(gctx, t) })
			return nil
		})
	}
	if req.Projects {
		out.Projects = []backend.Project{}
		g.Go(func() error {
			out.Projects = orEmpty(s, "projects", out.Projects, func() ([]backend.Project, error) { return s.Projects(gctx, t) })
			return nil
		})
	}
	if req.InvoiceProjects {
		out.InvoiceProjects = []backend.Project{}
		g.Go(func() error {
			out.InvoiceProjects = orEmpty(s, "invoice_projects", out.InvoiceProjects, func() ([]backend.Project, error) { return s.InvoiceProjects(gctx, t) })
			return nil
		})
	}
	if req.Systems {
		out.Systems = []backend.System{}
		g.Go(func() error {
			out.Systems = orEmpty(s, "systems", out.Systems, func() ([]backend.System, error) { return s.Systems(gctx, t) })
			return nil
		})
	}
	orgs := make([][]backend.Organization, len(req.OrganizationTypes))
	for i, orgType := range req.OrganizationTypes {
		orgs[i] = []backend.Organization{}
		g.Go(func() error {
			orgs[i] = orEmpty(s, "organizations:"+orgType, orgs[i], func() ([]backend.Organization, error) {
				return s.organizationsOrTenant(gctx, t, orgType)
			})
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return FormData{}, err
	}
	if len(req.OrganizationTypes) > 0 {
		out.Organizations = make(map[string][]backend.Organization, len(req.OrganizationTypes))
		for i, orgType := range req.OrganizationTypes {
			out.Organizations[strings.ToUpper(orgType)] = orgs[i]
		}
	}
	return out, nil
}

func orEmpty[T any](s *Service, dataset string, empty []T, fetch func() ([]T, error)) []T {
	items, err := fetch()
	if err != nil {
		s.logger.Warn("reference load failed", slog.String("dataset", dataset), slog.Any("error", err))
		return empty
	}
	if items == nil {
		return empty
	}
	return items
}
