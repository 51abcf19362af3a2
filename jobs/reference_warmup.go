package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/po-console/internal/backend"
	jobmetrics "github.com/odyssey-erp/po-console/internal/jobs"
	"github.com/odyssey-erp/po-console/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WarmupOrganizationTypes are the organization lists the forms look up.
var WarmupOrganizationTypes = []string{"CUSTOMER", "SUPPLIER"}

// Warmer is the subset of the reference service the warmup drives.
type Warmer interface {
	PurchaseOrders(ctx context.Context, t shared.Tenant) ([]backend.PurchaseOrder, error)
	Users(ctx context.Context, t shared.Tenant) ([]backend.User, error)
	Projects(ctx context.Context, t shared.Tenant) ([]backend.Project, error)
	Systems(ctx context.Context, t shared.Tenant) ([]backend.System, error)
	OrganizationsByType(ctx context.Context, t shared.Tenant, orgType string) ([]backend.Organization, error)
}

// ReferenceWarmupJob loads the reference datasets of each tenant so the
// first form opened after a cache expiry is served from Redis.
type ReferenceWarmupJob struct {
	Reference Warmer
	Tenants   []string
	Token     string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReferenceWarmupJob wires dependencies for the warmup handler.
func NewReferenceWarmupJob(ref Warmer, tenants []string, token string, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReferenceWarmupJob {
	return &ReferenceWarmupJob{
		Reference: ref,
		Tenants:   tenants,
		Token:     token,
		Logger:    logger,
		Metrics:   metrics,
	}
}

// Handle processes reference warmup tasks. A dataset failure fails the run
// so asynq retries it; the other datasets are still loaded.
func (j *ReferenceWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reference == nil {
		return errors.New("reference warmup: handler not configured")
	}
	var payload ReferenceWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("reference warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskReferenceWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if strings.TrimSpace(j.Token) == "" {
		logger.Warn("no service token configured, skipping warmup")
		return nil
	}
	tenants := j.selectTenants(payload.Tenants)
	if len(tenants) == 0 {
		logger.Info("no tenants configured for warmup")
		return nil
	}

	start := time.Now()
	var errs []error
	for _, id := range tenants {
		count, err := j.warmTenant(ctx, shared.Tenant{Token: j.Token, TenantID: id})
		j.metrics().AddWarmed(id, count)
		if err != nil {
			logger.Error("warm tenant", slog.String("tenant_id", id), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		logger.Debug("warmed tenant", slog.String("tenant_id", id), slog.Int("datasets", count))
	}
	logger.Info("completed reference warmup", slog.Int("tenants", len(tenants)), slog.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}

// warmTenant returns how many datasets loaded.
func (j *ReferenceWarmupJob) warmTenant(ctx context.Context, t shared.Tenant) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	loads := []struct {
		name string
		fn   func() error
	}{
		{"purchase_orders", func() error { _, err := j.Reference.PurchaseOrders(ctx, t); return err }},
		{"users", func() error { _, err := j.Reference.Users(ctx, t); return err }},
		{"projects", func() error { _, err := j.Reference.Projects(ctx, t); return err }},
		{"systems", func() error { _, err := j.Reference.Systems(ctx, t); return err }},
	}
	for _, orgType := range WarmupOrganizationTypes {
		loads = append(loads, struct {
			name string
			fn   func() error
		}{"organizations:" + orgType, func() error { _, err := j.Reference.OrganizationsByType(ctx, t, orgType); return err }})
	}

	warmed := 0
	var errs []error
	for _, l := range loads {
		if err := l.fn(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s %s: %w", t.TenantID, l.name, err))
			continue
		}
		warmed++
	}
	return warmed, errors.Join(errs...)
}

// selectTenants keeps the requested tenants that are configured.
func (j *ReferenceWarmupJob) selectTenants(requested []string) []string {
	configured := make([]string, 0, len(j.Tenants))
	seen := map[string]bool{}
	for _, id := range j.Tenants {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		configured = append(configured, id)
	}
	if len(requested) == 0 {
		return configured
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if seen[strings.TrimSpace(id)] {
			out = append(out, strings.TrimSpace(id))
		}
	}
	return out
}

func (j *ReferenceWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReferenceWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReferenceWarmup))
}

func (j *ReferenceWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
