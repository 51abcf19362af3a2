package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReferenceWarmup refreshes the reference cache of the configured tenants.
	TaskReferenceWarmup = "reference:warmup"
	// WarmupCron is the schedule the worker registers for the warmup.
	WarmupCron = "*/30 * * * *"
)

// ReferenceWarmupPayload optionally narrows a warmup run to some tenants.
// An empty list warms every configured tenant.
type ReferenceWarmupPayload struct {
	Tenants []string `json:"tenants,omitempty"`
}

// NewReferenceWarmupTask constructs the warmup task.
func NewReferenceWarmupTask(tenants ...string) (*asynq.Task, error) {
	data, err := json.Marshal(ReferenceWarmupPayload{Tenants: tenants})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReferenceWarmup, data), nil
}

const (
	// TaskIdempotencyCleanup prunes old submission keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// CleanupCron runs the prune once a day.
	CleanupCron = "0 3 * * *"
)

// NewIdempotencyCleanupTask constructs the prune task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
