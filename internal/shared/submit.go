package shared

import (
	"context"
	"log/slog"
)

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log AuditLog) error
}

// IdempotencyPort guards submissions against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Guard runs fn under an idempotency key. An empty key or a nil store runs
// fn unguarded. The key is released again when fn fails so the user can
// retry the submission.
func Guard(ctx context.Context, store IdempotencyPort, key, module string, fn func(context.Context) error) error {
	if store == nil || key == "" {
		return fn(ctx)
	}
	if err := store.CheckAndInsert(ctx, key, module); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = store.Delete(ctx, key, module)
		return err
	}
	return nil
}

// RecordAudit writes an audit entry and only logs failures.
func RecordAudit(ctx context.Context, audit AuditPort, logger *slog.Logger, entry AuditLog) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, entry); err != nil && logger != nil {
		logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}
