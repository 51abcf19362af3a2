package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	retention time.Duration
	err       error
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	f.retention = olderThan
	return f.err
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	store := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(store, 0, discardLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, DefaultKeyRetention, store.retention)

	job = NewIdempotencyCleanupJob(store, time.Hour, discardLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, time.Hour, store.retention)
}

func TestIdempotencyCleanupPropagatesFailure(t *testing.T) {
	boom := errors.New("db down")
	job := NewIdempotencyCleanupJob(&fakeCleaner{err: boom}, time.Hour, discardLogger(), nil)
	require.ErrorIs(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()), boom)
}
