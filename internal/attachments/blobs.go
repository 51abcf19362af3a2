package attachments

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/po-console/internal/shared"
)

const blobPrefix = "console:staged:"

// BlobStore keeps the content of staged files between requests. Entries are
// owned by a session and expire with it.
type BlobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBlobStore constructs a BlobStore.
func NewBlobStore(client *redis.Client, ttl time.Duration) *BlobStore {
	return &BlobStore{client: client, ttl: ttl}
}

func blobKey(owner, id string) string {
	return blobPrefix + owner + ":" + id
}

// Put stores the file content.
func (b *BlobStore) Put(ctx context.Context, owner string, f File) error {
	return b.client.Set(ctx, blobKey(owner, f.ID), f.Data, b.ttl).Err()
}

// Load fills Data of every file from the store.
func (b *BlobStore) Load(ctx context.Context, owner string, files []File) ([]File, error) {
	out := make([]File, len(files))
	for i, f := range files {
		data, err := b.client.Get(ctx, blobKey(owner, f.ID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, shared.NewValidationError("attachments", f.Name+" is no longer available, attach it again")
		}
		if err != nil {
			return nil, err
		}
		f.Data = data
		out[i] = f
	}
	return out, nil
}

// Delete drops stored content. Missing entries are ignored.
func (b *BlobStore) Delete(ctx context.Context, owner string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = blobKey(owner, id)
	}
	return b.client.Del(ctx, keys...).Err()
}
