package nats

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"

	"github.com/code-payments/step-tracker/pkg/kv"
)

// DefaultBucket is the JetStream key-value bucket step counts are kept in
const DefaultBucket = "step_tracker"

type store struct {
	bucket jetstream.KeyValue
}

// New returns a kv.Store backed by a JetStream key-value bucket, creating the
// bucket when it doesn't exist yet
func New(ctx context.Context, js jetstream.JetStream, bucket string) (kv.Store, error) {
	if len(bucket) == 0 {
		bucket = DefaultBucket
	}

	handle, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		handle, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "Day partitioned step counts",
			History:     1,
		})
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open kv bucket %s", bucket)
	}

	return &store{bucket: handle}, nil
}

// Get implements kv.Store.Get
func (s *store) Get(ctx context.Context, key string) (string, error) {
	if err := kv.ValidateKey(key); err != nil {
		return "", err
	}

	entry, err := s.bucket.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", kv.ErrNotFound
	} else if err != nil {
		return "", errors.Wrap(err, "failed to get key from bucket")
	}
	return string(entry.Value()), nil
}

// Set implements kv.Store.Set
func (s *store) Set(ctx context.Context, key, value string) error {
	if err := kv.ValidateKey(key); err != nil {
		return err
	}

	if _, err := s.bucket.Put(ctx, key, []byte(value)); err != nil {
		return errors.Wrap(err, "failed to put key into bucket")
	}
	return nil
}

func (s *store) reset(ctx context.Context) error {
	keys, err := s.bucket.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil
	} else if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.bucket.Purge(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
