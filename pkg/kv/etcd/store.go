package etcd

import (
	"context"
	"path"

	"github.com/pkg/errors"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/step-tracker/pkg/kv"
)

// DefaultPrefix namespaces all step tracker keys within a shared etcd cluster
const DefaultPrefix = "/step-tracker/kv"

type store struct {
	client *v3.Client
	prefix string
}

// New returns a new etcd kv.Store. Keys are stored under prefix, which
// defaults to DefaultPrefix when empty.
func New(client *v3.Client, prefix string) kv.Store {
	if len(prefix) == 0 {
		prefix = DefaultPrefix
	}

	return &store{
		client: client,
		prefix: prefix,
	}
}

// Get implements kv.Store.Get
func (s *store) Get(ctx context.Context, key string) (string, error) {
	if err := kv.ValidateKey(key); err != nil {
		return "", err
	}

	resp, err := s.client.Get(ctx, s.path(key))
	if err != nil {
		return "", errors.Wrap(err, "failed to get key from etcd")
	}

	if len(resp.Kvs) == 0 {
		return "", kv.ErrNotFound
	}
	return string(resp.Kvs[0].Value), nil
}

// Set implements kv.Store.Set
func (s *store) Set(ctx context.Context, key, value string) error {
	if err := kv.ValidateKey(key); err != nil {
		return err
	}

	_, err := s.client.Put(ctx, s.path(key), value)
	if err != nil {
		return errors.Wrap(err, "failed to put key into etcd")
	}
	return nil
}

func (s *store) path(key string) string {
	return path.Join(s.prefix, key)
}

func (s *store) reset(ctx context.Context) error {
	_, err := s.client.Delete(ctx, s.prefix+"/", v3.WithPrefix())
	return err
}
