package store

import (
	"context"
	"time"
)

// Store is a typed view over one key namespace of a Storage.
type Store[T any] struct {
	storage Storage
	prefix  string
}

func (s *Store[T]) key(id string) string {
	return s.prefix + id
}

func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var obj T
	err := s.storage.Get(ctx, s.key(id), &obj)
	return obj, err
}

// Set replaces the record. A non-positive expiresIn keeps it until deleted.
func (s *Store[T]) Set(ctx context.Context, id string, val T, expiresIn time.Duration) error {
	return s.storage.Set(ctx, s.key(id), &val, expiresIn)
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	return s.storage.Delete(ctx, s.key(id))
}

func (s *Store[T]) SetAttr(ctx context.Context, id string, field string, val any) error {
	return s.storage.SetAttr(ctx, s.key(id), field, val)
}

func (s *Store[T]) GetAttr(ctx context.Context, id, field string, val any) error {
	return s.storage.GetAttr(ctx, s.key(id), field, val)
}

func (s *Store[T]) IncrAttr(ctx context.Context, id string, field string, delta int64) (int64, error) {
	return s.storage.IncrAttr(ctx, s.key(id), field, delta)
}

// New returns a store whose keys are prefix followed by the record id.
func New[T any](storage Storage, prefix string) *Store[T] {
	return &Store[T]{
		storage: storage,
		prefix:  prefix,
	}
}
