package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// MemoryStorage keeps hashes in process memory with the same semantics as RedisStorage.
type MemoryStorage struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

type memoryHash map[string]string

func (s *MemoryStorage) load(key string) (memoryHash, time.Duration, bool) {
	v, expiresAt, ok := s.cache.GetWithExpiration(key)
	if !ok {
		return nil, 0, false
	}
	ttl := gocache.NoExpiration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			return nil, 0, false
		}
	}
	return v.(memoryHash), ttl, true
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	s.mu.Lock()
	hash, _, ok := s.load(key)
	if !ok || len(hash) == 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	snapshot := make(map[string]string, len(hash))
	for k, v := range hash {
		snapshot[k] = v
	}
	s.mu.Unlock()
	return redis.NewMapStringStringResult(snapshot, nil).Scan(val)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	fields, err := flattenFields(val)
	if err != nil {
		return err
	}
	if expiresIn <= 0 {
		expiresIn = gocache.NoExpiration
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, memoryHash(fields), expiresIn)
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, ok := s.load(key); !ok {
		return ErrNotFound
	}
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStorage) SetAttr(ctx context.Context, key string, field string, val any) error {
	str, err := cast.ToStringE(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ttl, ok := s.load(key)
	if !ok {
		return ErrNotFound
	}
	hash[field] = str
	s.cache.Set(key, hash, ttl)
	return nil
}

func (s *MemoryStorage) GetAttr(ctx context.Context, key, field string, val any) error {
	s.mu.Lock()
	hash, _, ok := s.load(key)
	var str string
	if ok {
		str, ok = hash[field]
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return redis.NewStringResult(str, nil).Scan(val)
}

func (s *MemoryStorage) IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ttl, ok := s.load(key)
	if !ok {
		return 0, ErrNotFound
	}
	current, err := cast.ToInt64E(hash[field])
	if hash[field] != "" && err != nil {
		return 0, fmt.Errorf("hash value is not an integer: %w", err)
	}
	current += delta
	hash[field] = cast.ToString(current)
	s.cache.Set(key, hash, ttl)
	return current, nil
}

// flattenFields converts a struct with `redis` tags or a map into hash fields.
func flattenFields(val any) (map[string]string, error) {
	if m, ok := val.(map[string]any); ok {
		fields := make(map[string]string, len(m))
		for k, v := range m {
			str, err := cast.ToStringE(v)
			if err != nil {
				return nil, err
			}
			fields[k] = str
		}
		return fields, nil
	}

	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil value")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("unsupported hash value %T", val)
	}

	rt := rv.Type()
	fields := make(map[string]string, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		tag := rt.Field(i).Tag.Get("redis")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		fv := rv.Field(i)
		if fv.Kind() == reflect.Bool {
			fields[name] = "0"
			if fv.Bool() {
				fields[name] = "1"
			}
			continue
		}
		str, err := cast.ToStringE(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = str
	}
	return fields, nil
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}
