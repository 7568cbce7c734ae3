package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrQueueEmpty = errors.New("queue empty")
	ErrQueueFull  = errors.New("queue full")
)

type Kind string

const (
	KindOTPCode             Kind = "otp_code"
	KindAttestationSigned   Kind = "attestation_signed"
	KindAttestationReturned Kind = "attestation_returned"
)

// Job is one outbound notification.
type Job struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	To         string            `json:"to"`
	Data       map[string]string `json:"data"`
	Attempts   int               `json:"attempts"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

type Queue interface {
	Enqueue(ctx context.Context, job *Job) error
	// Dequeue blocks up to timeout and returns ErrQueueEmpty when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}

// RedisQueue is a list where producers LPUSH and workers BRPOP.
type RedisQueue struct {
	rdb redis.UniversalClient
	key string
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, payload).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func NewRedisQueue(rdb redis.UniversalClient, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

// MemoryQueue is an in-process buffered queue.
type MemoryQueue struct {
	jobs chan Job
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	select {
	case q.jobs <- *job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-timer.C:
		return nil, ErrQueueEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan Job, size)}
}
