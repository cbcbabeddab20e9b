package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task names understood by the worker.
const (
	TaskDiscoverSites = "discover_sites"
	TaskProcessURL    = "process_url"
	TaskRetryFailed   = "retry_failed"
	TaskCleanupFailed = "cleanup_failed"
)

// ArgURL is the process_url argument.
const ArgURL = "url"

const (
	DefaultKey = "queue:tasks"
	pollWait   = 2 * time.Second
)

// Task is one unit of work as it travels through Redis.
type Task struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Args       map[string]string `json:"args,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// Handle identifies an enqueued task.
type Handle struct {
	ID   uuid.UUID
	Name string
}

// Known reports whether name is a task the worker can run.
func Known(name string) bool {
	switch name {
	case TaskDiscoverSites, TaskProcessURL, TaskRetryFailed, TaskCleanupFailed:
		return true
	}
	return false
}

// RedisQueue is a FIFO list: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	rdb  *redis.Client
	key  string
	wait time.Duration
	own  bool
}

// New wraps an existing client. Close leaves the client open.
func New(rdb *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{rdb: rdb, key: key, wait: pollWait}
}

// Dial connects to Redis at addr and owns the connection.
func Dial(addr, key string) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	q := New(rdb, key)
	q.own = true
	return q, nil
}

func (q *RedisQueue) Close() error {
	if q.own {
		return q.rdb.Close()
	}
	return nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, name string, args map[string]string) (Handle, error) {
	if !Known(name) {
		return Handle{}, fmt.Errorf("unknown task %q", name)
	}
	task := Task{
		ID:         uuid.New(),
		Name:       name,
		Args:       args,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(task)
	if err != nil {
		return Handle{}, err
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return Handle{}, fmt.Errorf("enqueue %s: %w", name, err)
	}
	return Handle{ID: task.ID, Name: name}, nil
}

// Dequeue blocks until a task arrives or ctx is done.
func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}

		// BRPOP returns [key, value]
		res, err := q.rdb.BRPop(ctx, q.wait, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			return Task{}, fmt.Errorf("dequeue: %w", err)
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return Task{}, fmt.Errorf("decode task: %w", err)
		}
		return task, nil
	}
}

// Len reports how many tasks are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
