package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := New(rdb, "")
	q.wait = 50 * time.Millisecond
	return q, mr
}

func TestRedisQueue_FIFO(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, TaskProcessURL, map[string]string{ArgURL: "https://example.com/news/a"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, TaskCleanupFailed, nil)
	require.NoError(t, err)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists(DefaultKey))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, task.ID)
	assert.Equal(t, TaskProcessURL, task.Name)
	assert.Equal(t, "https://example.com/news/a", task.Args[ArgURL])
	assert.False(t, task.EnqueuedAt.IsZero())

	task, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, TaskCleanupFailed, task.Name)
}

func TestRedisQueue_RejectsUnknownTask(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), "send_newsletter", nil)
	assert.Error(t, err)
}

func TestRedisQueue_DequeueStopsOnCancel(t *testing.T) {
	q, _ := newTestQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisQueue_CorruptPayload(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Lpush(DefaultKey, "{not json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode task")
}
