package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make([]string, 0)
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "noop"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}

	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	mu.Unlock()
	assert.Eventually(t, func() bool { return q.Stats().Processed == 3 }, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var attempts int32
	dropped := make(chan Job, 1)
	q := NewQueue("flaky", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("unavailable")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		OnDrop:     func(job Job, err error) { dropped <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "x"}))

	select {
	case job := <-dropped:
		assert.Equal(t, "x", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dropped")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	stats := q.Stats()
	assert.Equal(t, uint64(2), stats.Retried)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "early"}))
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("tiny", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	assert.Eventually(t, func() bool { return q.Stats().Pending == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "2"}))
	err := q.Enqueue(Job{ID: "3"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestBackoffCapped(t *testing.T) {
	q := NewQueue("backoff", nil, QueueConfig{RetryDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond})
	assert.Equal(t, 100*time.Millisecond, q.backoff(1))
	assert.Equal(t, 200*time.Millisecond, q.backoff(2))
	assert.Equal(t, 300*time.Millisecond, q.backoff(3))
	assert.Equal(t, 300*time.Millisecond, q.backoff(8))
}
