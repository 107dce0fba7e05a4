package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		accepted, err := q.Enqueue(Job{Type: "noop"})
		require.NoError(t, err)
		assert.True(t, accepted)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueCoalescesPendingKeys(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("coalesce", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})

	_, err := q.Enqueue(Job{Key: "warm"})
	require.ErrorIs(t, err, ErrNotStarted)

	// No workers run, so accepted jobs stay buffered.
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.started = true

	accepted, err := q.Enqueue(Job{Key: "warm"})
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = q.Enqueue(Job{Key: "warm"})
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 1, q.Pending())

	q.release(Job{Key: "warm"})
	accepted, err = q.Enqueue(Job{Key: "warm"})
	require.NoError(t, err)
	assert.True(t, accepted)
	close(block)
	q.cancel()
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	q := NewQueue("full", func(ctx context.Context, job Job) error { return nil }, QueueConfig{Workers: 1, BufferSize: 1})
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.started = true
	defer q.cancel()

	_, err := q.Enqueue(Job{Type: "a"})
	require.NoError(t, err)
	accepted, err := q.Enqueue(Job{Type: "b"})
	assert.False(t, accepted)
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("boom")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Type: "flaky"})
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}
