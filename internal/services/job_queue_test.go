package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueueRunsJobs(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 10, 2)

	var done int32
	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Enqueue(func(ctx context.Context) {
			atomic.AddInt32(&done, 1)
		}))
	}

	queue.Shutdown()
	assert.Equal(t, int32(5), atomic.LoadInt32(&done))
}

func TestJobQueueRejectsWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewJobQueueService(ctx, 1, 1)
	queue.Pause()

	started := make(chan struct{})
	require.NoError(t, queue.Enqueue(func(ctx context.Context) { close(started) }))

	// Воркер забрал первое задание и ждет снятия паузы, буфер снова свободен
	assert.Eventually(t, func() bool {
		return queue.Enqueue(func(ctx context.Context) {}) == nil
	}, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, queue.Enqueue(func(ctx context.Context) {}), ErrJobQueueIsFull)

	queue.Resume()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job was not resumed")
	}
}

func TestJobQueueRejectsAfterShutdown(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 1, 1)
	queue.Shutdown()
	queue.Shutdown()

	assert.ErrorIs(t, queue.Enqueue(func(ctx context.Context) {}), ErrJobQueueClosed)
}

func TestJobQueueScheduleJob(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 1, 1)
	defer queue.Shutdown()

	done := make(chan struct{})
	queue.ScheduleJob(func(ctx context.Context) { close(done) }, 10*time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled job did not run")
	}
}
