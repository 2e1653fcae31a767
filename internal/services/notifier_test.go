package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	published []models.OrderStatusChange
}

func (p *flakyPublisher) Publish(_ context.Context, change models.OrderStatusChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, change)
	return nil
}

func (p *flakyPublisher) snapshot() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, len(p.published)
}

func TestStatusNotifierPublishes(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 4, 1)
	publisher := &flakyPublisher{}
	notifier := NewStatusNotifier(publisher, queue)

	notifier.Notify(models.OrderStatusChange{OrderID: "ORD-1", OrderStatus: models.OrderConfirmed})
	queue.Shutdown()

	_, published := publisher.snapshot()
	require.Equal(t, 1, published)
	assert.Equal(t, "ORD-1", publisher.published[0].OrderID)
}

func TestStatusNotifierRetries(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 4, 1)
	defer queue.Shutdown()

	publisher := &flakyPublisher{failures: 2}
	notifier := NewStatusNotifier(publisher, queue)
	notifier.retryDelay = 10 * time.Millisecond

	notifier.Notify(models.OrderStatusChange{OrderID: "ORD-1"})

	assert.Eventually(t, func() bool {
		_, published := publisher.snapshot()
		return published == 1
	}, 2*time.Second, 10*time.Millisecond)

	attempts, _ := publisher.snapshot()
	assert.Equal(t, 3, attempts)
}

func TestStatusNotifierGivesUp(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 4, 1)
	defer queue.Shutdown()

	publisher := &flakyPublisher{failures: 100}
	notifier := NewStatusNotifier(publisher, queue)
	notifier.retryDelay = 5 * time.Millisecond
	notifier.maxAttempts = 2

	notifier.Notify(models.OrderStatusChange{OrderID: "ORD-1"})

	assert.Eventually(t, func() bool {
		attempts, _ := publisher.snapshot()
		return attempts == 2
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	attempts, published := publisher.snapshot()
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 0, published)
}
