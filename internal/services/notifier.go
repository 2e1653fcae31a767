package services

import (
	"context"
	"errors"
	"time"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"go.uber.org/zap"
)

const (
	notifyMaxAttempts = 5
	notifyRetryDelay  = 2 * time.Second
)

// StatusPublisher доставляет уведомления о смене статуса заказа во внешнюю систему.
type StatusPublisher interface {
	Publish(ctx context.Context, change models.OrderStatusChange) error
}

type jobQueue interface {
	Enqueue(job Job) error
	ScheduleJob(job Job, delay time.Duration)
	PauseAndResume(delay time.Duration)
}

// StatusNotifier публикует изменения статусов асинхронно через очередь заданий.
// Сбой публикации не влияет на уже записанный переход.
type StatusNotifier struct {
	publisher   StatusPublisher
	queue       jobQueue
	maxAttempts int
	retryDelay  time.Duration
}

func NewStatusNotifier(publisher StatusPublisher, queue jobQueue) *StatusNotifier {
	return &StatusNotifier{
		publisher:   publisher,
		queue:       queue,
		maxAttempts: notifyMaxAttempts,
		retryDelay:  notifyRetryDelay,
	}
}

// Notify ставит уведомление в очередь и сразу возвращает управление.
func (n *StatusNotifier) Notify(change models.OrderStatusChange) {
	if err := n.queue.Enqueue(n.publishJob(change, 1)); err != nil {
		logger.Log.Warn("status change dropped",
			zap.String("orderID", change.OrderID),
			zap.String("orderStatus", string(change.OrderStatus)),
			zap.String("paymentStatus", string(change.PaymentStatus)),
			zap.Error(err),
		)
	}
}

func (n *StatusNotifier) publishJob(change models.OrderStatusChange, attempt int) Job {
	return func(ctx context.Context) {
		err := n.publisher.Publish(ctx, change)
		if err == nil {
			return
		}

		fields := []zap.Field{
			zap.String("orderID", change.OrderID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}

		if errors.Is(err, context.Canceled) || attempt >= n.maxAttempts {
			logger.Log.Error("failed to publish status change", fields...)
			return
		}

		logger.Log.Warn("status change publish failed, retrying", fields...)
		// Брокер недоступен: даем ему время и повторяем позже
		n.queue.PauseAndResume(n.retryDelay)
		n.queue.ScheduleJob(n.publishJob(change, attempt+1), n.retryDelay)
	}
}
