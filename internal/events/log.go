package events

import (
	"context"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"go.uber.org/zap"
)

// LogPublisher пишет изменения статусов в журнал. Используется, когда брокер не настроен.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, change models.OrderStatusChange) error {
	logger.Log.Info("order status changed",
		zap.String("orderID", change.OrderID),
		zap.String("userID", change.UserID),
		zap.String("previousOrderStatus", string(change.PreviousOrderStatus)),
		zap.String("orderStatus", string(change.OrderStatus)),
		zap.String("previousPaymentStatus", string(change.PreviousPaymentStatus)),
		zap.String("paymentStatus", string(change.PaymentStatus)),
		zap.String("trigger", change.Trigger),
		zap.Time("changedAt", change.ChangedAt),
	)
	return nil
}
