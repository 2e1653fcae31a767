package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var change = models.OrderStatusChange{
	OrderID:               "ORD-1",
	UserID:                "user-1",
	PreviousOrderStatus:   models.OrderPending,
	OrderStatus:           models.OrderConfirmed,
	PreviousPaymentStatus: models.PaymentPending,
	PaymentStatus:         models.PaymentPaid,
	Trigger:               "webhook",
	ChangedAt:             time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
}

func TestNewRecord(t *testing.T) {
	record, err := newRecord(context.Background(), "orders.status", change)
	require.NoError(t, err)

	assert.Equal(t, "orders.status", record.Topic)
	assert.Equal(t, []byte("ORD-1"), record.Key)
	assert.Empty(t, record.Headers)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, "confirmed", decoded["orderStatus"])
	assert.Equal(t, "pending", decoded["previousPaymentStatus"])
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["changedAt"])
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	previous := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = previous })

	require.NoError(t, LogPublisher{}.Publish(context.Background(), change))

	entries := logs.FilterMessage("order status changed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ORD-1", fields["orderID"])
	assert.Equal(t, "paid", fields["paymentStatus"])
}
