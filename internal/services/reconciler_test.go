package services

import (
	"context"
	"testing"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEventIsIdempotent(t *testing.T) {
	storage := newMemoryStorage(pendingOrder())
	notifier := &recordingNotifier{}
	reconciler := NewReconciler(storage, notifier)

	event := models.IntentSucceeded{ID: "evt_1", IntentID: "pi_1", OrderID: "ORD-1"}

	order, err := reconciler.ApplyEvent(context.Background(), event, TriggerWebhook)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, models.OrderConfirmed, order.OrderStatus)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pi_1", order.IntentID())
	assert.Equal(t, int64(2), order.Version)

	replayed, err := reconciler.ApplyEvent(context.Background(), event, TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, replayed.OrderStatus)

	stored := storage.get("ORD-1")
	assert.Len(t, stored.Notes, 1)
	assert.Equal(t, 1, storage.updates)
	assert.Equal(t, 1, notifier.count())

	change := notifier.changes[0]
	assert.Equal(t, models.OrderPending, change.PreviousOrderStatus)
	assert.Equal(t, models.OrderConfirmed, change.OrderStatus)
	assert.Equal(t, string(TriggerWebhook), change.Trigger)
}

func TestApplyEventFindsOrderByIntent(t *testing.T) {
	order := pendingOrder()
	order.PaymentIntentID = strPtr("pi_1")
	storage := newMemoryStorage(order)
	reconciler := NewReconciler(storage, nil)

	updated, err := reconciler.ApplyEvent(context.Background(),
		models.IntentSucceeded{ID: "evt_1", IntentID: "pi_1"}, TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", updated.ID)
	assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
}

func TestApplyEventFailureAfterSuccessIsIgnored(t *testing.T) {
	storage := newMemoryStorage(paidOrder())
	notifier := &recordingNotifier{}
	reconciler := NewReconciler(storage, notifier)

	order, err := reconciler.ApplyEvent(context.Background(),
		models.IntentFailed{ID: "evt_2", IntentID: "pi_1", OrderID: "ORD-1"}, TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, 0, storage.updates)
	assert.Equal(t, 0, notifier.count())
}

func TestApplyEventUnknownOrder(t *testing.T) {
	reconciler := NewReconciler(newMemoryStorage(), nil)

	_, err := reconciler.ApplyEvent(context.Background(),
		models.IntentSucceeded{ID: "evt_1", IntentID: "pi_9", OrderID: "ORD-9"}, TriggerWebhook)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestApplyEventIgnoresInformationalEvents(t *testing.T) {
	storage := newMemoryStorage(paidOrder())
	reconciler := NewReconciler(storage, nil)

	for _, event := range []models.PaymentEvent{
		models.RefundCreated{ID: "evt_3", RefundID: "re_1", IntentID: "pi_1"},
		models.UnhandledEvent{ID: "evt_4", Type: "customer.created"},
	} {
		order, err := reconciler.ApplyEvent(context.Background(), event, TriggerWebhook)
		require.NoError(t, err)
		assert.Nil(t, order)
	}
	assert.Equal(t, 0, storage.updates)
}

func TestApplyRetriesOnConcurrentUpdate(t *testing.T) {
	storage := newMemoryStorage(pendingOrder())
	conflicts := 1
	storage.beforeUpdate = func(s *memoryStorage, orderID string) {
		if conflicts > 0 {
			conflicts--
			s.bump(orderID)
		}
	}
	reconciler := NewReconciler(storage, nil)

	order, err := reconciler.ApplyEvent(context.Background(),
		models.IntentSucceeded{ID: "evt_1", IntentID: "pi_1", OrderID: "ORD-1"}, TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Len(t, storage.get("ORD-1").Notes, 1)
}

func TestApplyGivesUpAfterRepeatedConflicts(t *testing.T) {
	storage := newMemoryStorage(pendingOrder())
	storage.beforeUpdate = func(s *memoryStorage, orderID string) {
		s.bump(orderID)
	}
	reconciler := NewReconciler(storage, nil)

	_, err := reconciler.ApplyEvent(context.Background(),
		models.IntentSucceeded{ID: "evt_1", IntentID: "pi_1", OrderID: "ORD-1"}, TriggerWebhook)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, models.PaymentPending, storage.get("ORD-1").PaymentStatus)
}
