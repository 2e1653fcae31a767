package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/go-shop-payments/internal/database"
	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxApplyAttempts ограничивает число перечитываний заказа при конкурентной записи.
const maxApplyAttempts = 3

// reconcilerStorage хранилище заказов с условным обновлением.
type reconcilerStorage interface {
	FindOrder(ctx context.Context, orderID string) (*database.OrderDB, error)
	FindOrderByIntentID(ctx context.Context, intentID string) (*database.OrderDB, error)
	FindOrderBySessionID(ctx context.Context, sessionID string) (*database.OrderDB, error)
	UpdateOrderState(ctx context.Context, current, next database.OrderDB) (bool, error)
}

type statusNotifier interface {
	Notify(change models.OrderStatusChange)
}

// Reconciler единственная точка изменения статусов заказа.
// Все пути (вебхук, подтверждение клиентом, страница успеха, ручное обновление,
// возврат) применяют переходы через него.
type Reconciler struct {
	storage  reconcilerStorage
	notifier statusNotifier
	tracer   trace.Tracer
	now      func() time.Time
}

func NewReconciler(storage reconcilerStorage, notifier statusNotifier) *Reconciler {
	return &Reconciler{
		storage:  storage,
		notifier: notifier,
		tracer:   otel.Tracer("storefront/services"),
		now:      time.Now,
	}
}

// orderRef ссылки, по которым ищется заказ, в порядке приоритета.
type orderRef struct {
	orderID   string
	intentID  string
	sessionID string
}

func (r *Reconciler) locate(ctx context.Context, ref orderRef) (*database.OrderDB, error) {
	lookups := []struct {
		value string
		find  func(context.Context, string) (*database.OrderDB, error)
	}{
		{ref.orderID, r.storage.FindOrder},
		{ref.intentID, r.storage.FindOrderByIntentID},
		{ref.sessionID, r.storage.FindOrderBySessionID},
	}

	for _, lookup := range lookups {
		if lookup.value == "" {
			continue
		}

		order, err := lookup.find(ctx, lookup.value)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}

	return nil, ErrOrderNotFound
}

// apply читает заказ, планирует переход и записывает его условным обновлением.
// Если запись проиграла гонку, заказ перечитывается и переход планируется заново.
func (r *Reconciler) apply(ctx context.Context, ref orderRef, kind string, trigger Trigger, decide plan) (models.Order, bool, error) {
	ctx, span := r.tracer.Start(ctx, "Business reconcile "+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", ref.orderID),
		attribute.String("payment_intent.id", ref.intentID),
		attribute.String("trigger", string(trigger)),
	)

	fields := []zap.Field{
		zap.String("orderID", ref.orderID),
		zap.String("intentID", ref.intentID),
		zap.String("sessionID", ref.sessionID),
		zap.String("event", kind),
		zap.String("trigger", string(trigger)),
	}

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		current, err := r.locate(ctx, ref)
		if err != nil {
			span.RecordError(err)
			return models.Order{}, false, err
		}

		d, err := decide(current.Order)
		if err != nil {
			span.RecordError(err)
			return current.Order, false, err
		}

		if !d.apply {
			logger.Log.Info("order left unchanged", append(fields, zap.String("reason", d.reason))...)
			return current.Order, false, nil
		}

		applied, err := r.storage.UpdateOrderState(ctx, *current, database.OrderDB{Order: d.next})
		if err != nil {
			span.RecordError(err)
			return current.Order, false, fmt.Errorf("ошибка записи состояния заказа %s: %w", current.ID, err)
		}

		if !applied {
			logger.Log.Warn("order changed concurrently, retrying", append(fields, zap.Int("attempt", attempt))...)
			continue
		}

		next := d.next
		next.Version = current.Version + 1
		next.UpdatedAt = utils.NewRFC3339Date(r.now())

		logger.Log.Info("order state updated", append(fields,
			zap.String("orderStatus", string(next.OrderStatus)),
			zap.String("paymentStatus", string(next.PaymentStatus)),
		)...)

		r.notify(current.Order, next, trigger)

		return next, true, nil
	}

	span.RecordError(ErrConcurrentUpdate)
	return models.Order{}, false, ErrConcurrentUpdate
}

func (r *Reconciler) notify(previous, next models.Order, trigger Trigger) {
	if r.notifier == nil {
		return
	}
	if previous.OrderStatus == next.OrderStatus && previous.PaymentStatus == next.PaymentStatus {
		return
	}

	r.notifier.Notify(models.OrderStatusChange{
		OrderID:               next.ID,
		UserID:                next.UserID,
		PreviousOrderStatus:   previous.OrderStatus,
		OrderStatus:           next.OrderStatus,
		PreviousPaymentStatus: previous.PaymentStatus,
		PaymentStatus:         next.PaymentStatus,
		Trigger:               string(trigger),
		ChangedAt:             r.now().UTC(),
	})
}

// ApplyEvent применяет разобранное событие шлюза.
// Для событий, которые не меняют заказ (возвраты, неизвестные типы), возвращает nil.
func (r *Reconciler) ApplyEvent(ctx context.Context, event models.PaymentEvent, trigger Trigger) (*models.Order, error) {
	var (
		order models.Order
		err   error
	)

	switch e := event.(type) {
	case models.IntentSucceeded:
		order, _, err = r.apply(ctx, orderRef{orderID: e.OrderID, intentID: e.IntentID},
			e.EventType(), trigger, planIntentSucceeded(e.IntentID, trigger))
	case models.IntentFailed:
		if e.FailureMessage != "" {
			logger.Log.Info("payment attempt failed",
				zap.String("orderID", e.OrderID),
				zap.String("intentID", e.IntentID),
				zap.String("reason", e.FailureMessage),
			)
		}
		order, _, err = r.apply(ctx, orderRef{orderID: e.OrderID, intentID: e.IntentID},
			e.EventType(), trigger, planIntentFailed(e.IntentID))
	case models.CheckoutCompleted:
		order, _, err = r.apply(ctx, orderRef{orderID: e.OrderID, intentID: e.IntentID, sessionID: e.SessionID},
			e.EventType(), trigger, planCheckoutCompleted(e.SessionID, e.IntentID, e.Paid, trigger))
	case models.RefundCreated:
		// Статус возврата выставляет ProcessRefund, событие только фиксируется в журнале
		logger.Log.Info("refund reported by gateway",
			zap.String("eventID", e.ID),
			zap.String("refundID", e.RefundID),
			zap.String("intentID", e.IntentID),
			zap.String("amount", e.Amount.StringFixed(2)),
		)
		return nil, nil
	case models.UnhandledEvent:
		logger.Log.Debug("unhandled payment event", zap.String("eventID", e.ID), zap.String("eventType", e.Type))
		return nil, nil
	default:
		return nil, fmt.Errorf("неизвестный тип события %T", event)
	}

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// ApplyManualUpdate применяет ручную смену статуса.
func (r *Reconciler) ApplyManualUpdate(ctx context.Context, orderID string, update models.StatusUpdate) (models.Order, bool, error) {
	return r.apply(ctx, orderRef{orderID: orderID}, "manual_update", TriggerManual, planManualUpdate(update, r.now()))
}

// ApplyRefund учитывает выполненный возврат.
func (r *Reconciler) ApplyRefund(ctx context.Context, orderID string, refund models.Refund, amount decimal.Decimal, reason string) (models.Order, error) {
	order, _, err := r.apply(ctx, orderRef{orderID: orderID}, "refund", TriggerRefund, planRefund(refund, amount, reason))
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		logger.Log.Error("refund was not recorded on order",
			zap.String("orderID", orderID),
			zap.String("refundID", refund.ID),
			zap.Error(err),
		)
	}
	return order, err
}
