package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Renal37/go-shop-payments/internal/database"
	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const requiredField = "обязательное поле"

// paymentStorage хранилище, нужное платежному сервису.
type paymentStorage interface {
	reconcilerStorage
	AttachPaymentRefs(ctx context.Context, orderID, intentID, sessionID string) (bool, error)
}

// PaymentService связывает HTTP-слой, платежный шлюз и Reconciler.
type PaymentService struct {
	storage         paymentStorage
	gateway         models.PaymentGateway
	reconciler      *Reconciler
	allowSimulation bool
	statusGroup     singleflight.Group
}

func NewPaymentService(
	storage paymentStorage,
	gateway models.PaymentGateway,
	reconciler *Reconciler,
	allowSimulation bool,
) *PaymentService {
	return &PaymentService{
		storage:         storage,
		gateway:         gateway,
		reconciler:      reconciler,
		allowSimulation: allowSimulation,
	}
}

// ownedOrder возвращает заказ, если он принадлежит пользователю или пользователь администратор.
// Чужой заказ неотличим от отсутствующего.
func (s *PaymentService) ownedOrder(ctx context.Context, user models.User, orderID string) (*database.OrderDB, error) {
	order, err := s.storage.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (!user.IsAdmin() && order.UserID != user.ID) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func checkPayable(order models.Order, totalAmount *decimal.Decimal) error {
	if order.OrderStatus != models.OrderPending || order.PaymentStatus != models.PaymentPending {
		return fmt.Errorf("%w: заказ %s в статусе %s/%s", ErrInvalidTransition, order.ID, order.OrderStatus, order.PaymentStatus)
	}

	var v validator
	v.check(totalAmount == nil || totalAmount.Equal(order.TotalAmount),
		"totalAmount", "сумма не совпадает с суммой заказа "+order.TotalAmount.StringFixed(2))
	return v.err()
}

func validatePaymentRequest(req models.PaymentRequest) error {
	var v validator
	v.check(strings.TrimSpace(req.OrderID) != "", "orderId", requiredField)
	return v.err()
}

func (s *PaymentService) attach(ctx context.Context, orderID, intentID, sessionID string) error {
	attached, err := s.storage.AttachPaymentRefs(ctx, orderID, intentID, sessionID)
	if err != nil {
		return err
	}
	if !attached {
		logger.Log.Warn("payment references not attached, order is no longer pending",
			zap.String("orderID", orderID),
			zap.String("intentID", intentID),
			zap.String("sessionID", sessionID),
		)
	}
	return nil
}

// CreateIntent создает платежное намерение для заказа или возвращает уже существующее.
func (s *PaymentService) CreateIntent(ctx context.Context, user models.User, req models.PaymentRequest) (models.IntentResponse, error) {
	if err := validatePaymentRequest(req); err != nil {
		return models.IntentResponse{}, err
	}

	order, err := s.ownedOrder(ctx, user, req.OrderID)
	if err != nil {
		return models.IntentResponse{}, err
	}
	if err := checkPayable(order.Order, req.TotalAmount); err != nil {
		return models.IntentResponse{}, err
	}

	if intentID := order.IntentID(); intentID != "" {
		existing, err := s.gateway.RetrieveIntent(ctx, intentID)
		if err != nil {
			return models.IntentResponse{}, err
		}
		if existing.Status != models.IntentStatusCanceled {
			logger.Log.Info("reusing payment intent", zap.String("orderID", order.ID), zap.String("intentID", existing.ID))
			return intentResponse(existing), nil
		}
	}

	intent, err := s.gateway.CreateIntent(ctx, order.Order)
	if err != nil {
		logger.Log.Error("failed to create payment intent", zap.String("orderID", order.ID), zap.Error(err))
		return models.IntentResponse{}, err
	}

	if err := s.attach(ctx, order.ID, intent.ID, ""); err != nil {
		return models.IntentResponse{}, err
	}

	logger.Log.Info("payment intent created", zap.String("orderID", order.ID), zap.String("intentID", intent.ID))
	return intentResponse(intent), nil
}

func intentResponse(intent models.Intent) models.IntentResponse {
	return models.IntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	}
}

// CreateCheckout создает сессию оплаты на стороне шлюза.
func (s *PaymentService) CreateCheckout(ctx context.Context, user models.User, req models.PaymentRequest) (models.CheckoutResponse, error) {
	if err := validatePaymentRequest(req); err != nil {
		return models.CheckoutResponse{}, err
	}

	order, err := s.ownedOrder(ctx, user, req.OrderID)
	if err != nil {
		return models.CheckoutResponse{}, err
	}
	if err := checkPayable(order.Order, req.TotalAmount); err != nil {
		return models.CheckoutResponse{}, err
	}

	session, err := s.gateway.CreateHostedSession(ctx, order.Order, user)
	if err != nil {
		logger.Log.Error("failed to create checkout session", zap.String("orderID", order.ID), zap.Error(err))
		return models.CheckoutResponse{}, err
	}

	if err := s.attach(ctx, order.ID, session.IntentID, session.ID); err != nil {
		return models.CheckoutResponse{}, err
	}

	logger.Log.Info("checkout session created", zap.String("orderID", order.ID), zap.String("sessionID", session.ID))
	return models.CheckoutResponse{SessionID: session.ID, SessionURL: session.URL}, nil
}

// ConfirmPayment сверяет намерение со шлюзом и фиксирует оплату.
func (s *PaymentService) ConfirmPayment(ctx context.Context, user models.User, req models.ConfirmRequest) (*models.Order, error) {
	var v validator
	v.check(strings.TrimSpace(req.PaymentIntentID) != "", "paymentIntentId", requiredField)
	v.check(strings.TrimSpace(req.OrderID) != "", "orderId", requiredField)
	if err := v.err(); err != nil {
		return nil, err
	}

	if _, err := s.ownedOrder(ctx, user, req.OrderID); err != nil {
		return nil, err
	}

	intent, err := s.gateway.RetrieveIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.OrderID != req.OrderID {
		logger.Log.Warn("payment intent belongs to another order",
			zap.String("orderID", req.OrderID),
			zap.String("intentID", intent.ID),
			zap.String("intentOrderID", intent.OrderID),
		)
		return nil, ErrOrderMismatch
	}
	if intent.Status != models.IntentStatusSucceeded {
		return nil, fmt.Errorf("%w: статус намерения %s", ErrPaymentNotCompleted, intent.Status)
	}

	return s.reconciler.ApplyEvent(ctx, models.IntentSucceeded{
		ID:       "confirm_" + intent.ID,
		IntentID: intent.ID,
		OrderID:  req.OrderID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
	}, TriggerConfirm)
}

// GetPaymentStatus читает состояние намерения из шлюза.
// Одновременные запросы по одному намерению объединяются в один вызов шлюза.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, user models.User, intentID string) (models.PaymentStatusResponse, error) {
	var v validator
	v.check(strings.TrimSpace(intentID) != "", "paymentIntentId", requiredField)
	if err := v.err(); err != nil {
		return models.PaymentStatusResponse{}, err
	}

	result, err, _ := s.statusGroup.Do(intentID, func() (interface{}, error) {
		return s.gateway.RetrieveIntent(context.WithoutCancel(ctx), intentID)
	})
	if err != nil {
		return models.PaymentStatusResponse{}, err
	}
	intent := result.(models.Intent)

	if !user.IsAdmin() {
		order, err := s.reconciler.locate(ctx, orderRef{orderID: intent.OrderID, intentID: intent.ID})
		if err != nil {
			return models.PaymentStatusResponse{}, err
		}
		if order.UserID != user.ID {
			return models.PaymentStatusResponse{}, ErrOrderNotFound
		}
	}

	return models.PaymentStatusResponse{
		PaymentIntentID: intent.ID,
		Status:          intent.Status,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		OrderID:         intent.OrderID,
	}, nil
}

// HandleCheckoutSuccess обрабатывает возврат покупателя со страницы шлюза.
// Параметрам запроса не доверяем: сессия перечитывается из шлюза.
func (s *PaymentService) HandleCheckoutSuccess(ctx context.Context, sessionID, orderID string) (*models.Order, error) {
	var v validator
	v.check(strings.TrimSpace(sessionID) != "", "session_id", requiredField)
	v.check(strings.TrimSpace(orderID) != "", "order_id", requiredField)
	if err := v.err(); err != nil {
		return nil, err
	}

	session, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OrderID != orderID {
		logger.Log.Warn("checkout session belongs to another order",
			zap.String("orderID", orderID),
			zap.String("sessionID", sessionID),
			zap.String("sessionOrderID", session.OrderID),
		)
		return nil, ErrOrderMismatch
	}
	if session.PaymentStatus != models.SessionStatusPaid {
		return nil, fmt.Errorf("%w: статус сессии %s", ErrPaymentNotCompleted, session.PaymentStatus)
	}

	return s.reconciler.ApplyEvent(ctx, models.CheckoutCompleted{
		ID:        "redirect_" + session.ID,
		SessionID: session.ID,
		IntentID:  session.IntentID,
		OrderID:   orderID,
		Paid:      true,
	}, TriggerRedirect)
}

// HandleWebhook проверяет подпись и применяет событие.
// Ошибкой завершается только проверка подписи, остальные сбои журналируются,
// чтобы шлюз не повторял доставку бесконечно.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifySignature(payload, signature)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSignature) {
			logger.Log.Warn("webhook rejected", zap.Error(err))
			return err
		}
		logger.Log.Error("failed to decode webhook event", zap.Error(err))
		return nil
	}

	fields := []zap.Field{zap.String("eventID", event.EventID()), zap.String("eventType", event.EventType())}
	logger.Log.Info("webhook event received", fields...)

	if _, err := s.reconciler.ApplyEvent(ctx, event, TriggerWebhook); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			logger.Log.Warn("order for webhook event not found, event dropped", fields...)
			return nil
		}
		logger.Log.Error("failed to apply webhook event", append(fields, zap.Error(err))...)
	}

	return nil
}

// ProcessRefund выполняет возврат через шлюз и отражает его в заказе.
// Без суммы возвращается весь остаток.
func (s *PaymentService) ProcessRefund(ctx context.Context, orderID string, req models.RefundRequest) (models.RefundResponse, error) {
	order, err := s.storage.FindOrder(ctx, orderID)
	if err != nil {
		return models.RefundResponse{}, err
	}
	if order == nil {
		return models.RefundResponse{}, ErrOrderNotFound
	}

	intentID := order.IntentID()
	if intentID == "" {
		return models.RefundResponse{}, ErrNoPaymentOnOrder
	}
	if order.PaymentStatus != models.PaymentPaid && order.PaymentStatus != models.PaymentPartialRefund {
		return models.RefundResponse{}, fmt.Errorf("%w: оплата в статусе %s", ErrInvalidTransition, order.PaymentStatus)
	}

	remaining := order.RemainingAmount()
	amount := remaining
	var gatewayAmount *decimal.Decimal

	if req.Amount != nil {
		var v validator
		v.check(req.Amount.IsPositive(), "amount", "сумма возврата должна быть больше нуля")
		v.check(hasCents(*req.Amount), "amount", centsOnly)
		v.check(req.Amount.LessThanOrEqual(remaining), "amount", "сумма возврата превышает остаток "+remaining.StringFixed(2))
		if err := v.err(); err != nil {
			return models.RefundResponse{}, err
		}
		amount = *req.Amount
		gatewayAmount = &amount
	} else if order.RefundedAmount.IsPositive() {
		gatewayAmount = &remaining
	}

	reason := ""
	if req.Reason != nil {
		reason = strings.TrimSpace(*req.Reason)
	}

	refund, err := s.gateway.Refund(ctx, intentID, gatewayAmount, reason)
	if err != nil {
		logger.Log.Error("gateway refund failed", zap.String("orderID", orderID), zap.String("intentID", intentID), zap.Error(err))
		return models.RefundResponse{}, err
	}

	updated, err := s.reconciler.ApplyRefund(ctx, orderID, refund, amount, reason)
	if err != nil {
		return models.RefundResponse{}, err
	}

	return models.RefundResponse{
		RefundID: refund.ID,
		Amount:   amount,
		Status:   refund.Status,
		Order:    updated,
	}, nil
}

// UpdateOrderStatus ручная смена статуса администратором.
func (s *PaymentService) UpdateOrderStatus(ctx context.Context, orderID string, update models.StatusUpdate) (*models.Order, error) {
	var v validator
	v.check(update.Status.IsValid(), "status", "неизвестный статус заказа")
	fulfillment := update.Status == models.OrderShipping || update.Status == models.OrderDelivered
	v.check(update.TrackingNumber == nil || fulfillment, "trackingNumber", "допустим только для статусов shipping и delivered")
	v.check(update.DeliveryDate == nil || fulfillment, "deliveryDate", "допустима только для статусов shipping и delivered")
	if err := v.err(); err != nil {
		return nil, err
	}

	order, _, err := s.reconciler.ApplyManualUpdate(ctx, orderID, update)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// SimulateEvent подает событие так, как если бы оно пришло вебхуком.
// Доступно только вне production.
func (s *PaymentService) SimulateEvent(ctx context.Context, event models.SimulatedEvent) (*models.Order, error) {
	if !s.allowSimulation {
		return nil, ErrSimulationDisabled
	}

	var v validator
	v.check(strings.TrimSpace(event.OrderID) != "", "orderId", requiredField)
	v.check(strings.TrimSpace(event.IntentID) != "", "paymentIntentId", requiredField)

	id := "sim_" + uuid.NewString()
	var paymentEvent models.PaymentEvent

	switch event.Type {
	case models.EventIntentSucceeded:
		paymentEvent = models.IntentSucceeded{ID: id, IntentID: event.IntentID, OrderID: event.OrderID}
	case models.EventIntentFailed:
		paymentEvent = models.IntentFailed{ID: id, IntentID: event.IntentID, OrderID: event.OrderID, FailureMessage: event.Message}
	case models.EventCheckoutCompleted:
		v.check(strings.TrimSpace(event.SessionID) != "", "sessionId", requiredField)
		paymentEvent = models.CheckoutCompleted{ID: id, SessionID: event.SessionID, IntentID: event.IntentID, OrderID: event.OrderID, Paid: true}
	default:
		v.check(false, "type", "неподдерживаемый тип события")
	}

	if err := v.err(); err != nil {
		return nil, err
	}

	logger.Log.Info("simulating payment event", zap.String("eventID", id), zap.String("eventType", event.Type), zap.String("orderID", event.OrderID))
	return s.reconciler.ApplyEvent(ctx, paymentEvent, TriggerSimulation)
}
