package services

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/utils"
	"github.com/shopspring/decimal"
)

// Trigger путь, по которому в сервис пришел сигнал об изменении заказа.
type Trigger string

const (
	TriggerWebhook    Trigger = "webhook"
	TriggerConfirm    Trigger = "confirm"
	TriggerRedirect   Trigger = "checkout_success"
	TriggerSimulation Trigger = "simulation"
	TriggerManual     Trigger = "manual"
	TriggerRefund     Trigger = "refund"
)

// decision результат планирования перехода.
// apply == false означает, что событие не меняет заказ, reason поясняет почему.
type decision struct {
	next   models.Order
	apply  bool
	reason string
}

// plan вычисляет следующее состояние заказа по текущему, не обращаясь к хранилищу.
type plan func(order models.Order) (decision, error)

func skip(reason string) (decision, error) {
	return decision{reason: reason}, nil
}

func cloneOrder(order models.Order) models.Order {
	next := order
	next.Notes = slices.Clone(order.Notes)
	next.Items = slices.Clone(order.Items)
	return next
}

func succeededNote(trigger Trigger, intentID string) string {
	switch trigger {
	case TriggerConfirm:
		return "Payment confirmed by client. Intent: " + intentID
	case TriggerSimulation:
		return "Payment simulated manually. Intent: " + intentID
	}
	return "Payment completed automatically via webhook. Intent: " + intentID
}

func checkoutNote(trigger Trigger, sessionID string) string {
	if trigger == TriggerRedirect {
		return "Checkout confirmed on success page. Session: " + sessionID
	}
	return "Checkout completed via webhook. Session: " + sessionID
}

// planIntentSucceeded фиксирует успешную оплату намерения intentID.
// Заказ подтверждается только из статуса pending, оплата никогда не понижается.
func planIntentSucceeded(intentID string, trigger Trigger) plan {
	return func(order models.Order) (decision, error) {
		if intentID == "" {
			return skip("event has no payment intent")
		}

		switch {
		case order.PaymentStatus == models.PaymentPaid && order.IntentID() == intentID:
			return skip("payment already recorded for this intent")
		case order.PaymentStatus.IsSettled():
			return skip(fmt.Sprintf("payment already %s with intent %s", order.PaymentStatus, order.IntentID()))
		}

		next := cloneOrder(order)
		next.PaymentStatus = models.PaymentPaid
		next.PaymentIntentID = &intentID
		if order.OrderStatus == models.OrderPending {
			next.OrderStatus = models.OrderConfirmed
		}
		next.Notes = append(next.Notes, succeededNote(trigger, intentID))

		return decision{next: next, apply: true}, nil
	}
}

// planIntentFailed фиксирует неудачную попытку оплаты.
func planIntentFailed(intentID string) plan {
	return func(order models.Order) (decision, error) {
		if intentID == "" {
			return skip("event has no payment intent")
		}

		current := order.IntentID()
		switch {
		case order.PaymentStatus.IsSettled():
			return skip(fmt.Sprintf("payment already %s, failure ignored", order.PaymentStatus))
		case current != "" && current != intentID:
			return skip("failure belongs to a superseded intent " + intentID)
		case order.PaymentStatus == models.PaymentFailed:
			return skip("failure already recorded for this intent")
		}

		next := cloneOrder(order)
		next.PaymentStatus = models.PaymentFailed
		next.PaymentIntentID = &intentID
		if order.OrderStatus == models.OrderPending {
			next.OrderStatus = models.OrderCancelled
		}
		next.Notes = append(next.Notes, "Payment failed. Intent: "+intentID)

		return decision{next: next, apply: true}, nil
	}
}

// planCheckoutCompleted фиксирует оплату через страницу шлюза.
func planCheckoutCompleted(sessionID, intentID string, paid bool, trigger Trigger) plan {
	return func(order models.Order) (decision, error) {
		switch {
		case !paid:
			return skip("checkout session is not paid")
		case intentID == "":
			return skip("checkout session has no payment intent")
		case order.PaymentStatus == models.PaymentPaid &&
			(order.IntentID() == intentID || order.GatewaySessionID() == sessionID):
			return skip("checkout already recorded")
		case order.PaymentStatus.IsSettled():
			return skip(fmt.Sprintf("payment already %s with intent %s", order.PaymentStatus, order.IntentID()))
		}

		next := cloneOrder(order)
		next.PaymentStatus = models.PaymentPaid
		next.PaymentIntentID = &intentID
		next.SessionID = &sessionID
		if order.OrderStatus == models.OrderPending {
			next.OrderStatus = models.OrderConfirmed
		}
		next.Notes = append(next.Notes, checkoutNote(trigger, sessionID))

		return decision{next: next, apply: true}, nil
	}
}

// planManualUpdate применяет ручную смену статуса администратором.
// Из конечного статуса возможен только переход delivered -> returned,
// на основном пути статус не может двигаться назад.
func planManualUpdate(update models.StatusUpdate, now time.Time) plan {
	return func(order models.Order) (decision, error) {
		target := update.Status
		from := order.OrderStatus

		if target != from {
			switch {
			case from.IsTerminal() && !(from == models.OrderDelivered && target == models.OrderReturned):
				return decision{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
			case target == models.OrderReturned && from != models.OrderDelivered:
				return decision{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
			case target.Rank() >= 0 && target.Rank() < from.Rank():
				return decision{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
			}
		}

		next := cloneOrder(order)
		changed := false

		if target != from {
			next.OrderStatus = target
			next.Notes = append(next.Notes, fmt.Sprintf("Status changed manually: %s -> %s", from, target))
			changed = true

			switch target {
			case models.OrderDelivered:
				if order.PaymentStatus != models.PaymentPaid {
					next.PaymentStatus = models.PaymentPaid
				}
				if order.DeliveryDate == nil && update.DeliveryDate == nil {
					date := utils.NewRFC3339Date(now)
					next.DeliveryDate = &date
				}
			case models.OrderCancelled:
				if order.PaymentStatus == models.PaymentPaid {
					next.PaymentStatus = models.PaymentRefunded
				}
			}
		}

		if update.TrackingNumber != nil {
			tracking := strings.TrimSpace(*update.TrackingNumber)
			if order.TrackingNumber == nil || *order.TrackingNumber != tracking {
				next.TrackingNumber = &tracking
				changed = true
			}
		}
		if update.DeliveryDate != nil {
			date := *update.DeliveryDate
			next.DeliveryDate = &date
			changed = true
		}
		if update.Note != nil && strings.TrimSpace(*update.Note) != "" {
			next.Notes = append(next.Notes, strings.TrimSpace(*update.Note))
			changed = true
		}

		if !changed {
			return skip("nothing to update")
		}

		return decision{next: next, apply: true}, nil
	}
}

// planRefund учитывает уже выполненный в шлюзе возврат amount.
func planRefund(refund models.Refund, amount decimal.Decimal, reason string) plan {
	return func(order models.Order) (decision, error) {
		if order.IntentID() == "" {
			return decision{}, ErrNoPaymentOnOrder
		}
		if order.PaymentStatus != models.PaymentPaid && order.PaymentStatus != models.PaymentPartialRefund {
			return decision{}, fmt.Errorf("%w: оплата в статусе %s", ErrInvalidTransition, order.PaymentStatus)
		}

		next := cloneOrder(order)
		next.RefundedAmount = order.RefundedAmount.Add(amount)
		if next.RefundedAmount.LessThan(order.TotalAmount) {
			next.PaymentStatus = models.PaymentPartialRefund
		} else {
			next.PaymentStatus = models.PaymentRefunded
		}
		next.OrderStatus = models.OrderReturned

		note := fmt.Sprintf("Refund %s processed: %s %s", refund.ID, amount.StringFixed(2), strings.ToUpper(order.Currency))
		if reason != "" {
			note += ". Reason: " + reason
		}
		next.Notes = append(next.Notes, note)

		return decision{next: next, apply: true}, nil
	}
}
