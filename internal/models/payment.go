package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы событий платежного шлюза, которые меняют состояние заказа.
const (
	EventIntentSucceeded   = "payment_intent.succeeded"
	EventIntentFailed      = "payment_intent.payment_failed"
	EventCheckoutCompleted = "checkout.session.completed"
	EventRefundCreated     = "refund.created"
	EventChargeRefunded    = "charge.refunded"
)

// Статусы объектов шлюза, на которые опирается сверка.
const (
	IntentStatusSucceeded = "succeeded"
	IntentStatusCanceled  = "canceled"
	SessionStatusPaid     = "paid"
)

// PaymentEvent событие жизненного цикла платежа, уже проверенное и разобранное.
// Набор вариантов закрыт: IntentSucceeded, IntentFailed, CheckoutCompleted,
// RefundCreated и UnhandledEvent.
type PaymentEvent interface {
	EventID() string
	EventType() string
	paymentEvent()
}

type IntentSucceeded struct {
	ID       string
	IntentID string
	OrderID  string
	Amount   decimal.Decimal
	Currency string
}

func (e IntentSucceeded) EventID() string   { return e.ID }
func (e IntentSucceeded) EventType() string { return EventIntentSucceeded }
func (IntentSucceeded) paymentEvent()       {}

type IntentFailed struct {
	ID             string
	IntentID       string
	OrderID        string
	FailureMessage string
}

func (e IntentFailed) EventID() string   { return e.ID }
func (e IntentFailed) EventType() string { return EventIntentFailed }
func (IntentFailed) paymentEvent()       {}

type CheckoutCompleted struct {
	ID        string
	SessionID string
	IntentID  string
	OrderID   string
	Paid      bool
}

func (e CheckoutCompleted) EventID() string   { return e.ID }
func (e CheckoutCompleted) EventType() string { return EventCheckoutCompleted }
func (CheckoutCompleted) paymentEvent()       {}

type RefundCreated struct {
	ID       string
	RefundID string
	IntentID string
	Amount   decimal.Decimal
}

func (e RefundCreated) EventID() string   { return e.ID }
func (e RefundCreated) EventType() string { return EventRefundCreated }
func (RefundCreated) paymentEvent()       {}

// UnhandledEvent любое событие, которое сервис не обрабатывает.
type UnhandledEvent struct {
	ID   string
	Type string
}

func (e UnhandledEvent) EventID() string   { return e.ID }
func (e UnhandledEvent) EventType() string { return e.Type }
func (UnhandledEvent) paymentEvent()       {}

// Intent платежное намерение в шлюзе.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
	Status       string
	OrderID      string
}

// HostedSession созданная сессия оплаты на стороне шлюза.
type HostedSession struct {
	ID       string
	URL      string
	IntentID string
}

// Session состояние сессии оплаты, полученное из шлюза.
type Session struct {
	ID            string
	PaymentStatus string
	IntentID      string
	OrderID       string
	AmountTotal   decimal.Decimal
}

type Refund struct {
	ID     string
	Amount decimal.Decimal
	Status string
}

// PaymentRequest тело запросов create-intent и create-checkout.
type PaymentRequest struct {
	OrderID     string           `json:"orderId"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	Items       []NewLineItem    `json:"items,omitempty"`
}

type IntentResponse struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

type CheckoutResponse struct {
	SessionID  string `json:"sessionId"`
	SessionURL string `json:"sessionUrl"`
}

type ConfirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	OrderID         string `json:"orderId"`
}

type PaymentStatusResponse struct {
	PaymentIntentID string          `json:"paymentIntentId"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	OrderID         string          `json:"orderId,omitempty"`
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason *string          `json:"reason,omitempty"`
}

type RefundResponse struct {
	RefundID string          `json:"refundId"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status"`
	Order    Order           `json:"order"`
}

// SimulatedEvent запрос на ручную подачу события в обход вебхука.
type SimulatedEvent struct {
	Type      string `json:"type"`
	OrderID   string `json:"orderId"`
	IntentID  string `json:"paymentIntentId"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// OrderStatusChange уведомление о применённом переходе состояния заказа.
type OrderStatusChange struct {
	OrderID               string        `json:"orderId"`
	UserID                string        `json:"userId"`
	PreviousOrderStatus   OrderStatus   `json:"previousOrderStatus"`
	OrderStatus           OrderStatus   `json:"orderStatus"`
	PreviousPaymentStatus PaymentStatus `json:"previousPaymentStatus"`
	PaymentStatus         PaymentStatus `json:"paymentStatus"`
	Trigger               string        `json:"trigger"`
	ChangedAt             time.Time     `json:"changedAt"`
}
