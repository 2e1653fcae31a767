package models

import (
	"github.com/Renal37/go-shop-payments/internal/utils"
	"github.com/shopspring/decimal"
)

// OrderStatus статус выполнения заказа.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipping   OrderStatus = "shipping"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
)

// happyPath порядок статусов при нормальном выполнении заказа.
var happyPath = map[OrderStatus]int{
	OrderPending:    0,
	OrderConfirmed:  1,
	OrderProcessing: 2,
	OrderShipping:   3,
	OrderDelivered:  4,
}

// IsValid сообщает, входит ли статус в допустимый набор.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipping,
		OrderDelivered, OrderCancelled, OrderReturned:
		return true
	}
	return false
}

// IsTerminal сообщает, является ли статус конечным.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled || s == OrderReturned
}

// Rank возвращает позицию статуса на основном пути или -1, если статус вне его.
func (s OrderStatus) Rank() int {
	if rank, ok := happyPath[s]; ok {
		return rank
	}
	return -1
}

// PaymentStatus статус оплаты заказа.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"
)

// IsSettled сообщает, что деньги уже получены (и, возможно, частично возвращены).
// Такой статус нельзя понизить событием об ошибке оплаты.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentPaid || s == PaymentRefunded || s == PaymentPartialRefund
}

// PaymentMethod способ оплаты, выбранный при оформлении.
type PaymentMethod string

const (
	MethodCashOnDelivery PaymentMethod = "cod"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodCard           PaymentMethod = "card"
	MethodEWallet        PaymentMethod = "e_wallet"
	MethodGatewayHosted  PaymentMethod = "gateway_hosted"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCashOnDelivery, MethodBankTransfer, MethodCard, MethodEWallet, MethodGatewayHosted:
		return true
	}
	return false
}

type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Order заказ покупателя вместе с состоянием оплаты.
type Order struct {
	ID              string             `json:"orderId"`
	UserID          string             `json:"userId"`
	Items           []LineItem         `json:"items"`
	ShippingFee     decimal.Decimal    `json:"shippingFee"`
	Discount        decimal.Decimal    `json:"discount"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	RefundedAmount  decimal.Decimal    `json:"refundedAmount"`
	Currency        string             `json:"currency"`
	OrderStatus     OrderStatus        `json:"orderStatus"`
	PaymentStatus   PaymentStatus      `json:"paymentStatus"`
	PaymentMethod   PaymentMethod      `json:"paymentMethod"`
	PaymentIntentID *string            `json:"paymentIntentId,omitempty"`
	SessionID       *string            `json:"sessionId,omitempty"`
	Notes           []string           `json:"notes"`
	TrackingNumber  *string            `json:"trackingNumber,omitempty"`
	DeliveryDate    *utils.RFC3339Date `json:"deliveryDate,omitempty"`
	Version         int64              `json:"-"`
	CreatedAt       utils.RFC3339Date  `json:"createdAt"`
	UpdatedAt       utils.RFC3339Date  `json:"updatedAt"`
}

// IntentID возвращает идентификатор платежного намерения или пустую строку.
func (o Order) IntentID() string {
	if o.PaymentIntentID == nil {
		return ""
	}
	return *o.PaymentIntentID
}

// GatewaySessionID возвращает идентификатор сессии оплаты или пустую строку.
func (o Order) GatewaySessionID() string {
	if o.SessionID == nil {
		return ""
	}
	return *o.SessionID
}

// RemainingAmount сумма, которую еще можно вернуть покупателю.
func (o Order) RemainingAmount() decimal.Decimal {
	return o.TotalAmount.Sub(o.RefundedAmount)
}

type NewLineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// NewOrder тело запроса на оформление заказа.
type NewOrder struct {
	ID            *string          `json:"orderId,omitempty"`
	Items         []NewLineItem    `json:"items"`
	ShippingFee   *decimal.Decimal `json:"shippingFee,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	PaymentMethod PaymentMethod    `json:"paymentMethod"`
}

// StatusUpdate тело запроса на ручную смену статуса заказа.
type StatusUpdate struct {
	Status         OrderStatus        `json:"status"`
	Note           *string            `json:"note,omitempty"`
	TrackingNumber *string            `json:"trackingNumber,omitempty"`
	DeliveryDate   *utils.RFC3339Date `json:"deliveryDate,omitempty"`
}
