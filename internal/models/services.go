package models

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_auth.go . AuthService
type AuthService interface {
	Register(ctx context.Context, user UnknownUser) error

	Login(ctx context.Context, user UnknownUser) error

	GetUser(ctx context.Context, login string) (*User, error)
}

//go:generate mockgen -destination=mocks/mock_jwt.go . JWTService
type JWTService interface {
	GenerateJWT(subject string) (string, error)

	ValidateToken(token string) (*jwt.Token, error)
}

//go:generate mockgen -destination=mocks/mock_order.go . OrderService
type OrderService interface {
	CreateOrder(ctx context.Context, user User, order NewOrder) (*Order, error)

	GetOrders(ctx context.Context, userID string) ([]Order, error)

	GetOrder(ctx context.Context, user User, orderID string) (*Order, error)
}

//go:generate mockgen -destination=mocks/mock_payment.go . PaymentService
type PaymentService interface {
	CreateIntent(ctx context.Context, user User, req PaymentRequest) (IntentResponse, error)

	CreateCheckout(ctx context.Context, user User, req PaymentRequest) (CheckoutResponse, error)

	ConfirmPayment(ctx context.Context, user User, req ConfirmRequest) (*Order, error)

	GetPaymentStatus(ctx context.Context, user User, intentID string) (PaymentStatusResponse, error)

	HandleCheckoutSuccess(ctx context.Context, sessionID, orderID string) (*Order, error)

	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	ProcessRefund(ctx context.Context, orderID string, req RefundRequest) (RefundResponse, error)

	UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) (*Order, error)

	SimulateEvent(ctx context.Context, event SimulatedEvent) (*Order, error)
}

//go:generate mockgen -destination=mocks/mock_gateway.go . PaymentGateway
type PaymentGateway interface {
	CreateIntent(ctx context.Context, order Order) (Intent, error)

	CreateHostedSession(ctx context.Context, order Order, customer User) (HostedSession, error)

	RetrieveIntent(ctx context.Context, intentID string) (Intent, error)

	RetrieveSession(ctx context.Context, sessionID string) (Session, error)

	Refund(ctx context.Context, intentID string, amount *decimal.Decimal, reason string) (Refund, error)

	VerifySignature(payload []byte, signature string) (PaymentEvent, error)
}
