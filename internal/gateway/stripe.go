// Package gateway адаптирует Stripe к контракту models.PaymentGateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	metadataOrderID = "orderId"
	metadataUserID  = "userId"
	metadataReason  = "reason"

	defaultTimeout = 10 * time.Second
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
	// APIURL переопределяет адрес API, пустое значение означает api.stripe.com.
	APIURL string
}

type Stripe struct {
	client        *client.API
	webhookSecret string
	currency      string
	successURL    string
	cancelURL     string
	tracer        trace.Tracer
}

func NewStripe(cfg Config) *Stripe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	backendConfig := func(url string) *stripe.BackendConfig {
		config := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			LeveledLogger:     logger.Log.Sugar(),
			MaxNetworkRetries: stripe.Int64(0),
		}
		if url != "" {
			config.URL = stripe.String(url)
		}
		return config
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig(cfg.APIURL)),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig("")),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig("")),
	}

	return &Stripe{
		client:        client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		currency:      strings.ToLower(cfg.Currency),
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		tracer:        otel.Tracer("storefront/gateway"),
	}
}

// ToMinorUnits переводит сумму в копейки/центы с округлением половины вверх.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func wrapError(op string, err error) error {
	gatewayErr := &models.GatewayError{Op: op, Err: err}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		gatewayErr.StatusCode = stripeErr.HTTPStatusCode
	}

	return gatewayErr
}

func (s *Stripe) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "External API stripe."+op)
	span.SetAttributes(attrs...)
	return ctx, span
}

func (s *Stripe) orderCurrency(order models.Order) string {
	if order.Currency != "" {
		return strings.ToLower(order.Currency)
	}
	return s.currency
}

func intentFromStripe(pi *stripe.PaymentIntent) models.Intent {
	return models.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		OrderID:      pi.Metadata[metadataOrderID],
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, order models.Order) (models.Intent, error) {
	ctx, span := s.startSpan(ctx, "CreateIntent", attribute.String("order.id", order.ID))
	defer span.End()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(order.TotalAmount)),
		Currency: stripe.String(s.orderCurrency(order)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, order.ID)
	params.AddMetadata(metadataUserID, order.UserID)
	// Повторный запрос для той же версии заказа вернет уже созданное намерение
	params.SetIdempotencyKey(fmt.Sprintf("intent-%s-v%d", order.ID, order.Version))

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		span.RecordError(err)
		return models.Intent{}, wrapError("create intent", err)
	}

	return intentFromStripe(pi), nil
}

func (s *Stripe) CreateHostedSession(ctx context.Context, order models.Order, customer models.User) (models.HostedSession, error) {
	ctx, span := s.startSpan(ctx, "CreateHostedSession", attribute.String("order.id", order.ID))
	defer span.End()

	successURL := s.successURL
	if successURL != "" {
		separator := "?"
		if strings.Contains(successURL, "?") {
			separator = "&"
		}
		successURL += separator + "session_id={CHECKOUT_SESSION_ID}&order_id=" + order.ID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(order.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.orderCurrency(order)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Order " + order.ID),
					},
					UnitAmount: stripe.Int64(ToMinorUnits(order.TotalAmount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				metadataOrderID: order.ID,
				metadataUserID:  order.UserID,
			},
		},
	}
	if customer.Email != "" {
		params.CustomerEmail = stripe.String(customer.Email)
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, order.ID)
	params.SetIdempotencyKey(fmt.Sprintf("session-%s-v%d", order.ID, order.Version))

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		span.RecordError(err)
		return models.HostedSession{}, wrapError("create checkout session", err)
	}

	result := models.HostedSession{ID: session.ID, URL: session.URL}
	if session.PaymentIntent != nil {
		result.IntentID = session.PaymentIntent.ID
	}

	return result, nil
}

func (s *Stripe) RetrieveIntent(ctx context.Context, intentID string) (models.Intent, error) {
	ctx, span := s.startSpan(ctx, "RetrieveIntent", attribute.String("payment_intent.id", intentID))
	defer span.End()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.client.PaymentIntents.Get(intentID, params)
	if err != nil {
		span.RecordError(err)
		return models.Intent{}, wrapError("retrieve intent", err)
	}

	return intentFromStripe(pi), nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, sessionID string) (models.Session, error) {
	ctx, span := s.startSpan(ctx, "RetrieveSession", attribute.String("checkout_session.id", sessionID))
	defer span.End()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := s.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		span.RecordError(err)
		return models.Session{}, wrapError("retrieve checkout session", err)
	}

	return sessionFromStripe(session), nil
}

func sessionFromStripe(session *stripe.CheckoutSession) models.Session {
	result := models.Session{
		ID:            session.ID,
		PaymentStatus: string(session.PaymentStatus),
		OrderID:       session.Metadata[metadataOrderID],
		AmountTotal:   FromMinorUnits(session.AmountTotal),
	}
	if result.OrderID == "" {
		result.OrderID = session.ClientReferenceID
	}
	if session.PaymentIntent != nil {
		result.IntentID = session.PaymentIntent.ID
	}
	return result
}

var refundReasons = map[string]stripe.RefundReason{
	string(stripe.RefundReasonDuplicate):           stripe.RefundReasonDuplicate,
	string(stripe.RefundReasonFraudulent):          stripe.RefundReasonFraudulent,
	string(stripe.RefundReasonRequestedByCustomer): stripe.RefundReasonRequestedByCustomer,
}

// Refund возвращает amount или всю сумму намерения, если amount == nil.
// Произвольный текст причины уходит в metadata.
func (s *Stripe) Refund(ctx context.Context, intentID string, amount *decimal.Decimal, reason string) (models.Refund, error) {
	ctx, span := s.startSpan(ctx, "Refund", attribute.String("payment_intent.id", intentID))
	defer span.End()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	if amount != nil {
		params.Amount = stripe.Int64(ToMinorUnits(*amount))
	}
	if known, ok := refundReasons[reason]; ok {
		params.Reason = stripe.String(string(known))
	} else {
		params.Reason = stripe.String(string(stripe.RefundReasonRequestedByCustomer))
		if reason != "" {
			params.AddMetadata(metadataReason, reason)
		}
	}
	params.Context = ctx

	refund, err := s.client.Refunds.New(params)
	if err != nil {
		span.RecordError(err)
		return models.Refund{}, wrapError("refund", err)
	}

	return models.Refund{
		ID:     refund.ID,
		Amount: FromMinorUnits(refund.Amount),
		Status: string(refund.Status),
	}, nil
}
