package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// VerifySignature проверяет подпись Stripe-Signature и разбирает событие.
// Ни одно поле полезной нагрузки не читается до успешной проверки.
func (s *Stripe) VerifySignature(payload []byte, signature string) (models.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidSignature, err)
	}

	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (models.PaymentEvent, error) {
	if event.Data == nil {
		return models.UnhandledEvent{ID: event.ID, Type: string(event.Type)}, nil
	}

	switch string(event.Type) {
	case models.EventIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return models.IntentSucceeded{
			ID:       event.ID,
			IntentID: pi.ID,
			OrderID:  pi.Metadata[metadataOrderID],
			Amount:   FromMinorUnits(pi.Amount),
			Currency: string(pi.Currency),
		}, nil

	case models.EventIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event.Type, err)
		}
		failed := models.IntentFailed{
			ID:       event.ID,
			IntentID: pi.ID,
			OrderID:  pi.Metadata[metadataOrderID],
		}
		if pi.LastPaymentError != nil {
			failed.FailureMessage = pi.LastPaymentError.Msg
		}
		return failed, nil

	case models.EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event.Type, err)
		}
		decoded := sessionFromStripe(&session)
		return models.CheckoutCompleted{
			ID:        event.ID,
			SessionID: decoded.ID,
			IntentID:  decoded.IntentID,
			OrderID:   decoded.OrderID,
			Paid:      decoded.PaymentStatus == models.SessionStatusPaid,
		}, nil

	case models.EventRefundCreated:
		var refund stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &refund); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event.Type, err)
		}
		created := models.RefundCreated{
			ID:       event.ID,
			RefundID: refund.ID,
			Amount:   FromMinorUnits(refund.Amount),
		}
		if refund.PaymentIntent != nil {
			created.IntentID = refund.PaymentIntent.ID
		}
		return created, nil

	case models.EventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event.Type, err)
		}
		created := models.RefundCreated{
			ID:     event.ID,
			Amount: FromMinorUnits(charge.AmountRefunded),
		}
		if charge.PaymentIntent != nil {
			created.IntentID = charge.PaymentIntent.ID
		}
		return created, nil
	}

	return models.UnhandledEvent{ID: event.ID, Type: string(event.Type)}, nil
}
