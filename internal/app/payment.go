package router

import (
	"errors"
	"io"
	"net/http"

	"github.com/Renal37/go-shop-payments/internal/middlewares"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/go-chi/chi/v5"
)

// maxWebhookBodySize ограничение размера тела вебхука. Stripe присылает события до 256 КБ.
const maxWebhookBodySize = 512 << 10

// CreateIntent создает платежное намерение для заказа.
func CreateIntent(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.PaymentRequest](w, r)
	if !ok {
		return
	}

	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	user := middlewares.GetUserFromContext(w, r)
	if paymentService == nil || user == nil {
		return
	}

	resp, err := (*paymentService).CreateIntent(r.Context(), *user, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, resp)
}

// CreateCheckout создает сессию оплаты на странице шлюза.
func CreateCheckout(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.PaymentRequest](w, r)
	if !ok {
		return
	}

	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	user := middlewares.GetUserFromContext(w, r)
	if paymentService == nil || user == nil {
		return
	}

	resp, err := (*paymentService).CreateCheckout(r.Context(), *user, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, resp)
}

// ConfirmPayment подтверждение оплаты клиентом.
func ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.ConfirmRequest](w, r)
	if !ok {
		return
	}

	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	user := middlewares.GetUserFromContext(w, r)
	if paymentService == nil || user == nil {
		return
	}

	order, err := (*paymentService).ConfirmPayment(r.Context(), *user, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, order)
}

func GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	user := middlewares.GetUserFromContext(w, r)
	if paymentService == nil || user == nil {
		return
	}

	resp, err := (*paymentService).GetPaymentStatus(r.Context(), *user, chi.URLParam(r, "paymentIntentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, resp)
}

// CheckoutSuccess страница возврата покупателя после оплаты на стороне шлюза.
func CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	if paymentService == nil {
		return
	}

	query := r.URL.Query()
	order, err := (*paymentService).HandleCheckoutSuccess(r.Context(), query.Get("session_id"), query.Get("order_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, order)
}

// Webhook принимает события шлюза. Тело читается как есть, подпись проверяется по нему.
// Ответ 400 только при неверной подписи, иначе 200, чтобы шлюз не повторял доставку.
func Webhook(w http.ResponseWriter, r *http.Request) {
	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	if paymentService == nil {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middlewares.EncodeJSONError(w, http.StatusRequestEntityTooLarge, "Слишком большое тело запроса", nil)
			return
		}
		middlewares.EncodeJSONError(w, http.StatusBadRequest, "Ошибка чтения из тела запроса", nil)
		return
	}

	if err := (*paymentService).HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, map[string]bool{"received": true})
}

// Refund возврат средств по заказу. Только для администратора.
func Refund(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.RefundRequest](w, r)
	if !ok {
		return
	}

	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	if paymentService == nil {
		return
	}

	resp, err := (*paymentService).ProcessRefund(r.Context(), chi.URLParam(r, "orderID"), data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, resp)
}

// SimulateEvent ручная подача события оплаты, доступна вне production.
func SimulateEvent(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.SimulatedEvent](w, r)
	if !ok {
		return
	}

	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	if paymentService == nil {
		return
	}

	order, err := (*paymentService).SimulateEvent(r.Context(), data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, order)
}
