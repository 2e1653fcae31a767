package router

import (
	"errors"
	"net/http"

	"github.com/Renal37/go-shop-payments/internal/database"
	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/middlewares"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/services"
	"go.uber.org/zap"
)

// statusByError соответствие ошибок сервисов кодам ответа.
var statusByError = []struct {
	err    error
	status int
}{
	{services.ErrOrderNotFound, http.StatusNotFound},
	{services.ErrInvalidTransition, http.StatusConflict},
	{services.ErrConcurrentUpdate, http.StatusConflict},
	{services.ErrDuplicateOrder, http.StatusConflict},
	{database.ErrDuplicatePaymentRef, http.StatusConflict},
	{services.ErrNoPaymentOnOrder, http.StatusBadRequest},
	{services.ErrPaymentNotCompleted, http.StatusBadRequest},
	{services.ErrOrderMismatch, http.StatusBadRequest},
	{services.ErrSimulationDisabled, http.StatusForbidden},
	{models.ErrInvalidSignature, http.StatusBadRequest},
}

// writeServiceError переводит ошибку сервиса в JSON-ответ.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		middlewares.EncodeJSONError(w, http.StatusBadRequest, "Ошибка валидации", validationErr.Fields)
		return
	}

	var gatewayErr *models.GatewayError
	if errors.As(err, &gatewayErr) {
		status := http.StatusBadGateway
		if gatewayErr.Rejected() {
			status = http.StatusBadRequest
		}
		logger.Log.Error("payment gateway error",
			zap.String("URI", r.RequestURI),
			zap.String("op", gatewayErr.Op),
			zap.Int("gatewayStatus", gatewayErr.StatusCode),
			zap.Error(err),
		)
		middlewares.EncodeJSONError(w, status, err.Error(), nil)
		return
	}

	for _, mapping := range statusByError {
		if errors.Is(err, mapping.err) {
			middlewares.EncodeJSONError(w, mapping.status, err.Error(), nil)
			return
		}
	}

	logger.Log.Error("request failed", zap.String("URI", r.RequestURI), zap.Error(err))
	middlewares.EncodeJSONError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера", nil)
}
