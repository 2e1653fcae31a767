package router

import (
	"errors"
	"net/http"

	"github.com/Renal37/go-shop-payments/internal/middlewares"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/services"
	"github.com/go-chi/chi/v5"
)

// CreateOrder оформляет заказ в статусе pending/pending.
// Повторная отправка того же заказа тем же пользователем возвращает 200 и существующий заказ.
func CreateOrder(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.NewOrder](w, r)
	if !ok {
		return
	}

	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	user := middlewares.GetUserFromContext(w, r)
	if orderService == nil || user == nil {
		return
	}

	order, err := (*orderService).CreateOrder(r.Context(), *user, data)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateOrderByOriginalUser) {
			middlewares.EncodeJSONResponse(w, http.StatusOK, order)
			return
		}

		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusCreated, order)
}

// GetOrders возвращает заказы текущего пользователя.
func GetOrders(w http.ResponseWriter, r *http.Request) {
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	user := middlewares.GetUserFromContext(w, r)
	if orderService == nil || user == nil {
		return
	}

	orders, err := (*orderService).GetOrders(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Если у пользователя нет заказов, возвращаем статус "Нет контента".
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ владельцу или администратору.
func GetOrder(w http.ResponseWriter, r *http.Request) {
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	user := middlewares.GetUserFromContext(w, r)
	if orderService == nil || user == nil {
		return
	}

	order, err := (*orderService).GetOrder(r.Context(), *user, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, order)
}

// UpdateOrderStatus ручная смена статуса заказа администратором.
func UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.StatusUpdate](w, r)
	if !ok {
		return
	}

	paymentService := middlewares.GetServiceFromContext[models.PaymentService](w, r, middlewares.PaymentServiceKey)
	if paymentService == nil {
		return
	}

	order, err := (*paymentService).UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, order)
}
