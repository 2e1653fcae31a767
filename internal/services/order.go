package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Renal37/go-shop-payments/internal/database"
	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Определяем ошибки, связанные с заказами
var (
	ErrDuplicateOrder               = errors.New("заказ уже существует")                     // Заказ с таким номером создан другим пользователем
	ErrDuplicateOrderByOriginalUser = errors.New("заказ уже был создан этим пользователем") // Повторная отправка того же заказа
)

const maxOrderIDLength = 64

// OrderService представляет сервис для работы с заказами
type OrderService struct {
	storage  orderStorage // Хранилище данных для работы с заказами
	currency string       // Валюта, в которой оформляются заказы
}

// Интерфейс хранилища для работы с заказами
type orderStorage interface {
	CreateOrder(ctx context.Context, order *database.OrderDB) error
	FindOrder(ctx context.Context, orderID string) (*database.OrderDB, error)
	FindOrdersByUser(ctx context.Context, userID string) ([]database.OrderDB, error)
}

// NewOrderService создает новый экземпляр OrderService
func NewOrderService(storage orderStorage, currency string) *OrderService {
	return &OrderService{storage: storage, currency: strings.ToLower(currency)}
}

const centsOnly = "не более двух знаков после запятой"

// hasCents сообщает, что сумма задана с точностью не выше копеек.
func hasCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// buildOrder проверяет запрос и рассчитывает итоговую сумму заказа.
// Итог = сумма позиций + доставка - скидка, он должен быть положительным.
func (o *OrderService) buildOrder(user models.User, req models.NewOrder) (models.Order, error) {
	var v validator

	orderID := uuid.NewString()
	if req.ID != nil {
		orderID = strings.TrimSpace(*req.ID)
		v.check(orderID != "", "orderId", "номер заказа не может быть пустым")
		v.check(len(orderID) <= maxOrderIDLength, "orderId", fmt.Sprintf("не длиннее %d символов", maxOrderIDLength))
	}

	v.check(len(req.Items) > 0, "items", "заказ должен содержать хотя бы одну позицию")
	v.check(req.PaymentMethod.IsValid(), "paymentMethod", "неизвестный способ оплаты")

	items := make([]models.LineItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		v.check(strings.TrimSpace(item.ProductID) != "", field+".productId", requiredField)
		v.check(item.Quantity > 0, field+".quantity", "количество должно быть больше нуля")
		v.check(!item.UnitPrice.IsNegative(), field+".unitPrice", "цена не может быть отрицательной")
		v.check(hasCents(item.UnitPrice), field+".unitPrice", centsOnly)

		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).Round(2)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: lineTotal,
		})
	}

	shipping := decimal.Zero
	if req.ShippingFee != nil {
		shipping = *req.ShippingFee
		v.check(!shipping.IsNegative(), "shippingFee", "стоимость доставки не может быть отрицательной")
		v.check(hasCents(shipping), "shippingFee", centsOnly)
	}
	discount := decimal.Zero
	if req.Discount != nil {
		discount = *req.Discount
		v.check(!discount.IsNegative(), "discount", "скидка не может быть отрицательной")
		v.check(hasCents(discount), "discount", centsOnly)
	}

	total := subtotal.Add(shipping).Sub(discount)
	v.check(total.IsPositive(), "totalAmount", "итоговая сумма заказа должна быть больше нуля")

	if err := v.err(); err != nil {
		return models.Order{}, err
	}

	return models.Order{
		ID:            orderID,
		UserID:        user.ID,
		Items:         items,
		ShippingFee:   shipping,
		Discount:      discount,
		TotalAmount:   total,
		Currency:      o.currency,
		OrderStatus:   models.OrderPending,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: req.PaymentMethod,
		Notes:         []string{},
	}, nil
}

// CreateOrder создает новый заказ и проверяет, не существует ли уже такой заказ.
// При повторной отправке тем же пользователем возвращает существующий заказ
// вместе с ErrDuplicateOrderByOriginalUser.
func (o *OrderService) CreateOrder(ctx context.Context, user models.User, req models.NewOrder) (*models.Order, error) {
	order, err := o.buildOrder(user, req)
	if err != nil {
		return nil, err
	}

	row := &database.OrderDB{Order: order}

	// Пытаемся создать заказ
	if err := o.storage.CreateOrder(ctx, row); err != nil {
		if !errors.Is(err, database.ErrDuplicateOrder) {
			return nil, err
		}

		// Если заказ уже существует, ищем его данные
		existing, errOrder := o.storage.FindOrder(ctx, order.ID)
		if errOrder != nil {
			return nil, errOrder
		}

		if existing != nil && existing.UserID == user.ID {
			return &existing.Order, ErrDuplicateOrderByOriginalUser
		}

		return nil, ErrDuplicateOrder
	}

	logger.Log.Info("order created",
		zap.String("orderID", row.ID),
		zap.String("userID", user.ID),
		zap.String("total", row.TotalAmount.StringFixed(2)),
		zap.String("paymentMethod", string(row.PaymentMethod)),
	)

	return &row.Order, nil
}

// GetOrders возвращает список заказов пользователя, отсортированный по дате создания
func (o *OrderService) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := o.storage.FindOrdersByUser(ctx, userID)
	if err != nil {
		return []models.Order{}, err
	}

	result := make([]models.Order, len(orders))
	for i, order := range orders {
		result[i] = order.Order
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Time.Before(result[j].CreatedAt.Time)
	})

	return result, nil
}

// GetOrder возвращает заказ владельцу или администратору
func (o *OrderService) GetOrder(ctx context.Context, user models.User, orderID string) (*models.Order, error) {
	order, err := o.storage.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order == nil || (!user.IsAdmin() && order.UserID != user.ID) {
		return nil, ErrOrderNotFound
	}

	return &order.Order, nil
}
