package services

import (
	"context"
	"sync"

	"github.com/Renal37/go-shop-payments/internal/database"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/shopspring/decimal"
)

// memoryStorage хранилище заказов в памяти с теми же правилами условной записи, что и у базы.
type memoryStorage struct {
	mu     sync.Mutex
	orders map[string]models.Order
	// beforeUpdate вызывается перед условной записью, позволяет имитировать гонку
	beforeUpdate func(s *memoryStorage, orderID string)
	updates      int
}

func newMemoryStorage(orders ...models.Order) *memoryStorage {
	s := &memoryStorage{orders: map[string]models.Order{}}
	for _, order := range orders {
		s.orders[order.ID] = cloneOrder(order)
	}
	return s
}

func (s *memoryStorage) get(orderID string) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrder(s.orders[orderID])
}

// bump меняет версию заказа, как это сделал бы параллельный запрос.
func (s *memoryStorage) bump(orderID string) {
	order := s.orders[orderID]
	order.Version++
	s.orders[orderID] = order
}

func (s *memoryStorage) find(match func(models.Order) bool) *database.OrderDB {
	for _, order := range s.orders {
		if match(order) {
			return &database.OrderDB{Order: cloneOrder(order)}
		}
	}
	return nil
}

func (s *memoryStorage) CreateOrder(_ context.Context, order *database.OrderDB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return database.ErrDuplicateOrder
	}
	order.Version = 1
	s.orders[order.ID] = cloneOrder(order.Order)
	return nil
}

func (s *memoryStorage) FindOrder(_ context.Context, orderID string) (*database.OrderDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(o models.Order) bool { return o.ID == orderID }), nil
}

func (s *memoryStorage) FindOrderByIntentID(_ context.Context, intentID string) (*database.OrderDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(o models.Order) bool { return o.IntentID() == intentID }), nil
}

func (s *memoryStorage) FindOrderBySessionID(_ context.Context, sessionID string) (*database.OrderDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(o models.Order) bool { return o.GatewaySessionID() == sessionID }), nil
}

func (s *memoryStorage) FindOrdersByUser(_ context.Context, userID string) ([]database.OrderDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []database.OrderDB
	for _, order := range s.orders {
		if order.UserID == userID {
			result = append(result, database.OrderDB{Order: cloneOrder(order)})
		}
	}
	return result, nil
}

func (s *memoryStorage) UpdateOrderState(_ context.Context, current, next database.OrderDB) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.beforeUpdate != nil {
		s.beforeUpdate(s, current.ID)
	}

	stored, ok := s.orders[current.ID]
	if !ok || stored.Version != current.Version ||
		stored.OrderStatus != current.OrderStatus || stored.PaymentStatus != current.PaymentStatus {
		return false, nil
	}

	updated := cloneOrder(next.Order)
	updated.Version = stored.Version + 1
	s.orders[current.ID] = updated
	s.updates++
	return true, nil
}

func (s *memoryStorage) AttachPaymentRefs(_ context.Context, orderID, intentID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	if intentID != "" {
		order.PaymentIntentID = &intentID
	}
	if sessionID != "" {
		order.SessionID = &sessionID
	}
	order.Version++
	s.orders[orderID] = order
	return true, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []models.OrderStatusChange
}

func (n *recordingNotifier) Notify(change models.OrderStatusChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

func strPtr(s string) *string {
	return &s
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// pendingOrder заказ ORD-1 на 300.00, ожидающий оплаты.
func pendingOrder() models.Order {
	return models.Order{
		ID:             "ORD-1",
		UserID:         "user-1",
		TotalAmount:    decimal.NewFromInt(300),
		RefundedAmount: decimal.Zero,
		Currency:       "usd",
		OrderStatus:    models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		PaymentMethod:  models.MethodCard,
		Notes:          []string{},
		Version:        1,
	}
}

// paidOrder заказ ORD-1, оплаченный намерением pi_1.
func paidOrder() models.Order {
	order := pendingOrder()
	order.OrderStatus = models.OrderConfirmed
	order.PaymentStatus = models.PaymentPaid
	order.PaymentIntentID = strPtr("pi_1")
	order.Notes = []string{"Payment completed automatically via webhook. Intent: pi_1"}
	return order
}
