package database

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/utils"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrDuplicateOrder      = errors.New("заказ уже существует")
	ErrDuplicatePaymentRef = errors.New("платежный идентификатор уже привязан к другому заказу")
)

const orderColumns = `
	id, user_id, items, shipping_fee, discount, total_amount, refunded_amount, currency,
	order_status, payment_status, payment_method,
	COALESCE(gateway_payment_intent_id, ''), COALESCE(gateway_session_id, ''),
	notes, COALESCE(tracking_number, ''), delivery_date, version, created_at, updated_at
`

const (
	InsertOrderQuery = `
		INSERT INTO orders (id, user_id, items, shipping_fee, discount, total_amount, currency, payment_method, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING order_status, payment_status, version, created_at, updated_at
	`
	SelectOrderQuery          = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	SelectOrderByIntentQuery  = `SELECT ` + orderColumns + ` FROM orders WHERE gateway_payment_intent_id = $1`
	SelectOrderBySessionQuery = `SELECT ` + orderColumns + ` FROM orders WHERE gateway_session_id = $1`
	SelectOrdersByUserQuery   = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at`
	// UpdateOrderStateQuery срабатывает только если заказ не менялся с момента чтения.
	UpdateOrderStateQuery = `
		UPDATE orders SET
			order_status = $5,
			payment_status = $6,
			gateway_payment_intent_id = NULLIF($7, ''),
			gateway_session_id = NULLIF($8, ''),
			notes = $9,
			tracking_number = NULLIF($10, ''),
			delivery_date = $11,
			refunded_amount = $12,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND order_status = $2 AND payment_status = $3 AND version = $4
	`
	AttachPaymentRefsQuery = `
		UPDATE orders SET
			gateway_payment_intent_id = COALESCE(NULLIF($2, ''), gateway_payment_intent_id),
			gateway_session_id = COALESCE(NULLIF($3, ''), gateway_session_id),
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'
	`
)

// OrderDB строка таблицы orders.
type OrderDB struct {
	models.Order
}

// OrderStatusDB статус заказа с преобразованием в/из базы данных.
type OrderStatusDB struct {
	models.OrderStatus
}

func (s *OrderStatusDB) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("статус заказа должен быть строкой, а не %T", value)
	}

	*s = OrderStatusDB{models.OrderStatus(strVal)}
	return nil
}

func (s OrderStatusDB) Value() (driver.Value, error) {
	return string(s.OrderStatus), nil
}

// PaymentStatusDB статус оплаты с преобразованием в/из базы данных.
type PaymentStatusDB struct {
	models.PaymentStatus
}

func (s *PaymentStatusDB) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("статус оплаты должен быть строкой, а не %T", value)
	}

	*s = PaymentStatusDB{models.PaymentStatus(strVal)}
	return nil
}

func (s PaymentStatusDB) Value() (driver.Value, error) {
	return string(s.PaymentStatus), nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func scanOrder(row pgx.Row) (*OrderDB, error) {
	var (
		order         OrderDB
		items         []byte
		orderStatus   OrderStatusDB
		paymentStatus PaymentStatusDB
		method        string
		intentID      string
		sessionID     string
		tracking      string
		deliveryDate  pgtype.Timestamptz
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := row.Scan(
		&order.ID, &order.UserID, &items,
		&order.ShippingFee, &order.Discount, &order.TotalAmount, &order.RefundedAmount, &order.Currency,
		&orderStatus, &paymentStatus, &method,
		&intentID, &sessionID,
		&order.Notes, &tracking, &deliveryDate, &order.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("ошибка разбора позиций заказа %s: %w", order.ID, err)
	}

	order.OrderStatus = orderStatus.OrderStatus
	order.PaymentStatus = paymentStatus.PaymentStatus
	order.PaymentMethod = models.PaymentMethod(method)
	order.PaymentIntentID = optional(intentID)
	order.SessionID = optional(sessionID)
	order.TrackingNumber = optional(tracking)
	if deliveryDate.Valid {
		date := utils.NewRFC3339Date(deliveryDate.Time)
		order.DeliveryDate = &date
	}
	order.CreatedAt = utils.NewRFC3339Date(createdAt)
	order.UpdatedAt = utils.NewRFC3339Date(updatedAt)
	if order.Notes == nil {
		order.Notes = []string{}
	}

	return &order, nil
}

func isUniqueViolation(err error) bool {
	var e *pgconn.PgError
	return errors.As(err, &e) && e.Code == pgerrcode.UniqueViolation
}

// CreateOrder сохраняет новый заказ и заполняет поля, выставленные базой данных.
func (d *Database) CreateOrder(ctx context.Context, order *OrderDB) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("ошибка кодирования позиций заказа: %w", err)
	}

	notes := order.Notes
	if notes == nil {
		notes = []string{}
	}

	var (
		orderStatus   OrderStatusDB
		paymentStatus PaymentStatusDB
		createdAt     time.Time
		updatedAt     time.Time
	)

	err = d.db.QueryRow(ctx, InsertOrderQuery,
		order.ID, order.UserID, items,
		order.ShippingFee, order.Discount, order.TotalAmount,
		order.Currency, string(order.PaymentMethod), notes,
	).Scan(&orderStatus, &paymentStatus, &order.Version, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("ошибка создания заказа: %w", err)
	}

	order.OrderStatus = orderStatus.OrderStatus
	order.PaymentStatus = paymentStatus.PaymentStatus
	order.Notes = notes
	order.CreatedAt = utils.NewRFC3339Date(createdAt)
	order.UpdatedAt = utils.NewRFC3339Date(updatedAt)

	return nil
}

func (d *Database) findOrderBy(ctx context.Context, query, value string) (*OrderDB, error) {
	order, err := scanOrder(d.db.QueryRow(ctx, query, value))
	if err != nil {
		// Отсутствие заказа не считается ошибкой
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска заказа: %w", err)
	}

	return order, nil
}

// FindOrder ищет заказ по идентификатору.
func (d *Database) FindOrder(ctx context.Context, orderID string) (*OrderDB, error) {
	return d.findOrderBy(ctx, SelectOrderQuery, orderID)
}

// FindOrderByIntentID ищет заказ по идентификатору платежного намерения.
func (d *Database) FindOrderByIntentID(ctx context.Context, intentID string) (*OrderDB, error) {
	return d.findOrderBy(ctx, SelectOrderByIntentQuery, intentID)
}

// FindOrderBySessionID ищет заказ по идентификатору сессии оплаты.
func (d *Database) FindOrderBySessionID(ctx context.Context, sessionID string) (*OrderDB, error) {
	return d.findOrderBy(ctx, SelectOrderBySessionQuery, sessionID)
}

// FindOrdersByUser возвращает все заказы пользователя.
func (d *Database) FindOrdersByUser(ctx context.Context, userID string) ([]OrderDB, error) {
	var result []OrderDB

	rows, err := d.db.Query(ctx, SelectOrdersByUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска заказов пользователя: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка обработки строки с заказом: %w", err)
		}
		result = append(result, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по строкам: %w", err)
	}

	return result, nil
}

// UpdateOrderState записывает next, если в базе все еще лежит current.
// Возвращает false, если заказ успели изменить параллельно.
func (d *Database) UpdateOrderState(ctx context.Context, current, next OrderDB) (bool, error) {
	var deliveryDate *time.Time
	if next.DeliveryDate != nil {
		deliveryDate = &next.DeliveryDate.Time
	}

	notes := next.Notes
	if notes == nil {
		notes = []string{}
	}

	tag, err := d.db.Exec(ctx, UpdateOrderStateQuery,
		current.ID,
		OrderStatusDB{current.OrderStatus},
		PaymentStatusDB{current.PaymentStatus},
		current.Version,
		OrderStatusDB{next.OrderStatus},
		PaymentStatusDB{next.PaymentStatus},
		deref(next.PaymentIntentID),
		deref(next.SessionID),
		notes,
		deref(next.TrackingNumber),
		deliveryDate,
		next.RefundedAmount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicatePaymentRef
		}
		return false, fmt.Errorf("ошибка обновления состояния заказа: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// AttachPaymentRefs привязывает к неоплаченному заказу идентификаторы намерения и сессии.
// Уже записанное намерение не перезаписывается пустым значением.
func (d *Database) AttachPaymentRefs(ctx context.Context, orderID, intentID, sessionID string) (bool, error) {
	tag, err := d.db.Exec(ctx, AttachPaymentRefsQuery, orderID, intentID, sessionID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicatePaymentRef
		}
		return false, fmt.Errorf("ошибка привязки платежа к заказу: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
