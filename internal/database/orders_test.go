package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRowColumns = []string{
	"id", "user_id", "items", "shipping_fee", "discount", "total_amount", "refunded_amount", "currency",
	"order_status", "payment_status", "payment_method", "intent", "session",
	"notes", "tracking", "delivery_date", "version", "created_at", "updated_at",
}

func newMockDatabase(t *testing.T) (*Database, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewWithExecutor(mock), mock
}

func TestFindOrder(t *testing.T) {
	db, mock := newMockDatabase(t)
	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(SelectOrderQuery)).
		WithArgs("ORD-1").
		WillReturnRows(mock.NewRows(orderRowColumns).AddRow(
			"ORD-1", "user-1", []byte(`[{"productId":"p1","quantity":2,"unitPrice":"100","lineTotal":"200"}]`),
			"100.00", "0.00", "300.00", "0.00", "usd",
			"confirmed", "paid", "card", "pi_1", "",
			[]string{"Payment completed automatically via webhook. Intent: pi_1"}, "", nil,
			int64(3), createdAt, createdAt,
		))

	order, err := db.FindOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, "ORD-1", order.ID)
	assert.Equal(t, models.OrderConfirmed, order.OrderStatus)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pi_1", order.IntentID())
	assert.Nil(t, order.SessionID)
	assert.Nil(t, order.TrackingNumber)
	assert.Nil(t, order.DeliveryDate)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(300)))
	assert.Len(t, order.Items, 1)
	assert.Equal(t, int64(3), order.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrderReturnsNilWhenMissing(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectQuery(regexp.QuoteMeta(SelectOrderByIntentQuery)).
		WithArgs("pi_missing").
		WillReturnRows(mock.NewRows(orderRowColumns))

	order, err := db.FindOrderByIntentID(context.Background(), "pi_missing")
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderDuplicate(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectQuery(regexp.QuoteMeta(InsertOrderQuery)).
		WithArgs(
			"ORD-1", "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := db.CreateOrder(context.Background(), &OrderDB{Order: models.Order{
		ID:            "ORD-1",
		UserID:        "user-1",
		TotalAmount:   decimal.NewFromInt(300),
		PaymentMethod: models.MethodCard,
	}})
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderState(t *testing.T) {
	current := OrderDB{Order: models.Order{
		ID:            "ORD-1",
		OrderStatus:   models.OrderPending,
		PaymentStatus: models.PaymentPending,
		Version:       2,
	}}
	intentID := "pi_1"
	next := current
	next.OrderStatus = models.OrderConfirmed
	next.PaymentStatus = models.PaymentPaid
	next.PaymentIntentID = &intentID
	next.Notes = []string{"Payment completed automatically via webhook. Intent: pi_1"}

	testCases := []struct {
		testName string
		result   pgconn.CommandTag
		err      error
		applied  bool
		wantErr  error
	}{
		{
			testName: "applies when the row still matches",
			result:   pgxmock.NewResult("UPDATE", 1),
			applied:  true,
		},
		{
			testName: "reports a lost race when nothing matched",
			result:   pgxmock.NewResult("UPDATE", 0),
			applied:  false,
		},
		{
			testName: "maps unique violations on payment references",
			err:      &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			wantErr:  ErrDuplicatePaymentRef,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			db, mock := newMockDatabase(t)

			exp := mock.ExpectExec(regexp.QuoteMeta(UpdateOrderStateQuery)).
				WithArgs(
					"ORD-1", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(2),
					pgxmock.AnyArg(), pgxmock.AnyArg(), "pi_1", "",
					pgxmock.AnyArg(), "", pgxmock.AnyArg(), pgxmock.AnyArg(),
				)
			if tc.err != nil {
				exp.WillReturnError(tc.err)
			} else {
				exp.WillReturnResult(tc.result)
			}

			applied, err := db.UpdateOrderState(context.Background(), current, next)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.applied, applied)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttachPaymentRefs(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectExec(regexp.QuoteMeta(AttachPaymentRefsQuery)).
		WithArgs("ORD-1", "pi_1", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	attached, err := db.AttachPaymentRefs(context.Background(), "ORD-1", "pi_1", "")
	require.NoError(t, err)
	assert.True(t, attached)
	assert.NoError(t, mock.ExpectationsWereMet())
}
