package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	t.Run("defaults the role to customer", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectExec(regexp.QuoteMeta(InsertUserQuery)).
			WithArgs("user", "hash", "", "customer").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := db.CreateUser(context.Background(), UserDB{User: models.User{Login: "user", Hash: "hash"}})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports duplicate logins", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectExec(regexp.QuoteMeta(InsertUserQuery)).
			WithArgs("user", "hash", "", "customer").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := db.CreateUser(context.Background(), UserDB{User: models.User{Login: "user", Hash: "hash"}})
		assert.ErrorIs(t, err, ErrDuplicateUser)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindUser(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectQuery(regexp.QuoteMeta(SelectUserQuery)).
		WithArgs("admin").
		WillReturnRows(mock.NewRows([]string{"id", "login", "hash", "email", "role"}).
			AddRow("user-1", "admin", "hash", "admin@example.com", "admin"))

	user, err := db.FindUser(context.Background(), "admin")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsAdmin())
	assert.Equal(t, "admin@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}
