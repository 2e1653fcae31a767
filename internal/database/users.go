package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrDuplicateUser = errors.New("пользователь уже существует")
)

const (
	InsertUserQuery = `
		INSERT INTO users (login, hash, email, role)
		VALUES ($1, $2, NULLIF($3, ''), $4)
	`
	SelectUserQuery = `
		SELECT id, login, hash, COALESCE(email, ''), role
		FROM users
		WHERE login = $1
	`
)

type UserDB struct {
	models.User
}

// CreateUser создает нового пользователя в базе данных
func (d *Database) CreateUser(ctx context.Context, user UserDB) error {
	role := user.Role
	if role == "" {
		role = models.RoleCustomer
	}

	if _, err := d.db.Exec(ctx, InsertUserQuery, user.Login, user.Hash, user.Email, string(role)); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("ошибка при создании пользователя: %w", err)
	}
	return nil
}

// FindUser находит пользователя в базе данных по логину
func (d *Database) FindUser(ctx context.Context, login string) (*UserDB, error) {
	user := &UserDB{}
	var role string

	err := d.db.QueryRow(ctx, SelectUserQuery, login).
		Scan(&user.ID, &user.Login, &user.Hash, &user.Email, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}

	user.Role = models.Role(role)
	return user, nil
}
