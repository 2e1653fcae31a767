package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"

	"github.com/Renal37/go-shop-payments/internal/database"
	"github.com/Renal37/go-shop-payments/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Определение пользовательских ошибок
var (
	ErrUserIsAlreadyRegistered = errors.New("пользователь уже зарегистрирован")
	ErrUserIsNotExist          = errors.New("пользователь не существует")
	ErrPasswordIsIncorrect     = errors.New("пароль неверен")
	ErrInvalidCredentials      = errors.New("логин и пароль обязательны")
)

// AuthService представляет сервис для аутентификации и управления пользователями
type AuthService struct {
	storage     AuthStorage
	adminLogins []string // Логины, которые при регистрации получают роль администратора
}

// AuthStorage определяет интерфейс для взаимодействия с хранилищем данных пользователей
type AuthStorage interface {
	CreateUser(ctx context.Context, user database.UserDB) error           // Создание нового пользователя
	FindUser(ctx context.Context, login string) (*database.UserDB, error) // Поиск пользователя по логину
}

// NewAuthService создает новый экземпляр AuthService с заданным хранилищем
func NewAuthService(storage AuthStorage, adminLogins []string) *AuthService {
	return &AuthService{storage: storage, adminLogins: adminLogins}
}

// Register регистрирует нового пользователя
func (auth *AuthService) Register(ctx context.Context, user models.UnknownUser) error {
	// Проверка валидности входных данных
	if err := validateUser(user); err != nil {
		return err
	}

	email := ""
	if user.Email != nil {
		email = strings.TrimSpace(*user.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return &ValidationError{Fields: map[string]string{"email": "некорректный адрес"}}
			}
		}
	}

	// Хэширование пароля
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("ошибка при хэшировании пароля: %w", err)
	}

	role := models.RoleCustomer
	if slices.Contains(auth.adminLogins, *user.Login) {
		role = models.RoleAdmin
	}

	// Создание пользователя в хранилище
	err = auth.storage.CreateUser(ctx, database.UserDB{
		User: models.User{
			Login: *user.Login,
			Hash:  string(hashedPassword),
			Email: email,
			Role:  role,
		},
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			return ErrUserIsAlreadyRegistered
		}
		return fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	return nil
}

// Login выполняет аутентификацию пользователя
func (auth *AuthService) Login(ctx context.Context, user models.UnknownUser) error {
	if err := validateUser(user); err != nil {
		return err
	}

	u, err := auth.storage.FindUser(ctx, *user.Login)
	if err != nil {
		return fmt.Errorf("ошибка при поиске пользователя: %w", err)
	}

	if u == nil {
		return ErrUserIsNotExist
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(*user.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordIsIncorrect
		}
		return fmt.Errorf("ошибка при сравнении паролей: %w", err)
	}

	return nil
}

// GetUser возвращает информацию о пользователе по логину
func (auth *AuthService) GetUser(ctx context.Context, login string) (*models.User, error) {
	user, err := auth.storage.FindUser(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске пользователя: %w", err)
	}

	if user == nil {
		return nil, ErrUserIsNotExist
	}

	return &user.User, nil
}

// validateUser проверяет валидность входных данных пользователя
func validateUser(user models.UnknownUser) error {
	if user.Login == nil || *user.Login == "" || user.Password == nil || *user.Password == "" {
		return ErrInvalidCredentials
	}
	return nil
}
