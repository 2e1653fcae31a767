package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/services"
)

// userFieldType определяет тип для ключа, используемого для хранения данных пользователя в контексте.
type userFieldType string

// userField является ключом для хранения информации о пользователе в контексте запроса.
const userField userFieldType = "userField"

// AuthMiddlewareConfig представляет конфигурацию middleware для аутентификации.
type AuthMiddlewareConfig struct {
	excludePaths []string // Пути, которые будут исключены из проверки аутентификации.
}

// AuthMiddleware создает новую конфигурацию middleware для аутентификации.
func AuthMiddleware() *AuthMiddlewareConfig {
	return &AuthMiddlewareConfig{}
}

// WithExcludedPaths устанавливает пути, которые будут исключены из проверки аутентификации.
func (a *AuthMiddlewareConfig) WithExcludedPaths(paths ...string) *AuthMiddlewareConfig {
	a.excludePaths = paths
	return a
}

// Middleware возвращает middleware для аутентификации, используя установленную конфигурацию.
func (a *AuthMiddlewareConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, path := range a.excludePaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		authService := GetServiceFromContext[models.AuthService](w, r, AuthServiceKey)
		if authService == nil {
			return
		}
		jwtService := GetServiceFromContext[models.JWTService](w, r, JwtServiceKey)
		if jwtService == nil {
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			EncodeJSONError(w, http.StatusUnauthorized, "Требуется заголовок Authorization", nil)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			EncodeJSONError(w, http.StatusUnauthorized, "Токен Bearer пуст", nil)
			return
		}

		token, err := (*jwtService).ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, services.ErrTokenIsInvalid) {
				EncodeJSONError(w, http.StatusUnauthorized, "Неверный токен", nil)
				return
			}

			if errors.Is(err, services.ErrTokenIsExpired) {
				EncodeJSONError(w, http.StatusUnauthorized, "Токен истёк", nil)
				return
			}

			EncodeJSONError(w, http.StatusUnauthorized, fmt.Sprintf("Произошла ошибка при проверке токена: %s", err.Error()), nil)
			return
		}

		login, err := token.Claims.GetSubject()
		if err != nil {
			EncodeJSONError(w, http.StatusUnauthorized, fmt.Sprintf("Произошла ошибка при чтении поля sub: %s", err.Error()), nil)
			return
		}

		user, err := (*authService).GetUser(r.Context(), login)
		if err != nil {
			if errors.Is(err, services.ErrUserIsNotExist) {
				EncodeJSONError(w, http.StatusUnauthorized, fmt.Sprintf("Пользователь с логином %s не существует", login), nil)
				return
			}

			EncodeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Произошла ошибка при проверке логина пользователя: %s", err.Error()), nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userField, user)))
	})
}

// AdminOnly пропускает только пользователей с ролью администратора.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(w, r)
		if user == nil {
			return
		}

		if !user.IsAdmin() {
			EncodeJSONError(w, http.StatusForbidden, "Недостаточно прав", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext извлекает информацию о пользователе из контекста запроса.
// В случае ошибки возвращает HTTP 500 и nil.
func GetUserFromContext(w http.ResponseWriter, r *http.Request) *models.User {
	user, ok := r.Context().Value(userField).(*models.User)

	if !ok {
		EncodeJSONError(w, http.StatusInternalServerError, "Не удалось получить пользователя из контекста", nil)
		return nil
	}

	return user
}
