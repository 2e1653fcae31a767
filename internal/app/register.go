package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Renal37/go-shop-payments/internal/middlewares"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/services"
)

// IsUnknownUserDataValid проверяет, что в запросе есть логин и пароль.
func IsUnknownUserDataValid(data models.UnknownUser) bool {
	return data.Login != nil && *data.Login != "" && data.Password != nil && *data.Password != ""
}

// Register регистрирует пользователя и сразу выдает ему JWT токен.
func Register(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.UnknownUser](w, r)
	if !ok {
		return
	}

	authService := middlewares.GetServiceFromContext[models.AuthService](w, r, middlewares.AuthServiceKey)
	jwtService := middlewares.GetServiceFromContext[models.JWTService](w, r, middlewares.JwtServiceKey)
	if authService == nil || jwtService == nil {
		return
	}

	if !IsUnknownUserDataValid(data) {
		middlewares.EncodeJSONError(w, http.StatusBadRequest, "Запрос не содержит логин или пароль", nil)
		return
	}

	if err := (*authService).Register(r.Context(), data); err != nil {
		if errors.Is(err, services.ErrUserIsAlreadyRegistered) {
			middlewares.EncodeJSONError(w, http.StatusConflict, "Пользователь уже зарегистрирован", nil)
			return
		}

		writeServiceError(w, r, err)
		return
	}

	token, err := (*jwtService).GenerateJWT(*data.Login)
	if err != nil {
		middlewares.EncodeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Ошибка при генерации JWT токена: %s", err.Error()), nil)
		return
	}

	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))
}
