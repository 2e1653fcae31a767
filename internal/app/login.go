package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Renal37/go-shop-payments/internal/middlewares"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/services"
)

// Login обрабатывает запрос на вход пользователя и возвращает JWT токен при успешной авторизации.
func Login(w http.ResponseWriter, r *http.Request) {
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

	if err := (*authService).Login(r.Context(), data); err != nil {
		if errors.Is(err, services.ErrUserIsNotExist) {
			middlewares.EncodeJSONError(w, http.StatusUnauthorized, fmt.Sprintf("Пользователь с логином %s не существует", *data.Login), nil)
			return
		}

		if errors.Is(err, services.ErrPasswordIsIncorrect) {
			middlewares.EncodeJSONError(w, http.StatusUnauthorized, "Неверный пароль", nil)
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
