package models

import (
	"errors"
	"fmt"
)

var (
	ErrGateway          = errors.New("ошибка платежного шлюза")
	ErrInvalidSignature = errors.New("подпись вебхука недействительна")
)

// GatewayError оборачивает ошибку вызова платежного шлюза.
// StatusCode равен нулю, если шлюз не ответил (сеть, таймаут).
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// Rejected сообщает, что шлюз отклонил сам запрос.
func (e *GatewayError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
