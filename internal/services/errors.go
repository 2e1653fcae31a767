package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrOrderNotFound       = errors.New("заказ не найден")
	ErrInvalidTransition   = errors.New("недопустимый переход статуса заказа")
	ErrNoPaymentOnOrder    = errors.New("у заказа нет зарегистрированного платежа")
	ErrConcurrentUpdate    = errors.New("заказ был изменен параллельно, повторите запрос")
	ErrPaymentNotCompleted = errors.New("платеж еще не завершен")
	ErrOrderMismatch       = errors.New("платеж относится к другому заказу")
	ErrSimulationDisabled  = errors.New("имитация событий отключена")
)

// ValidationError ошибка входных данных с описанием по полям.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, e.Fields[key]))
	}

	return "ошибка валидации: " + strings.Join(parts, "; ")
}

// validator собирает ошибки по полям.
type validator struct {
	fields map[string]string
}

func (v *validator) check(ok bool, field, message string) {
	if ok {
		return
	}
	if v.fields == nil {
		v.fields = map[string]string{}
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = message
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
