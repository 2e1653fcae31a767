package middlewares

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// parsedJSONDataFieldType является типом для хранения данных JSON в контексте запроса.
type parsedJSONDataFieldType string

// parsedJSONDataField - ключ для хранения данных JSON в контексте запроса.
const parsedJSONDataField parsedJSONDataFieldType = "parsedJSONDataField"

// maxJSONBodySize ограничение размера тела JSON-запроса.
const maxJSONBodySize = 1 << 20

// ModelParameter определяет интерфейс, который могут реализовывать модели, поддерживающие как одиночные значения, так и срезы значений.
type ModelParameter interface {
	interface{} | []interface{}
}

// ErrorResponse тело ответа с ошибкой.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSONMiddleware обрабатывает JSON-запросы и извлекает данные JSON из тела запроса.
func JSONMiddleware[Model ModelParameter](next http.Handler) http.Handler {
	return jsonMiddleware[Model](next, false)
}

// OptionalJSONMiddleware как JSONMiddleware, но пустое тело считается пустым объектом.
func OptionalJSONMiddleware[Model ModelParameter](next http.Handler) http.Handler {
	return jsonMiddleware[Model](next, true)
}

func jsonMiddleware[Model ModelParameter](next http.Handler, allowEmpty bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var parsedData Model
		var buf bytes.Buffer

		if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, maxJSONBodySize)); err != nil {
			EncodeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Ошибка чтения из тела запроса: %s", err.Error()), nil)
			return
		}

		if allowEmpty && len(bytes.TrimSpace(buf.Bytes())) == 0 {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), parsedJSONDataField, parsedData)))
			return
		}

		// Допускаем параметры вроде charset=utf-8
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			EncodeJSONError(w, http.StatusUnsupportedMediaType, "Тип контента не является application/json", nil)
			return
		}

		if err := json.Unmarshal(buf.Bytes(), &parsedData); err != nil {
			EncodeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Ошибка при разборе данных JSON: %s", err.Error()), nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), parsedJSONDataField, parsedData)))
	})
}

// GetParsedJSONData извлекает данные JSON из контекста запроса.
func GetParsedJSONData[Model ModelParameter](w http.ResponseWriter, r *http.Request) (Model, bool) {
	data, ok := r.Context().Value(parsedJSONDataField).(Model)

	if !ok {
		EncodeJSONError(w, http.StatusInternalServerError, "Не удалось извлечь данные из контекста", nil)
		var empty Model
		return empty, false
	}

	return data, true
}

// EncodeJSONResponse кодирует данные в формат JSON и отправляет их с указанным статусом.
func EncodeJSONResponse[Model any](w http.ResponseWriter, status int, data Model) {
	resp, err := json.Marshal(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка при кодировании JSON-ответа: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(resp)
}

// EncodeJSONError отправляет ошибку в виде {"error": ..., "fields": {...}}.
func EncodeJSONError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	EncodeJSONResponse(w, status, ErrorResponse{Error: message, Fields: fields})
}
