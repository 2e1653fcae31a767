package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Log глобальный логгер, инициализируется функцией Initialize.
// По умолчанию используется заглушка zap.NewNop(), которая не выводит никаких логов.
var Log *zap.Logger = zap.NewNop()

// Initialize инициализирует логгер с заданным уровнем логирования и средой выполнения.
// Параметры:
// - level: уровень логирования (например, "debug", "info", "warn", "error").
// - env: среда выполнения ("development" или "production").
func Initialize(level, env string) error {
	logLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("ошибка парсинга уровня логирования: %w", err)
	}

	var config zap.Config

	if env == "development" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = logLevel

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("ошибка построения логгера: %w", err)
	}

	Log = logger

	return nil
}

// responseWriter оборачивает http.ResponseWriter и сохраняет код статуса ответа.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestLogger является middleware, которое логирует информацию о каждом HTTP-запросе.
// Логируются URI, метод запроса, длительность обработки, код статуса ответа и идентификатор запроса.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		wrappedWriter := newResponseWriter(w)

		next.ServeHTTP(wrappedWriter, r)

		Log.Info("Запрос обработан",
			zap.String("URI", r.RequestURI),
			zap.String("метод", r.Method),
			zap.Duration("длительность", time.Since(startTime)),
			zap.Int("статус", wrappedWriter.statusCode),
			zap.String("requestID", middleware.GetReqID(r.Context())),
		)
	})
}
