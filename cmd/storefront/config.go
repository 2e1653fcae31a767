package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Endpoint         string        `env:"RUN_ADDRESS"`
	DSN              string        `env:"DATABASE_URI"`
	LogLevel         string        `env:"LOG_LEVEL"`
	Env              string        `env:"ENV"`
	AuthSecretKey    string        `env:"AUTH_SECRET_KEY"`
	AdminLogins      []string      `env:"ADMIN_LOGINS" envSeparator:","`
	StripeSecretKey  string        `env:"STRIPE_SECRET_KEY"`
	WebhookSecret    string        `env:"STRIPE_WEBHOOK_SECRET"`
	Currency         string        `env:"PAYMENT_CURRENCY"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT"`
	SuccessURL       string        `env:"CHECKOUT_SUCCESS_URL"`
	CancelURL        string        `env:"CHECKOUT_CANCEL_URL"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic       string        `env:"KAFKA_TOPIC"`
	OtelExporterURL  string        `env:"OTEL_EXPORTER_URL"`
	ServiceName      string        `env:"SERVICE_NAME"`
	PaymentRateLimit float64       `env:"PAYMENT_RATE_LIMIT"`
	NotifyWorkers    int           `env:"NOTIFY_WORKERS"`
	NotifyQueueSize  int           `env:"NOTIFY_QUEUE_SIZE"`

	// warnings копятся до инициализации логгера
	warnings []string
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func generateRandomString(length int) string {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// NewConfig читает флаги, затем переменные окружения, которые имеют приоритет.
func NewConfig(args []string, environ map[string]string) (Config, error) {
	config := Config{
		LogLevel:         "info",
		Env:              "production",
		Currency:         "usd",
		GatewayTimeout:   10 * time.Second,
		SuccessURL:       "http://localhost:8090/api/payment/success",
		CancelURL:        "http://localhost:8090/checkout/cancel",
		KafkaTopic:       "orders.status",
		ServiceName:      "storefront",
		PaymentRateLimit: 10,
		NotifyWorkers:    2,
		NotifyQueueSize:  100,
	}

	flags := flag.NewFlagSet("storefront", flag.ContinueOnError)
	flags.StringVar(&config.Endpoint, "a", "localhost:8090", "address and port to run server")
	flags.StringVar(&config.DSN, "d", "", "data source name for database connection")
	flags.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := env.Parse(&config, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	config.Currency = strings.ToLower(config.Currency)

	if config.AuthSecretKey == "" {
		if config.IsProduction() {
			config.AuthSecretKey = generateRandomString(32)
			config.warnings = append(config.warnings, "AUTH_SECRET_KEY has to be defined for production environment")
		} else {
			config.AuthSecretKey = "development-key"
		}
	}

	if config.StripeSecretKey == "" {
		config.warnings = append(config.warnings, "STRIPE_SECRET_KEY is not set, gateway calls will fail")
	}
	if config.WebhookSecret == "" {
		config.warnings = append(config.warnings, "STRIPE_WEBHOOK_SECRET is not set, every webhook will be rejected")
	}

	return config, nil
}

// environment возвращает переменные окружения процесса.
func environment() map[string]string {
	result := map[string]string{}
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			result[key] = value
		}
	}
	return result
}
