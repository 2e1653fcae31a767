package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults and flags", func(t *testing.T) {
		config, err := NewConfig([]string{"-a", "0.0.0.0:9000", "-d", "postgres://localhost/shop"}, map[string]string{"ENV": "development"})
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0:9000", config.Endpoint)
		assert.Equal(t, "postgres://localhost/shop", config.DSN)
		assert.Equal(t, "usd", config.Currency)
		assert.Equal(t, 10*time.Second, config.GatewayTimeout)
		assert.Equal(t, "development-key", config.AuthSecretKey)
		assert.False(t, config.IsProduction())
	})

	t.Run("environment wins over flags", func(t *testing.T) {
		config, err := NewConfig([]string{"-a", "0.0.0.0:9000"}, map[string]string{
			"RUN_ADDRESS":        "127.0.0.1:8081",
			"PAYMENT_CURRENCY":   "EUR",
			"GATEWAY_TIMEOUT":    "3s",
			"KAFKA_BROKERS":      "k1:9092,k2:9092",
			"ADMIN_LOGINS":       "root,ops",
			"PAYMENT_RATE_LIMIT": "2.5",
			"AUTH_SECRET_KEY":    "secret",
		})
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:8081", config.Endpoint)
		assert.Equal(t, "eur", config.Currency)
		assert.Equal(t, 3*time.Second, config.GatewayTimeout)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, config.KafkaBrokers)
		assert.Equal(t, []string{"root", "ops"}, config.AdminLogins)
		assert.Equal(t, 2.5, config.PaymentRateLimit)
		assert.Equal(t, "secret", config.AuthSecretKey)
		assert.True(t, config.IsProduction())
	})

	t.Run("production without a secret generates one", func(t *testing.T) {
		config, err := NewConfig(nil, map[string]string{})
		require.NoError(t, err)

		assert.NotEmpty(t, config.AuthSecretKey)
		assert.NotEqual(t, "development-key", config.AuthSecretKey)
		assert.Contains(t, config.warnings, "AUTH_SECRET_KEY has to be defined for production environment")
	})

	t.Run("malformed duration", func(t *testing.T) {
		_, err := NewConfig(nil, map[string]string{"GATEWAY_TIMEOUT": "soon"})
		assert.Error(t, err)
	})
}
