package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/tracing"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const produceTimeout = 10 * time.Second

// KafkaPublisher публикует изменения статусов заказов в топик Kafka.
// Ключ записи номер заказа, поэтому изменения одного заказа попадают в одну партицию по порядку.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	tracer trace.Tracer
}

func NewKafkaPublisher(brokers []string, topic, clientID string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProduceRequestTimeout(produceTimeout),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ClientID(clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Kafka-клиента: %w", err)
	}

	return &KafkaPublisher{
		client: client,
		topic:  topic,
		tracer: otel.Tracer("storefront/events"),
	}, nil
}

func newRecord(ctx context.Context, topic string, change models.OrderStatusChange) (*kgo.Record, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("ошибка кодирования уведомления: %w", err)
	}

	return &kgo.Record{
		Topic:   topic,
		Key:     []byte(change.OrderID),
		Value:   data,
		Headers: tracing.KafkaHeaders(ctx),
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, change models.OrderStatusChange) error {
	ctx, span := p.tracer.Start(ctx, "Infrastructure kafka.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("kafka.topic", p.topic),
		attribute.String("order.id", change.OrderID),
	)

	record, err := newRecord(ctx, p.topic, change)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("ошибка отправки в Kafka: %w", err)
	}

	logger.Log.Debug("status change published",
		zap.String("topic", p.topic),
		zap.String("orderID", change.OrderID),
		zap.String("orderStatus", string(change.OrderStatus)),
	)
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
