package tracing

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/propagation"
)

const traceparentHeader = "traceparent"

// KafkaHeaders добавляет `traceparent` текущего спана в заголовки записи.
func KafkaHeaders(ctx context.Context) []kgo.RecordHeader {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	traceparent, ok := carrier[traceparentHeader]
	if !ok {
		return nil
	}

	return []kgo.RecordHeader{{Key: traceparentHeader, Value: []byte(traceparent)}}
}
