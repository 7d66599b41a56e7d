package mq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// 未初始化时只做追踪
	mqMessages metric.Int64Counter
	mqDuration metric.Float64Histogram
)

// InitMQMetrics 注册消息计数和耗时，成败通过 messaging.status 区分
func InitMQMetrics(meter metric.Meter) error {
	var err error
	if mqMessages, err = meter.Int64Counter(
		"mq.messages.total",
		metric.WithDescription("RabbitMQ messages published or handled"),
		metric.WithUnit("{message}"),
	); err != nil {
		return err
	}

	// 铸造任务包含等待回执，上界放到两分钟
	mqDuration, err = meter.Float64Histogram(
		"mq.message.duration",
		metric.WithDescription("RabbitMQ publish and handling duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120),
	)
	return err
}

func tracer(serviceName string) trace.Tracer {
	return otel.Tracer(serviceName + ".rabbitmq")
}

// Publish 发布消息，当前 span 的上下文写进消息头，消费端据此续上调用链
func Publish(ctx context.Context, ch *amqp.Channel, serviceName, exchange, routingKey string, msg amqp.Publishing) error {
	start := time.Now()

	ctx, span := tracer(serviceName).Start(ctx, "rabbitmq.publish "+routingKey,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			semconv.MessagingMessageID(msg.MessageId),
		),
	)
	defer span.End()

	// 复制一份，不改调用方的 map
	headers := make(headerCarrier, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, headers)
	msg.Headers = amqp.Table(headers)

	err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	record(ctx, "publish", routingKey, err, time.Since(start))
	return err
}

// StartDeliverySpan 从消息头恢复上游追踪上下文，开启处理 span
func StartDeliverySpan(ctx context.Context, serviceName, queue string, msg amqp.Delivery) (context.Context, trace.Span) {
	parent := otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))

	return tracer(serviceName).Start(parent, "rabbitmq.process "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(queue),
			semconv.MessagingRabbitmqDestinationRoutingKey(msg.RoutingKey),
			semconv.MessagingMessageID(msg.MessageId),
			attribute.Bool("messaging.rabbitmq.redelivered", msg.Redelivered),
		),
	)
}

// RecordDelivery 记录一条消息的处理结果
func RecordDelivery(ctx context.Context, queue string, err error, d time.Duration) {
	record(ctx, "process", queue, err, d)
}

func record(ctx context.Context, operation, destination string, err error, d time.Duration) {
	if mqMessages == nil || mqDuration == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.destination.name", destination),
		attribute.String("messaging.status", status),
	)
	mqMessages.Add(ctx, 1, attrs)
	mqDuration.Record(ctx, d.Seconds(), attrs)
}

// headerCarrier 让 AMQP 消息头充当 propagation.TextMapCarrier，非字符串值忽略
type headerCarrier amqp.Table

func (h headerCarrier) Get(key string) string {
	s, _ := h[key].(string)
	return s
}

func (h headerCarrier) Set(key, value string) { h[key] = value }

func (h headerCarrier) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}
