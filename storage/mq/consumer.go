package mq

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	pkgmq "github.com/MehulDev0228/aurin-platform-sub001/pkg/mq"
)

// MessageHandler 返回 error 时消息会被 nack
type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞直到 ctx 取消或 channel 关闭
// 处理失败的消息首次投递时重新入队，再次失败则丢弃，由扫描任务兜底
func Consume(ctx context.Context, opts ConsumeOptions) error {
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	err = serve(ctx, msgs, opts.PrefetchCount, func(ctx context.Context, msg amqp.Delivery) {
		handle(ctx, opts, msg)
	})
	if stderrors.Is(err, errDeliveriesClosed) {
		return fmt.Errorf("consumer channel closed for queue %s", opts.Queue)
	}
	return err
}

var errDeliveriesClosed = stderrors.New("deliveries channel closed")

// serve 最多 concurrency 条消息并行处理，同一成就的互斥由处理函数内的锁保证
// 退出前等待在途消息处理完并确认
func serve(ctx context.Context, msgs <-chan amqp.Delivery, concurrency int, fn func(context.Context, amqp.Delivery)) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = msg.Nack(false, true)
				return nil
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				fn(ctx, msg)
			}()
		}
	}
}

func handle(ctx context.Context, opts ConsumeOptions, msg amqp.Delivery) {
	msgCtx, span := pkgmq.StartDeliverySpan(ctx, serviceName, opts.Queue, msg)
	defer span.End()

	start := time.Now()
	err := opts.Handler(msgCtx, msg.Body)
	pkgmq.RecordDelivery(msgCtx, opts.Queue, err, time.Since(start))

	if err != nil {
		logger.Logger.Error("Failed to process message",
			zap.String("queue", opts.Queue),
			zap.String("message_id", msg.MessageId),
			zap.Bool("redelivered", msg.Redelivered),
			zap.Error(err),
		)
		span.RecordError(err)
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}

	_ = msg.Ack(false)
}
