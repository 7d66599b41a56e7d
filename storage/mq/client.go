package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

// Init 建立 RabbitMQ 连接，server 和 worker 共用
func Init(url string) error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(url)
		if connErr != nil {
			return
		}

		go func() {
			reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
			if ok && reason != nil {
				logger.Logger.Error("RabbitMQ connection closed",
					zap.String("component", "rabbitmq"),
					zap.String("reason", reason.Reason),
					zap.Int("code", reason.Code),
				)
			}
		}()
	})
	return connErr
}

func Connection() *amqp.Connection {
	return conn
}

// Setup 在独立的 channel 上声明拓扑
func Setup(declare func(ch *amqp.Channel) error) error {
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open setup channel: %w", err)
	}
	defer ch.Close()

	return declare(ch)
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil && !publisherCh.IsClosed() {
		_ = publisherCh.Close()
	}
	publisherCh = nil
	pubMutex.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
