// Package queue 铸造任务的 RabbitMQ 投递与消费
package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeMint          = "aurin.mint"
	RoutingKeyMintRequest = "mint.request"
	QueueMintRequests     = "aurin.mint.requests"

	exchangeMintDead = "aurin.mint.dlx"
	queueMintDead    = "aurin.mint.dead"
)

// DeclareTopology 声明交换机和队列，server 和 worker 启动时都会调用，声明是幂等的
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeMint, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(exchangeMintDead, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(queueMintDead, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(queueMintDead, "", exchangeMintDead, false, nil); err != nil {
		return err
	}

	// 被丢弃的消息进入死信队列留档，真正的恢复靠扫描任务
	if _, err := ch.QueueDeclare(QueueMintRequests, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": exchangeMintDead,
	}); err != nil {
		return err
	}
	return ch.QueueBind(QueueMintRequests, RoutingKeyMintRequest, ExchangeMint, false, nil)
}
