package mq

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAcker struct {
	mu     sync.Mutex
	nacked []uint64
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error { return nil }

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error { return nil }

func TestServeHandlesDeliveriesConcurrently(t *testing.T) {
	const concurrency = 3
	msgs := make(chan amqp.Delivery, 6)
	acker := &recordingAcker{}
	for i := 1; i <= 6; i++ {
		msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: uint64(i)}
	}
	close(msgs)

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		handled  atomic.Int32
	)
	// 前三条消息互相等待，串行处理会卡死
	barrier := make(chan struct{})
	var arrived atomic.Int32

	err := serve(context.Background(), msgs, concurrency, func(ctx context.Context, msg amqp.Delivery) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		if msg.DeliveryTag <= concurrency {
			if arrived.Add(1) == concurrency {
				close(barrier)
			}
			select {
			case <-barrier:
			case <-time.After(5 * time.Second):
				t.Error("deliveries were not handled in parallel")
			}
		}
		handled.Add(1)
	})

	require.ErrorIs(t, err, errDeliveriesClosed)
	// serve 返回前等待所有在途处理完成
	assert.Equal(t, int32(6), handled.Load())
	assert.LessOrEqual(t, peak.Load(), int32(concurrency))
	assert.Empty(t, acker.nacked)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan amqp.Delivery)

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, msgs, 2, func(context.Context, amqp.Delivery) {})
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
