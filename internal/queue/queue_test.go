package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/mintworker"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(4, 1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type published struct {
	exchange   string
	routingKey string
	messageID  string
	body       []byte
}

type fakeProcessor struct {
	ids []int64
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, id int64) (mintworker.Result, error) {
	f.ids = append(f.ids, id)
	if f.err != nil {
		return mintworker.Result{}, f.err
	}
	return mintworker.Result{Outcome: mintworker.OutcomeMinted, Attempts: 1}, nil
}

func TestProducerPublishesToMintQueue(t *testing.T) {
	var sent []published
	p := NewProducerWith(func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		sent = append(sent, published{exchange, routingKey, messageID, raw})
		return nil
	})

	require.NoError(t, p.DispatchMint(context.Background(), 42, model.MintReasonIssued))
	require.Len(t, sent, 1)
	assert.Equal(t, ExchangeMint, sent[0].exchange)
	assert.Equal(t, RoutingKeyMintRequest, sent[0].routingKey)
	assert.Contains(t, sent[0].messageID, "mint_")

	var msg model.MintRequestMessage
	require.NoError(t, json.Unmarshal(sent[0].body, &msg))
	assert.Equal(t, int64(42), msg.AchievementID)
	assert.Equal(t, model.MintReasonIssued, msg.Reason)
	assert.Equal(t, sent[0].messageID, msg.MessageID)
}

func TestProducerReturnsPublishError(t *testing.T) {
	boom := stderrors.New("channel closed")
	p := NewProducerWith(func(context.Context, string, string, string, interface{}) error { return boom })

	err := p.DispatchMint(context.Background(), 1, model.MintReasonRetry)
	assert.ErrorIs(t, err, boom)
}

func TestMintHandlerRoundTrip(t *testing.T) {
	proc := &fakeProcessor{}
	handler := MintHandler(proc)

	var body []byte
	p := NewProducerWith(func(ctx context.Context, _, _, _ string, msg interface{}) error {
		var err error
		body, err = json.Marshal(msg)
		return err
	})
	require.NoError(t, p.DispatchMint(context.Background(), 7, model.MintReasonRedispatch))

	require.NoError(t, handler(context.Background(), body))
	assert.Equal(t, []int64{7}, proc.ids)
}

func TestMintHandlerDropsMalformed(t *testing.T) {
	proc := &fakeProcessor{}
	handler := MintHandler(proc)

	assert.NoError(t, handler(context.Background(), []byte("not json")))
	assert.NoError(t, handler(context.Background(), []byte(`{"achievement_id":"0"}`)))
	assert.Empty(t, proc.ids)
}

func TestMintHandlerSurfacesInfrastructureErrors(t *testing.T) {
	proc := &fakeProcessor{err: stderrors.New("database is down")}
	handler := MintHandler(proc)

	err := handler(context.Background(), []byte(`{"message_id":"m1","achievement_id":"9","reason":"issued"}`))
	assert.Error(t, err)
	assert.Equal(t, []int64{9}, proc.ids)
}
