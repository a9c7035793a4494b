package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/repository/implementation"
	"ai-sales-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return b.err
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *recordingNotifier) Send(userID string, _ string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.users)
}

func newPipeline(t *testing.T, bus EventPublisher, notifier TurnNotifier) (IPublisherService, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	consumer := NewConsumerService(pubSub, "turns", implementation.NewTranscriptRepository(rdb), bus, notifier, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	return NewPublisherService("turns", pubSub), rdb
}

func TestTurnPipelineFansOut(t *testing.T) {
	bus := &recordingBus{}
	notifier := &recordingNotifier{}
	publisher, rdb := newPipeline(t, bus, notifier)

	record := events.NewTurnRecord("42")
	record.Strategy = "price quote"
	record.UserMessage = "Combien coûte l'assurance auto ?"
	record.AgentMessage = "Notre offre démarre à 40 DT par mois."

	require.NoError(t, publisher.PublishTurn(context.Background(), record))

	require.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, bus.count())
	assert.Equal(t, events.TypeConversationTurn, bus.events[0].EventType())

	stored, err := implementation.NewTranscriptRepository(rdb).List(context.Background(), "42", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, record.ID, stored[0].ID)
	assert.Equal(t, record.AgentMessage, stored[0].AgentMessage)
}

func TestTurnPipelineSurvivesBusFailure(t *testing.T) {
	bus := &recordingBus{err: errors.New("nats: no responders")}
	notifier := &recordingNotifier{}
	publisher, _ := newPipeline(t, bus, notifier)

	require.NoError(t, publisher.PublishTurn(context.Background(), events.NewTurnRecord("1")))
	require.NoError(t, publisher.PublishTurn(context.Background(), events.NewTurnRecord("2")))

	require.Eventually(t, func() bool { return notifier.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, bus.count())
}

func TestTurnPipelineSkipsMalformedPayload(t *testing.T) {
	notifier := &recordingNotifier{}
	publisher, _ := newPipeline(t, nil, notifier)

	require.NoError(t, publisher.Publish(context.Background(), []byte("not json")))
	require.NoError(t, publisher.PublishTurn(context.Background(), events.NewTurnRecord("9")))

	require.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
