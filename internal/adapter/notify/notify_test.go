package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sink struct {
	mu     sync.Mutex
	got    []domain.Event
	block  chan struct{}
	failOn domain.EventType
}

func (s *sink) Notify(_ context.Context, ev domain.Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, ev)
	if ev.Type == s.failOn {
		return errors.New("downstream unavailable")
	}
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestDispatcherDeliversQueuedEvents(t *testing.T) {
	s := &sink{failOn: domain.EventTradeCancelled}
	d := NewDispatcher(s, zap.NewNop(), 16, 2)

	failedBefore := testutil.ToFloat64(metrics.NotificationsFailed)
	for _, typ := range []domain.EventType{domain.EventTradeCreated, domain.EventTradePaid, domain.EventTradeCancelled} {
		require.NoError(t, d.Notify(context.Background(), domain.Event{Type: typ, TradeID: "t1"}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, 3, s.count())
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(metrics.NotificationsFailed))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	s := &sink{block: make(chan struct{})}
	d := NewDispatcher(s, zap.NewNop(), 1, 1)
	droppedBefore := testutil.ToFloat64(metrics.NotificationsDropped)

	// the worker holds one event, the queue holds one more
	require.NoError(t, d.Notify(context.Background(), domain.Event{Type: domain.EventTradeCreated}))
	assert.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Notify(context.Background(), domain.Event{Type: domain.EventTradePaid}))

	start := time.Now()
	require.NoError(t, d.Notify(context.Background(), domain.Event{Type: domain.EventTradeCompleted}))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Notify must not block")
	assert.Equal(t, droppedBefore+1, testutil.ToFloat64(metrics.NotificationsDropped))

	close(s.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 2, s.count())

	// after Close events are discarded
	require.NoError(t, d.Notify(context.Background(), domain.Event{Type: domain.EventTradePaid}))
	assert.Equal(t, 2, s.count())
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByTrade(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}
	ev := domain.Event{
		ID: "e1", Type: domain.EventTradePaid, OfferID: "o1", TradeID: "t1", Actor: "buyer",
		Amount: decimal.RequireFromString("60"), Currency: "USDT", OccurredAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, p.Notify(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "t1", string(msg.Key))
	assert.Equal(t, ev.OccurredAt, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "trade.paid", string(msg.Headers[0].Value))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.TradeID, decoded.TradeID)
	assert.True(t, decoded.Amount.Equal(ev.Amount))

	w.err = errors.New("broker down")
	err := p.Notify(context.Background(), ev)
	assert.ErrorContains(t, err, "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestFanoutReportsFirstError(t *testing.T) {
	ok := &sink{}
	bad := &sink{failOn: domain.EventOfferCreated}
	f := Fanout{bad, ok, NewLogPublisher(zap.NewNop())}
	err := f.Notify(context.Background(), domain.Event{Type: domain.EventOfferCreated, OfferID: "o1"})
	assert.Error(t, err)
	assert.Equal(t, 1, ok.count())
}
