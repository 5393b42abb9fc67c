package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	calls  int
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestPublisherWritesKeyedOrderEvents(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, zaptest.NewLogger(t))

	p.OrderSettled(context.Background(), domain.Order{ID: 3, Status: domain.OrderCompleted, TotalAmount: 93})
	p.OrderSettled(context.Background(), domain.Order{ID: 4, Status: domain.OrderFailed, FailureReason: "cannot provide exact change"})
	require.NoError(t, p.Close())

	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, "order.completed.3", string(w.msgs[0].Key))
	assert.Equal(t, "order.failed.4", string(w.msgs[1].Key))

	var ev OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, "order.failed", ev.Type)
	assert.Equal(t, int64(4), ev.Order.ID)
	assert.Equal(t, "cannot provide exact change", ev.Order.FailureReason)
}

func TestPublisherIgnoresEventsAfterClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, zaptest.NewLogger(t))
	require.NoError(t, p.Close())

	p.OrderSettled(context.Background(), domain.Order{ID: 1, Status: domain.OrderCompleted})
	assert.Empty(t, w.msgs)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisher(w, zaptest.NewLogger(t))

	for i := int64(1); i <= 8; i++ {
		p.OrderSettled(context.Background(), domain.Order{ID: i, Status: domain.OrderCompleted})
	}
	require.NoError(t, p.Close())

	assert.Equal(t, gobreaker.StateOpen, p.breaker.State())
	assert.Equal(t, 5, w.calls)
}
