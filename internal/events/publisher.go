// Package events publishes settled orders to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/punchamoorthee/vendingops/internal/domain"
	"github.com/punchamoorthee/vendingops/internal/metrics"
)

const (
	DefaultTopic   = "vending-orders"
	breakerName    = "kafka-orders"
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEvent is the message body.
type OrderEvent struct {
	Type       string       `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Order      domain.Order `json:"order"`
}

// Publisher hands settled orders to a background loop that writes them
// through a circuit breaker. Settlement never waits on Kafka.
type Publisher struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	queue   chan domain.Order

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewKafkaWriter builds a writer for the comma separated broker list.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewPublisher starts the publishing loop. Call Close to flush and stop it.
func NewPublisher(w MessageWriter, logger *zap.Logger) *Publisher {
	p := &Publisher{
		writer: w,
		logger: logger,
		queue:  make(chan domain.Order, queueSize),
		done:   make(chan struct{}),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)

	go p.run()
	return p
}

// OrderSettled queues the order for publishing. A full queue drops the event.
func (p *Publisher) OrderSettled(_ context.Context, order domain.Order) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- order:
	default:
		metrics.EventPublishFailures.Inc()
		p.logger.Warn("event queue full, dropping order event", zap.Int64("order_id", order.ID))
	}
}

// Close drains queued events, then closes the writer.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	<-p.done
	return p.writer.Close()
}

func (p *Publisher) run() {
	defer close(p.done)
	for order := range p.queue {
		if err := p.publish(order); err != nil {
			metrics.EventPublishFailures.Inc()
			p.logger.Error("order event not published", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}
}

func (p *Publisher) publish(order domain.Order) error {
	status := strings.ToLower(string(order.Status))
	body, err := json.Marshal(OrderEvent{
		Type:       "order." + status,
		OccurredAt: time.Now().UTC(),
		Order:      order,
	})
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order.%s.%d", status, order.ID)),
		Value: body,
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	return err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
