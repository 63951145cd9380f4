package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"papertrade/internal/domain"
)

// TradeExecutedEvent is the payload published for every committed trade
type TradeExecutedEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Shares     int64     `json:"shares"`
	ShareDelta int64     `json:"share_delta"`
	Price      string    `json:"price"`
	TotalValue string    `json:"total_value"`
	ExecutedAt time.Time `json:"executed_at"`
}

// NewTradeExecutedEvent builds the event for a ledger entry
func NewTradeExecutedEvent(entry *domain.LedgerEntry) TradeExecutedEvent {
	return TradeExecutedEvent{
		EventID:    entry.ID.String(),
		UserID:     entry.UserID.String(),
		Symbol:     entry.Symbol,
		Side:       entry.Side(),
		Shares:     entry.Shares(),
		ShareDelta: entry.ShareDelta,
		Price:      entry.Price.StringFixed(domain.PriceScale),
		TotalValue: entry.TotalValue.StringFixed(domain.PriceScale),
		ExecutedAt: entry.CreatedAt,
	}
}

// messageWriter is the part of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes trade events to a Kafka topic, keyed by user so one
// user's trades stay ordered within a partition
type Publisher struct {
	writer messageWriter
}

// Writer tuning. One trade is one message, so waiting for a batch to fill
// only adds latency; a dead broker gives up after a few attempts.
const (
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 2 * time.Second
	maxAttempts  = 3
)

// NewPublisher creates a Publisher for the given brokers and topic
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: newWriter(brokers, topic),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		MaxAttempts:  maxAttempts,
	}
}

// PublishTrade implements domain.TradeEventPublisher
func (p *Publisher) PublishTrade(ctx context.Context, entry *domain.LedgerEntry) error {
	data, err := json.Marshal(NewTradeExecutedEvent(entry))
	if err != nil {
		return fmt.Errorf("failed to marshal trade event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.UserID.String()),
		Value: data,
		Time:  entry.CreatedAt,
	}); err != nil {
		return fmt.Errorf("failed to publish trade event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) PublishTrade(ctx context.Context, entry *domain.LedgerEntry) error { return nil }
func (NopPublisher) Close() error { return nil }

var (
	_ domain.TradeEventPublisher = (*Publisher)(nil)
	_ domain.TradeEventPublisher = NopPublisher{}
)
