// Package events publishes order lifecycle notifications for the downstream
// payment and notification services. Publishing happens after the placement
// transaction commits and never rolls an order back.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrDisabled = errors.New("event publishing disabled")

type PlacedItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type OrderPlaced struct {
	OrderID     string       `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	UserID      string       `json:"user_id"`
	TotalAmount string       `json:"total_amount"`
	Items       []PlacedItem `json:"items"`
	PlacedAt    time.Time    `json:"placed_at"`
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, ev OrderPlaced) error
}

// KafkaPublisher writes JSON order events keyed by order id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher from a comma-separated broker list.
// An empty list yields a disabled publisher.
func NewKafkaPublisher(brokersCSV, topic string) *KafkaPublisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return &KafkaPublisher{}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Enabled() bool { return p.writer != nil }

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, ev OrderPlaced) error {
	if p.writer == nil {
		return ErrDisabled
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

// MemoryPublisher records events for tests and the in-memory wiring.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []OrderPlaced
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) PublishOrderPlaced(ctx context.Context, ev OrderPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *MemoryPublisher) Events() []OrderPlaced {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderPlaced(nil), p.events...)
}
