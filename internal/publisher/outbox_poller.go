package publisher

import (
	"context"
	"time"

	r "github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "checkout-orders"

type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Recoverer repairs attempts left behind by crashes and timeouts.
type Recoverer interface {
	RecoverPartialSettlements(ctx context.Context, minAge time.Duration, limit int) (int, error)
	ResolveStaleConfirmations(ctx context.Context, minAge time.Duration, limit int) (int, error)
	ClearSettledCarts(ctx context.Context, limit int) (int, error)
}

type Config struct {
	Topic        string
	EventTick    time.Duration
	RecoveryTick time.Duration
	// MinAge keeps the recoverer away from attempts that are still being served.
	MinAge    time.Duration
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		Topic:        DefaultTopic,
		EventTick:    time.Second,
		RecoveryTick: 30 * time.Second,
		MinAge:       time.Minute,
		BatchSize:    100,
	}
}

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	minAge       time.Duration
	batchSize    int
	events       EventStore
	recoverer    Recoverer
	writer       *kafka.Writer
}

func NewOutboxPoller(events EventStore, recoverer Recoverer, cfg Config, brokers ...string) *OutboxPoller {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newPoller(events, recoverer, cfg, w)
}

func newPoller(events EventStore, recoverer Recoverer, cfg Config, w *kafka.Writer) *OutboxPoller {
	def := DefaultConfig()
	if cfg.EventTick <= 0 {
		cfg.EventTick = def.EventTick
	}
	if cfg.RecoveryTick <= 0 {
		cfg.RecoveryTick = def.RecoveryTick
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &OutboxPoller{
		eventTick:    cfg.EventTick,
		recoveryTick: cfg.RecoveryTick,
		minAge:       cfg.MinAge,
		batchSize:    cfg.BatchSize,
		events:       events,
		recoverer:    recoverer,
		writer:       w,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.PublishPending(ctx)
		case <-recoveryTicker.C:
			p.Reconcile(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// PublishPending sends unprocessed outbox events in id order. An event that fails to publish stays
// in the outbox for the next tick, so consumers must tolerate duplicates.
func (p *OutboxPoller) PublishPending(ctx context.Context) int {
	log := logger.FromContext(ctx)
	events, err := p.events.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		log.Error("failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			log.Error("failed to publish outbox event", "event_id", event.ID, "error", err)
			continue
		}
		if err := p.events.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error("failed to mark outbox event as processed", "event_id", event.ID, "error", err)
			continue
		}
		published++
	}
	return published
}

// Reconcile runs one pass of every recovery job. A failing job does not stop the others.
func (p *OutboxPoller) Reconcile(ctx context.Context) {
	if p.recoverer == nil {
		return
	}
	log := logger.FromContext(ctx)

	if n, err := p.recoverer.ResolveStaleConfirmations(ctx, p.minAge, p.batchSize); err != nil {
		log.Error("failed to resolve stale confirmations", "error", err)
	} else if n > 0 {
		log.Info("resolved stale confirmations", "count", n)
	}
	if n, err := p.recoverer.RecoverPartialSettlements(ctx, p.minAge, p.batchSize); err != nil {
		log.Error("failed to recover partial settlements", "error", err)
	} else if n > 0 {
		log.Info("recovered partial settlements", "count", n)
	}
	if n, err := p.recoverer.ClearSettledCarts(ctx, p.batchSize); err != nil {
		log.Error("failed to clear settled carts", "error", err)
	} else if n > 0 {
		log.Info("cleared settled carts", "count", n)
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
