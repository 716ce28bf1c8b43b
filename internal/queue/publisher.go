package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/tooling-tracker/internal/config"
	"github.com/iliyamo/tooling-tracker/internal/logger"
	"github.com/iliyamo/tooling-tracker/internal/model"
)

// Publisher sends committed tooling events to a durable queue.  Each call
// opens its own connection; events are published in the order given.
type Publisher struct {
	cfg config.QueueConfig
	log *logger.Logger
}

func NewPublisher(cfg config.QueueConfig, log *logger.Logger) *Publisher {
	return &Publisher{cfg: cfg, log: log}
}

// Publish implements ports.EventPublisher.  Errors are logged and
// returned; callers treat them as non-fatal.
func (p *Publisher) Publish(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", "error", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, e := range events {
		body, err := json.Marshal(NewToolingEventMessage(e))
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", e.ID, err)
		}
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Type:         "tooling." + string(e.Action),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		if err := ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, pub); err != nil {
			p.log.Warn("rabbitmq publish failed", "event_id", e.ID, "error", err)
			return fmt.Errorf("publish event %d: %w", e.ID, err)
		}
	}
	return nil
}
