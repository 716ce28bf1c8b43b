package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/tooling-tracker/internal/config"
	"github.com/iliyamo/tooling-tracker/internal/logger"
)

// JournalConsumer appends one logbook line per tooling event to a file.
type JournalConsumer struct {
	cfg config.QueueConfig
	log *logger.Logger
}

func NewJournalConsumer(cfg config.QueueConfig, log *logger.Logger) *JournalConsumer {
	return &JournalConsumer{cfg: cfg, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with backoff whenever
// the broker goes away.
func (c *JournalConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.log.Warn("journal consumer: dial failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("journal consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *JournalConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("journal consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.log.Error("journal consumer: handle message failed", "error", err)
				_ = d.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *JournalConsumer) handle(body []byte) error {
	var m ToolingEventMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return AppendJournal(c.cfg.JournalPath, m)
}

// AppendJournal writes m as one line to the journal file at path.
func AppendJournal(path string, m ToolingEventMessage) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(JournalLine(m)); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// JournalLine renders m in logbook order.
func JournalLine(m ToolingEventMessage) string {
	return fmt.Sprintf("[%s] %s | batch=%s | %s -> %s | bm=%q | role=%q | position=%q | shift=%q | reason=%q | dim=%s | new_dim=%s | user=%q\n",
		m.HappenedAt, m.Action, m.BatchNo, m.FromStatus, m.ToStatus, m.MachineName, m.Role, m.Position,
		m.Shift, m.Reason, dash(m.Dimension), dash(m.NewDimension), m.UserName)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
