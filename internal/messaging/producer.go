package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Producer publishes issue lifecycle events to NATS. Subjects are prefixed
// so a single NATS cluster can carry events from multiple deployments.
type Producer struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

func NewProducer(url string, prefix string, logger *slog.Logger) (*Producer, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "prefix", prefix)

	return &Producer{
		conn:   nc,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (p *Producer) Publish(ctx context.Context, subject string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal event", "subject", subject, "error", err)
		return err
	}

	if p.prefix != "" {
		subject = p.prefix + "." + subject
	}

	if err := p.conn.Publish(subject, valueBytes); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event to NATS", "subject", subject, "error", err)
		return err
	}

	return nil
}

func (p *Producer) Close() error {
	p.conn.Close()
	return nil
}
