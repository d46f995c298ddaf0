package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/microwire-quality/internal/queue"
)

// defaultDialTimeout bounds connecting and the AMQP handshake when the
// caller's context has no earlier deadline.
const defaultDialTimeout = 5 * time.Second

// IssuePublisher delivers quality issue events to downstream consumers.
// It returns how many events went out before the first failure.
type IssuePublisher interface {
	PublishQualityIssues(ctx context.Context, evs []queue.QualityIssueEvent) (int, error)
}

// AMQPPublisher publishes events to RabbitMQ over one connection per batch.
type AMQPPublisher struct {
	url         string
	dialTimeout time.Duration
	log         *slog.Logger
}

func NewAMQPPublisher(url string, log *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, dialTimeout: defaultDialTimeout, log: log}
}

// dial opens a connection whose TCP connect and handshake honour ctx.
func (p *AMQPPublisher) dial(ctx context.Context) (*amqp.Connection, error) {
	dctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	var (
		mu  sync.Mutex
		raw net.Conn
	)
	cfg := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			c, err := d.DialContext(dctx, network, addr)
			if err != nil {
				return nil, err
			}
			// Cleared by the client once the handshake completes.
			deadline, _ := dctx.Deadline()
			if err := c.SetDeadline(deadline); err != nil {
				_ = c.Close()
				return nil, err
			}
			mu.Lock()
			raw = c
			mu.Unlock()
			return c, nil
		},
	}
	// Cancellation before the deadline unblocks a stalled handshake.
	stop := context.AfterFunc(dctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if raw != nil {
			_ = raw.SetDeadline(time.Now())
		}
	})
	conn, err := amqp.DialConfig(p.url, cfg)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rabbitmq dial: %w", ctx.Err())
		}
		return nil, err
	}
	return conn, nil
}

// PublishQualityIssues sends evs as persistent JSON messages to the quality
// issue queue via the default exchange.  An empty batch does not connect.
// Publishing stops at the first error.
func (p *AMQPPublisher) PublishQualityIssues(ctx context.Context, evs []queue.QualityIssueEvent) (int, error) {
	if len(evs) == 0 {
		return 0, nil
	}
	conn, err := p.dial(ctx)
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", "err", err)
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", "err", err)
		return 0, err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.QualityIssueQueue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", "err", err)
		return 0, err
	}

	for i, ev := range evs {
		body, err := json.Marshal(ev)
		if err != nil {
			return i, err
		}
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		if err := ch.PublishWithContext(ctx, "", queue.QualityIssueQueue, false, false, pub); err != nil {
			p.log.Warn("rabbitmq: publish failed", "err", err)
			return i, err
		}
	}
	return len(evs), nil
}
