package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartQualityIssueConsumer connects to RabbitMQ, declares the quality issue
// queue (durable) and appends one line per event to sink.  It reconnects with
// exponential backoff and only returns once ctx is cancelled.  Malformed
// messages are rejected without requeue so they cannot loop.
func StartQualityIssueConsumer(ctx context.Context, url string, sink io.Writer, log *slog.Logger) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("quality consumer: dial failed", "err", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, sink, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("quality consumer: consume loop ended, reconnecting", "err", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink io.Writer, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("quality consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(QualityIssueQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QualityIssueQueue, "", false, false, false, false, nil)
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
			if err := handleMessage(sink, d.Body); err != nil {
				log.Error("quality consumer: handle message failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(sink io.Writer, body []byte) error {
	var ev QualityIssueEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Dimension == "" {
		return errors.New("event without dimension")
	}
	if _, err := io.WriteString(sink, FormatAlert(ev)); err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	return nil
}

// FormatAlert renders an event as a single alert log line.
func FormatAlert(ev QualityIssueEvent) string {
	return fmt.Sprintf("[%s] Quality issue | dimension=%s | value=%q | fail_rate=%.2f%% | threshold=%.2f%% | failed=%d/%d | window=%s..%s\n",
		ev.DetectedAt, ev.Dimension, ev.Value, ev.FailRate, ev.Threshold, ev.FailCount, ev.Total, ev.WindowStart, ev.WindowEnd)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
