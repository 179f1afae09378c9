package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	keyConfirmed         = "booking.confirmed"
	keyCancelled         = "booking.cancelled"
	keyCancelledInternal = "booking.cancelled.internal"
)

// AMQPNotifier publishes notification jobs to a topic exchange consumed by
// the email worker.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	opsEmail string
	logger   zerolog.Logger
}

func NewAMQP(url, exchange, opsEmail string, logger zerolog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPNotifier{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		opsEmail: opsEmail,
		logger:   logger,
	}, nil
}

func (n *AMQPNotifier) BookingConfirmed(ctx context.Context, job ConfirmationJob) error {
	return n.publish(ctx, keyConfirmed, job)
}

func (n *AMQPNotifier) BookingCancelled(ctx context.Context, job CancellationJob) error {
	err := n.publish(ctx, keyCancelled, job)

	if n.opsEmail != "" {
		internal := job
		internal.Email = n.opsEmail
		if opsErr := n.publish(ctx, keyCancelledInternal, internal); opsErr != nil {
			n.logger.Warn().Err(opsErr).Str("booking_id", job.BookingID).Msg("internal cancellation copy failed")
		}
	}
	return err
}

func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

func (n *AMQPNotifier) publish(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", key, err)
	}
	if err := n.ch.PublishWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}
