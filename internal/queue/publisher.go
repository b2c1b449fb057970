package queue

import (
    "context"
    "encoding/json"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends domain events to RabbitMQ.  Each publish opens its own
// connection so a broker outage never holds state in the request path.
// Errors are logged and returned; callers may ignore them.
type Publisher struct {
    url string
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher {
    return &Publisher{url: url}
}

// PublishSessionCancelled publishes ev to the session.cancelled queue as a
// persistent JSON message.
func (p *Publisher) PublishSessionCancelled(ctx context.Context, ev SessionCancelledEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        slog.ErrorContext(ctx, "rabbitmq: marshal event failed", "error", err)
        return err
    }
    return p.publish(ctx, SessionCancelledQueue, body)
}

func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        slog.ErrorContext(ctx, "rabbitmq: dial failed", "error", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        slog.ErrorContext(ctx, "rabbitmq: channel open failed", "error", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch, queue); err != nil {
        slog.ErrorContext(ctx, "rabbitmq: queue declare failed", "queue", queue, "error", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        slog.ErrorContext(ctx, "rabbitmq: publish failed", "queue", queue, "error", err)
        return err
    }
    return nil
}

// declare makes sure the durable queue exists (idempotent).
func declare(ch *amqp.Channel, queue string) error {
    _, err := ch.QueueDeclare(
        queue,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,
    )
    return err
}
