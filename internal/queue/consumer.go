package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "html"
    "log/slog"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/sports-calendar/internal/notify"
)

// Consumer listens on the session.cancelled queue.  Each event is
// appended to the cancellation log as one line and the participants are
// emailed.
type Consumer struct {
    url     string
    logPath string
    sender  notify.Sender
    logger  *slog.Logger

    mu sync.Mutex // serialises writes to logPath
}

// NewConsumer builds a Consumer.  A nil sender disables emails.
func NewConsumer(url, logPath string, sender notify.Sender, logger *slog.Logger) *Consumer {
    if logger == nil {
        logger = slog.Default()
    }
    return &Consumer{url: url, logPath: logPath, sender: sender, logger: logger.With("component", "cancel-consumer")}
}

// Run connects and consumes until ctx is done, reconnecting with
// exponential backoff (capped at 30s) whenever the broker goes away.
// It returns ctx.Err() once the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.logger.Warn("failed to dial broker", "error", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.logger.Warn("consume loop ended; reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.logger.Warn("set QoS failed", "error", err)
    }
    if err := declare(ch, SessionCancelledQueue); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(SessionCancelledQueue, "", false, false, false, false, nil)
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
            if err := c.Handle(ctx, d.Body); err != nil {
                c.logger.Error("handle message failed", "error", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle processes one message body.  A malformed body or a failed log
// write is an error; email failures are only logged because the
// cancellation itself has already happened.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
    var ev SessionCancelledEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.SessionID == 0 {
        return errors.New("event without session_id")
    }
    if err := c.appendLog(ev); err != nil {
        return err
    }
    c.notify(ctx, ev)
    return nil
}

func (c *Consumer) appendLog(ev SessionCancelledEvent) error {
    c.mu.Lock()
    defer c.mu.Unlock()

    if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLogLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLogLine renders an event as a single human-friendly log line.
func FormatLogLine(ev SessionCancelledEvent) string {
    scheduled := ev.ScheduledAt
    if scheduled == "" {
        scheduled = "-"
    }
    return fmt.Sprintf("[%s] Session cancelled | session_id=%d | title=%q | sport=%q | venue=%q | scheduled_at=%s | by=%s | reason=%q | participants=[%s]\n",
        ev.CancelledAt, ev.SessionID, ev.Title, ev.SportName, ev.Venue, scheduled, ev.CancelledBy, ev.Reason,
        strings.Join(ev.Participants, ","))
}

func (c *Consumer) notify(ctx context.Context, ev SessionCancelledEvent) {
    if c.sender == nil || len(ev.Participants) == 0 {
        return
    }
    reqs := make([]notify.SendRequest, 0, len(ev.Participants))
    for _, to := range ev.Participants {
        reqs = append(reqs, CancellationEmail(ev, to))
    }
    if _, err := c.sender.SendBatch(ctx, reqs); err != nil {
        c.logger.ErrorContext(ctx, "cancellation emails failed", "session_id", ev.SessionID, "error", err)
        return
    }
    c.logger.InfoContext(ctx, "cancellation emails sent", "session_id", ev.SessionID, "count", len(reqs))
}

// CancellationEmail builds the notice sent to one participant.
func CancellationEmail(ev SessionCancelledEvent, to string) notify.SendRequest {
    when := "an unscheduled time"
    if ev.ScheduledAt != "" {
        if t, err := time.Parse(time.RFC3339, ev.ScheduledAt); err == nil {
            when = t.Format("Mon 2 Jan 2006 15:04 MST")
        }
    }
    var b strings.Builder
    fmt.Fprintf(&b, "<p>The %s session <strong>%s</strong> at %s on %s has been cancelled.</p>",
        html.EscapeString(ev.SportName), html.EscapeString(ev.Title), html.EscapeString(ev.Venue), html.EscapeString(when))
    fmt.Fprintf(&b, "<p>Reason: %s</p>", html.EscapeString(ev.Reason))
    return notify.SendRequest{
        To:      []string{to},
        Subject: "Cancelled: " + ev.Title,
        HTML:    b.String(),
        ReplyTo: ev.CancelledBy,
    }
}
