package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NoopSender logs sends but does not deliver them.
type NoopSender struct{}

// NewNoopSender creates a sender that only logs.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the email and returns a placeholder ID.
func (s *NoopSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	slog.InfoContext(ctx, "noop_email_send", "to", req.To, "subject", req.Subject)
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}

// SendBatch logs each email in turn.
func (s *NoopSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	results := make([]SendResult, 0, len(reqs))
	for i, req := range reqs {
		slog.InfoContext(ctx, "noop_email_batch", "index", i, "to", req.To, "subject", req.Subject)
		results = append(results, SendResult{
			MessageID: fmt.Sprintf("noop-batch-%d-%d", time.Now().UnixNano(), i),
			SentAt:    time.Now(),
		})
	}
	return results, nil
}
