package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// resendBatchLimit is the most emails Resend accepts per batch call.
const resendBatchLimit = 100

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender for the given API key and from address.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) params(req SendRequest) *resend.SendEmailRequest {
	from := req.From
	if from == "" {
		from = s.from
	}
	p := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	if req.ReplyTo != "" {
		p.ReplyTo = req.ReplyTo
	}
	return p
}

// Send delivers a single email.
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, s.params(req))
	if err != nil {
		slog.ErrorContext(ctx, "resend_send_failed", "error", err, "to", req.To, "subject", req.Subject)
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}

// SendBatch sends reqs in chunks of up to 100.  Results are returned in
// request order; on failure the results of earlier chunks are kept.
func (s *ResendSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	var all []SendResult
	for i := 0; i < len(reqs); i += resendBatchLimit {
		end := min(i+resendBatchLimit, len(reqs))
		chunk := make([]*resend.SendEmailRequest, 0, end-i)
		for _, req := range reqs[i:end] {
			chunk = append(chunk, s.params(req))
		}

		resp, err := s.client.Batch.SendWithContext(ctx, chunk)
		if err != nil {
			slog.ErrorContext(ctx, "resend_batch_failed", "error", err, "batch_size", len(chunk))
			return all, fmt.Errorf("resend batch send failed: %w", err)
		}
		for _, item := range resp.Data {
			all = append(all, SendResult{MessageID: item.Id, SentAt: time.Now()})
		}
	}
	return all, nil
}
