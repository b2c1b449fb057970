// Package service composes the repositories into the operations the
// handlers expose: listing, the month grid, registration and the guarded
// cancel with its side effects.
package service

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "strings"
    "time"
    "unicode/utf8"

    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/codes"

    "github.com/iliyamo/sports-calendar/internal/calendar"
    "github.com/iliyamo/sports-calendar/internal/detail"
    "github.com/iliyamo/sports-calendar/internal/metrics"
    "github.com/iliyamo/sports-calendar/internal/model"
    "github.com/iliyamo/sports-calendar/internal/queue"
    "github.com/iliyamo/sports-calendar/internal/repository"
    "github.com/iliyamo/sports-calendar/internal/tracing"
)

var (
    // ErrForbidden is returned when the caller may not cancel the session.
    ErrForbidden = errors.New("not allowed to cancel this session")
    // ErrEmptyReason is returned when the trimmed reason is empty.
    ErrEmptyReason = errors.New("cancellation reason required")
    // ErrUnauthenticated is returned for writes without a signed-in user.
    ErrUnauthenticated = errors.New("authentication required")
)

// SessionStore is the session persistence the service needs.
type SessionStore interface {
    List(ctx context.Context, sortKey string) ([]model.Session, error)
    GetByID(ctx context.Context, id uint64) (*model.Session, error)
    Create(ctx context.Context, s *model.Session) (*model.Session, error)
    Update(ctx context.Context, id uint64, p model.SessionPatch) error
    Join(ctx context.Context, sessionID uint64, name, email string) (*model.Participant, error)
}

// ParticipantStore reads registrations.
type ParticipantStore interface {
    ListBySession(ctx context.Context, sessionID uint64, sortKey string) ([]model.Participant, error)
    Emails(ctx context.Context, sessionID uint64) ([]string, error)
}

// EventPublisher publishes session.cancelled events.
type EventPublisher interface {
    PublishSessionCancelled(ctx context.Context, ev queue.SessionCancelledEvent) error
}

// CachePurger drops cached calendar responses.
type CachePurger interface {
    Purge(ctx context.Context) error
}

// SessionService implements the session use cases.
type SessionService struct {
    sessions     SessionStore
    participants ParticipantStore
    publisher    EventPublisher // optional
    cache        CachePurger    // optional
    logger       *slog.Logger
    now          func() time.Time
}

// NewSessionService wires the service.  publisher and cache may be nil.
func NewSessionService(sessions SessionStore, participants ParticipantStore, publisher EventPublisher, cache CachePurger, logger *slog.Logger) *SessionService {
    if logger == nil {
        logger = slog.Default()
    }
    return &SessionService{
        sessions:     sessions,
        participants: participants,
        publisher:    publisher,
        cache:        cache,
        logger:       logger,
        now:          time.Now,
    }
}

// ListSessions returns every session ordered by sortKey.
func (s *SessionService) ListSessions(ctx context.Context, sortKey string) ([]model.Session, error) {
    ctx, span := tracing.Tracer().Start(ctx, "SessionService.ListSessions")
    defer span.End()
    out, err := s.sessions.List(ctx, sortKey)
    if err != nil {
        span.RecordError(err)
        return nil, fmt.Errorf("list sessions: %w", err)
    }
    return out, nil
}

// GetSession loads one session.
func (s *SessionService) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
    ctx, span := tracing.Tracer().Start(ctx, "SessionService.GetSession")
    defer span.End()
    span.SetAttributes(attribute.Int64("session.id", int64(id)))
    out, err := s.sessions.GetByID(ctx, id)
    if err != nil {
        return nil, fmt.Errorf("get session %d: %w", id, err)
    }
    return out, nil
}

// ListParticipants returns the roster of a session, newest first by default.
func (s *SessionService) ListParticipants(ctx context.Context, sessionID uint64, sortKey string) ([]model.Participant, error) {
    ctx, span := tracing.Tracer().Start(ctx, "SessionService.ListParticipants")
    defer span.End()
    out, err := s.participants.ListBySession(ctx, sessionID, sortKey)
    if err != nil {
        span.RecordError(err)
        return nil, fmt.Errorf("list participants of %d: %w", sessionID, err)
    }
    return out, nil
}

// MonthGrid lists the sessions and lays out the month containing anchor.
func (s *SessionService) MonthGrid(ctx context.Context, anchor time.Time) (calendar.Grid, error) {
    sessions, err := s.ListSessions(ctx, repository.DefaultSessionSort)
    if err != nil {
        return calendar.Grid{}, err
    }
    g := calendar.Build(anchor, sessions, s.now())
    metrics.CalendarRenders.Inc()
    s.logger.DebugContext(ctx, "calendar grid built",
        "month", g.Anchor.Format(calendar.MonthLayout), "sessions", g.Count())
    if g.Skipped > 0 {
        metrics.CalendarSkipped.Add(float64(g.Skipped))
        s.logger.WarnContext(ctx, "sessions without start time left off the calendar", "count", g.Skipped)
    }
    return g, nil
}

// CreateSessionInput carries the fields of a new session.
type CreateSessionInput struct {
    Title       string
    SportName   string
    Venue       string
    Description *string
    ScheduledAt time.Time
    MaxPlayers  int
}

// CreateSession stores a session owned by user.
func (s *SessionService) CreateSession(ctx context.Context, user *model.CurrentUser, in CreateSessionInput) (*model.Session, error) {
    if user == nil || user.Email == "" {
        return nil, ErrUnauthenticated
    }
    at := in.ScheduledAt.UTC()
    rec := &model.Session{
        Title:       strings.TrimSpace(in.Title),
        SportName:   strings.TrimSpace(in.SportName),
        Venue:       strings.TrimSpace(in.Venue),
        Description: in.Description,
        ScheduledAt: &at,
        MaxPlayers:  in.MaxPlayers,
        Status:      model.StatusScheduled,
        CreatedBy:   user.Email,
    }
    if err := rec.Validate(); err != nil {
        return nil, err
    }
    out, err := s.sessions.Create(ctx, rec)
    if err != nil {
        return nil, fmt.Errorf("create session: %w", err)
    }
    s.purge(ctx)
    return out, nil
}

// JoinSession registers user in a session.  An empty name falls back to
// the local part of the email.
func (s *SessionService) JoinSession(ctx context.Context, user *model.CurrentUser, sessionID uint64, name string) (*model.Participant, error) {
    if user == nil || user.Email == "" {
        return nil, ErrUnauthenticated
    }
    name = strings.TrimSpace(name)
    if name == "" {
        name, _, _ = strings.Cut(user.Email, "@")
    }
    p, err := s.sessions.Join(ctx, sessionID, name, user.Email)
    if err != nil {
        return nil, fmt.Errorf("join session %d: %w", sessionID, err)
    }
    s.purge(ctx)
    return p, nil
}

// CancelSession cancels a session on behalf of user.  Eligibility is
// re-checked against the freshly loaded record; a caller allowed in
// principle but facing a cancelled or completed session gets
// repository.ErrConflict.  After the update the calendar cache is purged
// and a session.cancelled event is published; failures of those two
// steps are logged only.
func (s *SessionService) CancelSession(ctx context.Context, user *model.CurrentUser, id uint64, reason string) (err error) {
    ctx, span := tracing.Tracer().Start(ctx, "SessionService.CancelSession")
    defer span.End()
    span.SetAttributes(attribute.Int64("session.id", int64(id)))
    defer func() {
        metrics.Cancellations.WithLabelValues(cancelResult(err)).Inc()
        if err != nil {
            span.SetStatus(codes.Error, err.Error())
        }
    }()

    sess, err := s.sessions.GetByID(ctx, id)
    if err != nil {
        return fmt.Errorf("load session %d: %w", id, err)
    }
    if !model.CanCancel(user, *sess) {
        if user != nil && (user.IsAdmin() || user.Email == sess.CreatedBy) {
            return fmt.Errorf("session %d is %s: %w", id, sess.Status, repository.ErrConflict)
        }
        return ErrForbidden
    }
    reason = strings.TrimSpace(reason)
    if reason == "" {
        return ErrEmptyReason
    }
    if utf8.RuneCountInString(reason) > detail.MaxReasonLen {
        return detail.ErrReasonTooLong
    }

    patch := model.SessionPatch{Status: model.StatusCancelled, CancellationReason: reason}
    if err := s.sessions.Update(ctx, id, patch); err != nil {
        return fmt.Errorf("cancel session %d: %w", id, err)
    }
    s.logger.InfoContext(ctx, "session cancelled", "session_id", id, "by", user.Email)

    s.purge(ctx)
    s.publishCancelled(ctx, *sess, reason, user.Email)
    return nil
}

// Loader adapts ListParticipants to the detail view's fetch signature.
func (s *SessionService) Loader() detail.ParticipantLoader {
    return func(ctx context.Context, sessionID uint64) ([]model.Participant, error) {
        out, err := s.ListParticipants(ctx, sessionID, repository.DefaultParticipantSort)
        if err != nil {
            metrics.ParticipantFetchFailures.Inc()
            s.logger.WarnContext(ctx, "participant fetch failed", "session_id", sessionID, "error", err)
        }
        return out, err
    }
}

// Canceller binds CancelSession to user for a detail view.
func (s *SessionService) Canceller(user *model.CurrentUser) detail.CancelFunc {
    return func(ctx context.Context, sessionID uint64, reason string) error {
        return s.CancelSession(ctx, user, sessionID, reason)
    }
}

func (s *SessionService) purge(ctx context.Context) {
    if s.cache == nil {
        return
    }
    if err := s.cache.Purge(ctx); err != nil {
        s.logger.WarnContext(ctx, "calendar cache purge failed", "error", err)
    }
}

func (s *SessionService) publishCancelled(ctx context.Context, sess model.Session, reason, by string) {
    if s.publisher == nil {
        return
    }
    emails, err := s.participants.Emails(ctx, sess.ID)
    if err != nil {
        s.logger.WarnContext(ctx, "participant emails unavailable for cancel notice", "session_id", sess.ID, "error", err)
        emails = nil
    }
    ev := queue.NewSessionCancelledEvent(sess, reason, by, emails, s.now())
    if err := s.publisher.PublishSessionCancelled(ctx, ev); err != nil {
        metrics.EventsPublished.WithLabelValues("error").Inc()
        s.logger.ErrorContext(ctx, "publish session.cancelled failed", "session_id", sess.ID, "error", err)
        return
    }
    metrics.EventsPublished.WithLabelValues("ok").Inc()
}

func cancelResult(err error) string {
    switch {
    case err == nil:
        return "ok"
    case errors.Is(err, ErrForbidden):
        return "forbidden"
    case errors.Is(err, ErrEmptyReason):
        return "empty_reason"
    case errors.Is(err, repository.ErrSessionNotFound):
        return "not_found"
    case errors.Is(err, repository.ErrConflict):
        return "conflict"
    }
    return "error"
}
