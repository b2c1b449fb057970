package repository

import (
    "context"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/sports-calendar/internal/model"
)

const participantColumns = `id, session_id, display_name, email, created_at`

const (
    qParticipantsBySession = `SELECT ` + participantColumns + ` FROM session_participants WHERE session_id = ? `
    qParticipantByID       = `SELECT ` + participantColumns + ` FROM session_participants WHERE id = ?`
)

var participantSorts = map[string]string{
    "created_at":   "created_at",
    "display_name": "display_name",
}

// DefaultParticipantSort lists the most recently joined participants first.
const DefaultParticipantSort = "-created_at"

// ParticipantRepo reads session registrations.
type ParticipantRepo struct {
    db *sqlx.DB
}

// NewParticipantRepo constructs a ParticipantRepo with the given DB handle.
func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo {
    return &ParticipantRepo{db: db}
}

// ListBySession returns the participants of one session ordered by
// sortKey.  It returns an empty slice when nobody has joined.
func (r *ParticipantRepo) ListBySession(ctx context.Context, sessionID uint64, sortKey string) ([]model.Participant, error) {
    order, err := orderBy(sortKey, participantSorts, DefaultParticipantSort)
    if err != nil {
        return nil, err
    }
    out := []model.Participant{}
    if err := r.db.SelectContext(ctx, &out, qParticipantsBySession+order, sessionID); err != nil {
        return nil, err
    }
    return out, nil
}

// Emails returns the contact addresses of a session's participants.
func (r *ParticipantRepo) Emails(ctx context.Context, sessionID uint64) ([]string, error) {
    out := []string{}
    err := r.db.SelectContext(ctx, &out, `SELECT email FROM session_participants WHERE session_id = ? ORDER BY id`, sessionID)
    return out, err
}
