package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/go-sql-driver/mysql"
    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/sports-calendar/internal/model"
)

// ErrMissingReason is returned when a cancel patch has no reason.
var ErrMissingReason = errors.New("cancellation reason required")

const sessionColumns = `id, title, sport_name, venue, description, scheduled_at, max_players,
       current_players_count, status, cancellation_reason, created_by, created_at, updated_at`

const (
    qSessionList   = `SELECT ` + sessionColumns + ` FROM sessions `
    qSessionByID   = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
    qSessionInsert = `INSERT INTO sessions (title, sport_name, venue, description, scheduled_at, max_players, created_by)
       VALUES (?, ?, ?, ?, ?, ?, ?)`
    qSessionCancel = `UPDATE sessions
       SET status = ?, cancellation_reason = ?, updated_at = CURRENT_TIMESTAMP
       WHERE id = ? AND status IN (?, ?)`
    qSessionStatus      = `SELECT status FROM sessions WHERE id = ?`
    qSessionLockForJoin = `SELECT status, max_players, current_players_count FROM sessions WHERE id = ? FOR UPDATE`
    qParticipantInsert  = `INSERT INTO session_participants (session_id, display_name, email) VALUES (?, ?, ?)`
    qSessionBumpCount   = `UPDATE sessions
       SET current_players_count = current_players_count + 1, status = ?, updated_at = CURRENT_TIMESTAMP
       WHERE id = ?`
)

// sessionSorts lists the columns the calendar may sort sessions by.
var sessionSorts = map[string]string{
    "scheduled_at": "scheduled_at",
    "created_at":   "created_at",
    "title":        "title",
}

// DefaultSessionSort lists the most recently scheduled sessions first.
const DefaultSessionSort = "-scheduled_at"

// SessionRepo manages persistence for sessions.
type SessionRepo struct {
    db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
    return &SessionRepo{db: db}
}

// List returns every session ordered by sortKey (e.g. "-scheduled_at").
// An empty result is an empty slice, never nil.
func (r *SessionRepo) List(ctx context.Context, sortKey string) ([]model.Session, error) {
    order, err := orderBy(sortKey, sessionSorts, DefaultSessionSort)
    if err != nil {
        return nil, err
    }
    out := []model.Session{}
    if err := r.db.SelectContext(ctx, &out, qSessionList+order); err != nil {
        return nil, err
    }
    return out, nil
}

// GetByID retrieves a session by its ID.  It returns ErrSessionNotFound
// if there is no matching row.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
    var s model.Session
    if err := r.db.GetContext(ctx, &s, qSessionByID, id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrSessionNotFound
        }
        return nil, err
    }
    return &s, nil
}

// Create inserts a new session and reloads it so DB defaults (status,
// counters, timestamps) are populated on the returned value.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) (*model.Session, error) {
    res, err := r.db.ExecContext(ctx, qSessionInsert,
        s.Title, s.SportName, s.Venue, s.Description, s.ScheduledAt, s.MaxPlayers, s.CreatedBy)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    return r.GetByID(ctx, uint64(id))
}

// Update applies a patch to a session.  Only the cancel transition is
// supported: status must be cancelled and the reason non-empty.  The
// UPDATE is guarded so only scheduled or full sessions change.  A
// missing row yields ErrSessionNotFound, a terminal one ErrConflict.
func (r *SessionRepo) Update(ctx context.Context, id uint64, p model.SessionPatch) error {
    if p.Status != model.StatusCancelled {
        return ErrUnsupportedPatch
    }
    reason := strings.TrimSpace(p.CancellationReason)
    if reason == "" {
        return ErrMissingReason
    }
    res, err := r.db.ExecContext(ctx, qSessionCancel,
        model.StatusCancelled, reason, id, model.StatusScheduled, model.StatusFull)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n > 0 {
        return nil
    }
    // Determine if it's "not found" or a session that can no longer be cancelled.
    var status string
    if err := r.db.GetContext(ctx, &status, qSessionStatus, id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrSessionNotFound
        }
        return err
    }
    return ErrConflict
}

// Join registers a participant.  The session row is locked for the
// duration of the transaction so the occupancy count never exceeds
// capacity; the status flips to full when the last spot is taken.
func (r *SessionRepo) Join(ctx context.Context, sessionID uint64, name, email string) (*model.Participant, error) {
    tx, err := r.db.BeginTxx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var row struct {
        Status  string `db:"status"`
        Max     int    `db:"max_players"`
        Current int    `db:"current_players_count"`
    }
    if err := tx.GetContext(ctx, &row, qSessionLockForJoin, sessionID); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrSessionNotFound
        }
        return nil, err
    }
    switch {
    case row.Status == model.StatusFull || (row.Status == model.StatusScheduled && row.Current >= row.Max):
        return nil, ErrSessionFull
    case row.Status != model.StatusScheduled:
        return nil, ErrSessionClosed
    }

    res, err := tx.ExecContext(ctx, qParticipantInsert, sessionID, name, strings.ToLower(strings.TrimSpace(email)))
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == 1062 {
            return nil, ErrAlreadyJoined
        }
        return nil, err
    }
    pid, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }

    next := model.StatusScheduled
    if row.Current+1 >= row.Max {
        next = model.StatusFull
    }
    if _, err := tx.ExecContext(ctx, qSessionBumpCount, next, sessionID); err != nil {
        return nil, err
    }

    var p model.Participant
    if err := tx.GetContext(ctx, &p, qParticipantByID, pid); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return &p, nil
}
