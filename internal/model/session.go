package model

import (
    "errors"
    "time"
)

// Session status values.  The backend moves sessions between
// scheduled, full and completed; the calendar only ever cancels.
const (
    StatusScheduled = "scheduled"
    StatusFull      = "full"
    StatusCancelled = "cancelled"
    StatusCompleted = "completed"
)

// Session represents one scheduled sporting activity shown on the
// calendar.  Rows live in the `sessions` table.
//
// Fields:
//  ID                 – primary key identifier.
//  Title              – short name shown in the calendar cell.
//  SportName          – sport being played (e.g. "Basketball").
//  Venue              – where the session takes place.
//  Description        – optional Markdown description.
//  ScheduledAt        – start time; nil when the stored value is missing.
//  MaxPlayers         – capacity of the session.
//  CurrentPlayers     – number of registered participants.
//  Status             – scheduled, full, cancelled or completed.
//  CancellationReason – set if and only if Status is cancelled.
//  CreatedBy          – email of the user who created the session.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Session struct {
    ID                 uint64     `db:"id" json:"id"`
    Title              string     `db:"title" json:"title"`
    SportName          string     `db:"sport_name" json:"sport_name"`
    Venue              string     `db:"venue" json:"venue"`
    Description        *string    `db:"description" json:"description,omitempty"`
    ScheduledAt        *time.Time `db:"scheduled_at" json:"scheduled_at"`
    MaxPlayers         int        `db:"max_players" json:"max_players"`
    CurrentPlayers     int        `db:"current_players_count" json:"current_players_count"`
    Status             string     `db:"status" json:"status"`
    CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
    CreatedBy          string     `db:"created_by" json:"created_by"`
    CreatedAt          time.Time  `db:"created_at" json:"created_at"`
    UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// SessionPatch carries the fields of an update request.  Only the
// cancel transition is issued through it.
type SessionPatch struct {
    Status             string
    CancellationReason string
}

var (
    ErrUnknownStatus   = errors.New("unknown session status")
    ErrReasonMismatch  = errors.New("cancellation reason must be set only for cancelled sessions")
    ErrOverCapacity    = errors.New("current players exceed capacity")
    ErrInvalidCapacity = errors.New("max players must be positive")
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s string) bool {
    switch s {
    case StatusScheduled, StatusFull, StatusCancelled, StatusCompleted:
        return true
    }
    return false
}

// Terminal reports whether no further transitions are possible from
// the session's status.
func (s Session) Terminal() bool {
    return s.Status == StatusCancelled || s.Status == StatusCompleted
}

// Validate checks the record invariants.
func (s Session) Validate() error {
    if !ValidStatus(s.Status) {
        return ErrUnknownStatus
    }
    if (s.Status == StatusCancelled) != (s.CancellationReason != nil) {
        return ErrReasonMismatch
    }
    if s.MaxPlayers <= 0 {
        return ErrInvalidCapacity
    }
    if s.CurrentPlayers > s.MaxPlayers {
        return ErrOverCapacity
    }
    return nil
}

// SpotsLeft returns how many participants can still join.
func (s Session) SpotsLeft() int {
    if n := s.MaxPlayers - s.CurrentPlayers; n > 0 {
        return n
    }
    return 0
}
