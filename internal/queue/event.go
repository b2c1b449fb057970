// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

import (
    "time"

    "github.com/iliyamo/sports-calendar/internal/model"
)

// SessionCancelledQueue is the durable queue cancellation events go to.
const SessionCancelledQueue = "session.cancelled"

// SessionCancelledEvent is published after a session is cancelled.  It
// carries the participant addresses so the consumer can notify them
// without querying the primary database.
type SessionCancelledEvent struct {
    SessionID    uint64   `json:"session_id"`
    Title        string   `json:"title"`
    SportName    string   `json:"sport_name"`
    Venue        string   `json:"venue"`
    ScheduledAt  string   `json:"scheduled_at,omitempty"`
    Reason       string   `json:"reason"`
    CancelledBy  string   `json:"cancelled_by"`
    Participants []string `json:"participants"`
    CancelledAt  string   `json:"cancelled_at"`
}

// NewSessionCancelledEvent builds the event for a cancelled session.
func NewSessionCancelledEvent(s model.Session, reason, by string, participants []string, at time.Time) SessionCancelledEvent {
    ev := SessionCancelledEvent{
        SessionID:    s.ID,
        Title:        s.Title,
        SportName:    s.SportName,
        Venue:        s.Venue,
        Reason:       reason,
        CancelledBy:  by,
        Participants: participants,
        CancelledAt:  at.UTC().Format(time.RFC3339),
    }
    if s.ScheduledAt != nil {
        ev.ScheduledAt = s.ScheduledAt.UTC().Format(time.RFC3339)
    }
    if ev.Participants == nil {
        ev.Participants = []string{}
    }
    return ev
}
