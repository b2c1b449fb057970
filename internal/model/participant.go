package model

import "time"

// Participant is one registration of a person in a session
// (`session_participants` table).  The calendar only reads these.
type Participant struct {
    ID          uint64    `db:"id" json:"id"`
    SessionID   uint64    `db:"session_id" json:"session_id"`
    DisplayName string    `db:"display_name" json:"display_name"`
    Email       string    `db:"email" json:"email"`
    CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
