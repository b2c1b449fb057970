package model

import "time"

// Role names stored in users.role and carried in the JWT "role" claim.
const (
    RoleAdmin = "admin"
    RoleUser  = "user"
)

// User represents an application user record as stored in the
// `users` table.  PasswordHash never leaves the repository and
// auth handler layers.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address; doubles as the identity used
//                 in sessions.created_by.
//  PasswordHash – bcrypt hashed password.
//  Role         – admin or user.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    `db:"id"`
    Email        string    `db:"email"`
    PasswordHash string    `db:"password_hash"`
    Role         string    `db:"role"`
    IsActive     bool      `db:"is_active"`
    CreatedAt    time.Time `db:"created_at"`
    UpdatedAt    time.Time `db:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is not stored; only its SHA‑256 hash.
type RefreshToken struct {
    ID        uint64     `db:"id"`
    UserID    uint64     `db:"user_id"`
    TokenHash string     `db:"token_hash"`
    ExpiresAt time.Time  `db:"expires_at"`
    RevokedAt *time.Time `db:"revoked_at"`
    CreatedAt time.Time  `db:"created_at"`
}

// CurrentUser is the viewer's identity as resolved from an access
// token.  A nil *CurrentUser means nobody is signed in.
type CurrentUser struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *CurrentUser) IsAdmin() bool {
    return u != nil && u.Role == RoleAdmin
}

// CanCancel is the cancel-eligibility predicate: a known user who
// either created the session or is an admin may cancel it while it
// is neither cancelled nor completed.  It is recomputed from its
// inputs on every call.
func CanCancel(u *CurrentUser, s Session) bool {
    if u == nil {
        return false
    }
    owner := u.Email != "" && u.Email == s.CreatedBy
    if !owner && u.Role != RoleAdmin {
        return false
    }
    return !s.Terminal()
}
