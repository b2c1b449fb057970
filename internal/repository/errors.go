// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed
// because of the current state of the row, such as cancelling a
// session that is already cancelled or completed. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSessionNotFound indicates that a session was not located in the DB.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionFull is returned by Join when no spots are left.
var ErrSessionFull = errors.New("session is full")

// ErrSessionClosed is returned by Join when the session no longer
// accepts registrations (cancelled or completed).
var ErrSessionClosed = errors.New("session is not open for registration")

// ErrAlreadyJoined is returned by Join when the email is already
// registered for the session.
var ErrAlreadyJoined = errors.New("already joined")

// ErrUnsupportedPatch is returned by Update for any patch other than
// the cancel transition.
var ErrUnsupportedPatch = errors.New("unsupported session patch")
