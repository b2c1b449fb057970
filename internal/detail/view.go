// Package detail implements the session detail view: it loads the
// participant roster for one session and mediates the guarded cancel
// action through a small state machine.
package detail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/sports-calendar/internal/model"
)

// State is the lifecycle position of a View.
type State int

const (
	StateLoading State = iota
	StateLoaded
	StateConfirmingCancel
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateConfirmingCancel:
		return "confirming_cancel"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrNotEligible       = errors.New("viewer may not cancel this session")
	ErrInvalidTransition = errors.New("invalid transition for current state")
	ErrEmptyReason       = errors.New("cancellation reason is required")
	ErrReasonTooLong     = errors.New("cancellation reason is too long")
	ErrBusy              = errors.New("cancellation already being submitted")
	ErrClosed            = errors.New("view is closed")
)

// MaxReasonLen is the longest reason, in characters, the sessions table stores.
const MaxReasonLen = 500

func reasonTooLong(reason string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(reason)) > MaxReasonLen
}

// ParticipantLoader fetches the roster of a session, most recent first.
type ParticipantLoader func(ctx context.Context, sessionID uint64) ([]model.Participant, error)

// CancelFunc applies the cancel transition in the data layer. It receives
// the already trimmed reason.
type CancelFunc func(ctx context.Context, sessionID uint64, reason string) error

// View is one opened session detail. All methods are safe for concurrent use.
type View struct {
	mu sync.Mutex

	session model.Session
	user    *model.CurrentUser
	load    ParticipantLoader
	cancel  CancelFunc

	state        State
	participants []model.Participant
	fetchErr     error
	reason       string
	submitErr    error
	submitting   bool

	// generation identifies the fetch whose result may still be applied.
	generation uint64
	loaded     chan struct{}
	touched    time.Time
}

// Open creates a view in the Loading state and starts the participant fetch.
func Open(ctx context.Context, s model.Session, user *model.CurrentUser, load ParticipantLoader, cancel CancelFunc) *View {
	v := &View{
		session: s,
		user:    user,
		load:    load,
		cancel:  cancel,
		touched: time.Now(),
	}
	v.mu.Lock()
	v.startFetchLocked(ctx)
	v.mu.Unlock()
	return v
}

// startFetchLocked bumps the generation and launches the single fetch for
// the current session. v.mu must be held.
func (v *View) startFetchLocked(ctx context.Context) {
	v.generation++
	gen := v.generation
	id := v.session.ID
	done := make(chan struct{})

	v.state = StateLoading
	v.participants = nil
	v.fetchErr = nil
	v.loaded = done

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		parts, err := v.load(ctx, id)
		v.finishFetch(gen, parts, err)
	}()
}

func (v *View) finishFetch(gen uint64, parts []model.Participant, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation || v.state == StateClosed {
		return
	}
	if err != nil {
		parts = nil
	}
	if parts == nil {
		parts = []model.Participant{}
	}
	v.participants = parts
	v.fetchErr = err
	v.state = StateLoaded
}

// SetSession replaces the session record. The roster is refetched only
// when the identifier changes.
func (v *View) SetSession(ctx context.Context, s model.Session) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return ErrClosed
	}
	changed := s.ID != v.session.ID
	v.session = s
	v.touched = time.Now()
	if changed {
		v.reason = ""
		v.submitErr = nil
		v.startFetchLocked(ctx)
	}
	return nil
}

// Wait blocks until the current fetch has resolved or ctx is done.
func (v *View) Wait(ctx context.Context) error {
	v.mu.Lock()
	done := v.loaded
	v.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CanCancel evaluates the eligibility predicate against the current inputs.
func (v *View) CanCancel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.CanCancel(v.user, v.session)
}

// RequestCancel opens the confirmation form.
func (v *View) RequestCancel() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touched = time.Now()
	if v.state != StateLoaded {
		return v.transitionErrLocked()
	}
	if !model.CanCancel(v.user, v.session) {
		return ErrNotEligible
	}
	v.state = StateConfirmingCancel
	v.reason = ""
	v.submitErr = nil
	return nil
}

// SetReason stores the in-progress free text reason. A reason longer than
// MaxReasonLen is kept for editing but reported as ErrReasonTooLong.
func (v *View) SetReason(reason string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touched = time.Now()
	if v.state != StateConfirmingCancel {
		return v.transitionErrLocked()
	}
	v.reason = reason
	if reasonTooLong(reason) {
		return ErrReasonTooLong
	}
	return nil
}

// ConfirmEnabled reports whether the confirm action is available.
func (v *View) ConfirmEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.confirmEnabledLocked()
}

func (v *View) confirmEnabledLocked() bool {
	return v.state == StateConfirmingCancel && !v.submitting &&
		strings.TrimSpace(v.reason) != "" && !reasonTooLong(v.reason)
}

// Abandon leaves the confirmation form ("Nevermind").
func (v *View) Abandon() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touched = time.Now()
	if v.state != StateConfirmingCancel {
		return v.transitionErrLocked()
	}
	if v.submitting {
		return ErrBusy
	}
	v.state = StateLoaded
	v.reason = ""
	v.submitErr = nil
	return nil
}

// Confirm submits the cancellation with the trimmed reason. On success the
// view closes; on failure the form stays open with the error recorded in
// the snapshot's SubmitError.
func (v *View) Confirm(ctx context.Context) error {
	v.mu.Lock()
	v.touched = time.Now()
	if v.state != StateConfirmingCancel {
		err := v.transitionErrLocked()
		v.mu.Unlock()
		return err
	}
	if v.submitting {
		v.mu.Unlock()
		return ErrBusy
	}
	reason := strings.TrimSpace(v.reason)
	if reason == "" {
		v.mu.Unlock()
		return ErrEmptyReason
	}
	if reasonTooLong(reason) {
		v.mu.Unlock()
		return ErrReasonTooLong
	}
	if !model.CanCancel(v.user, v.session) {
		v.mu.Unlock()
		return ErrNotEligible
	}
	v.submitting = true
	v.submitErr = nil
	id := v.session.ID
	v.mu.Unlock()

	err := v.cancel(ctx, id, reason)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitting = false
	if err != nil {
		if v.state == StateConfirmingCancel {
			v.submitErr = err
		}
		return err
	}
	v.state = StateClosed
	return nil
}

// Close dismisses the view from any state.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateClosed
}

func (v *View) transitionErrLocked() error {
	if v.state == StateClosed {
		return ErrClosed
	}
	return ErrInvalidTransition
}

// Snapshot is a point-in-time copy of a view for rendering.
type Snapshot struct {
	Session        model.Session
	State          State
	Participants   []model.Participant
	FetchFailed    bool
	Reason         string
	ConfirmEnabled bool
	CanCancel      bool
	SubmitError    string
}

// Snapshot copies the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	parts := make([]model.Participant, len(v.participants))
	copy(parts, v.participants)
	snap := Snapshot{
		Session:        v.session,
		State:          v.state,
		Participants:   parts,
		FetchFailed:    v.fetchErr != nil,
		Reason:         v.reason,
		ConfirmEnabled: v.confirmEnabledLocked(),
		CanCancel:      model.CanCancel(v.user, v.session),
	}
	if v.submitErr != nil {
		snap.SubmitError = v.submitErr.Error()
	}
	return snap
}

// State returns the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// FetchErr returns the error of the last resolved participant fetch.
func (v *View) FetchErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fetchErr
}

func (v *View) lastTouched() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.touched
}
