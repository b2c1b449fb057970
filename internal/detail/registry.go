package detail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/sports-calendar/internal/metrics"
	"github.com/iliyamo/sports-calendar/internal/model"
)

var ErrViewNotFound = errors.New("view not found")

// Registry keeps the detail views opened through the JSON API. Each view
// is visible only to the identity that opened it.
type Registry struct {
	mu    sync.Mutex
	views map[uuid.UUID]*entry
}

type entry struct {
	view  *View
	owner string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[uuid.UUID]*entry)}
}

// Open starts a view and stores it under a fresh id.
func (r *Registry) Open(ctx context.Context, s model.Session, user *model.CurrentUser, load ParticipantLoader, cancel CancelFunc) (uuid.UUID, *View) {
	v := Open(ctx, s, user, load, cancel)
	id := uuid.New()
	r.mu.Lock()
	r.views[id] = &entry{view: v, owner: ownerKey(user)}
	r.mu.Unlock()
	return id, v
}

// Get returns the view with the given id when it belongs to user.
func (r *Registry) Get(id uuid.UUID, user *model.CurrentUser) (*View, error) {
	r.mu.Lock()
	e, ok := r.views[id]
	r.mu.Unlock()
	if !ok || e.owner != ownerKey(user) {
		return nil, ErrViewNotFound
	}
	return e.view, nil
}

// Close dismisses and forgets a view.
func (r *Registry) Close(id uuid.UUID, user *model.CurrentUser) error {
	r.mu.Lock()
	e, ok := r.views[id]
	if !ok || e.owner != ownerKey(user) {
		r.mu.Unlock()
		return ErrViewNotFound
	}
	delete(r.views, id)
	r.mu.Unlock()
	e.view.Close()
	return nil
}

// Forget drops views that reached the Closed state on their own.
func (r *Registry) Forget(id uuid.UUID) {
	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
}

// Sweep closes views idle for longer than maxIdle and returns how many
// were removed. The open views gauge is refreshed afterwards.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	var stale []*View
	for id, e := range r.views {
		if e.view.State() == StateClosed || now.Sub(e.view.lastTouched()) > maxIdle {
			stale = append(stale, e.view)
			delete(r.views, id)
		}
	}
	metrics.OpenViews.Set(float64(len(r.views)))
	r.mu.Unlock()
	for _, v := range stale {
		v.Close()
	}
	return len(stale)
}

// Len returns the number of tracked views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Sweep(now, maxIdle)
		}
	}
}

func ownerKey(u *model.CurrentUser) string {
	if u == nil {
		return ""
	}
	return u.Email
}
