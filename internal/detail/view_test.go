package detail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sports-calendar/internal/model"
)

var creator = &model.CurrentUser{ID: 1, Email: "a@x.com", Role: model.RoleUser}

func scheduled(id uint64) model.Session {
	return model.Session{ID: id, Title: "Pickup Game", Status: model.StatusScheduled, CreatedBy: "a@x.com", MaxPlayers: 10}
}

func rosterLoader(parts ...model.Participant) ParticipantLoader {
	return func(context.Context, uint64) ([]model.Participant, error) { return parts, nil }
}

type cancelRecorder struct {
	mu      sync.Mutex
	calls   []string
	ids     []uint64
	failing error
}

func (c *cancelRecorder) fn(_ context.Context, id uint64, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, reason)
	c.ids = append(c.ids, id)
	return c.failing
}

func openLoaded(t *testing.T, s model.Session, u *model.CurrentUser, rec *cancelRecorder) *View {
	t.Helper()
	v := Open(context.Background(), s, u, rosterLoader(model.Participant{ID: 1, DisplayName: "Ann"}), rec.fn)
	require.NoError(t, v.Wait(context.Background()))
	require.Equal(t, StateLoaded, v.State())
	return v
}

func TestOpenLoadsParticipants(t *testing.T) {
	parts := []model.Participant{{ID: 2, DisplayName: "Bo"}, {ID: 1, DisplayName: "Ann"}}
	v := Open(context.Background(), scheduled(7), creator, rosterLoader(parts...), (&cancelRecorder{}).fn)
	require.NoError(t, v.Wait(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, StateLoaded, snap.State)
	require.Equal(t, parts, snap.Participants)
	require.False(t, snap.FetchFailed)
	require.True(t, snap.CanCancel)
}

func TestOpenStartsInLoading(t *testing.T) {
	release := make(chan struct{})
	load := func(context.Context, uint64) ([]model.Participant, error) {
		<-release
		return nil, nil
	}
	v := Open(context.Background(), scheduled(1), creator, load, (&cancelRecorder{}).fn)
	require.Equal(t, StateLoading, v.State())
	require.ErrorIs(t, v.RequestCancel(), ErrInvalidTransition)

	close(release)
	require.NoError(t, v.Wait(context.Background()))
	require.Equal(t, StateLoaded, v.State())
	require.NotNil(t, v.Snapshot().Participants)
}

func TestFetchFailureResolvesToEmptyLoaded(t *testing.T) {
	boom := errors.New("db down")
	load := func(context.Context, uint64) ([]model.Participant, error) {
		return []model.Participant{{ID: 1}}, boom
	}
	v := Open(context.Background(), scheduled(1), creator, load, (&cancelRecorder{}).fn)
	require.NoError(t, v.Wait(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, StateLoaded, snap.State)
	require.Empty(t, snap.Participants)
	require.True(t, snap.FetchFailed)
	require.ErrorIs(t, v.FetchErr(), boom)
}

func TestLateFetchAfterCloseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	load := func(context.Context, uint64) ([]model.Participant, error) {
		<-release
		return []model.Participant{{ID: 9}}, nil
	}
	v := Open(context.Background(), scheduled(1), creator, load, (&cancelRecorder{}).fn)
	v.Close()
	close(release)
	require.NoError(t, v.Wait(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, StateClosed, snap.State)
	require.Empty(t, snap.Participants)
}

func TestSetSessionRefetchesOnlyOnIDChange(t *testing.T) {
	var mu sync.Mutex
	calls := map[uint64]int{}
	gates := map[uint64]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	load := func(_ context.Context, id uint64) ([]model.Participant, error) {
		mu.Lock()
		calls[id]++
		mu.Unlock()
		<-gates[id]
		return []model.Participant{{ID: id * 100, SessionID: id}}, nil
	}
	v := Open(context.Background(), scheduled(1), creator, load, (&cancelRecorder{}).fn)

	// same id: no refetch
	renamed := scheduled(1)
	renamed.Title = "Renamed"
	require.NoError(t, v.SetSession(context.Background(), renamed))

	// new id while the first fetch is still in flight
	require.NoError(t, v.SetSession(context.Background(), scheduled(2)))
	close(gates[2])
	require.NoError(t, v.Wait(context.Background()))
	require.Equal(t, []model.Participant{{ID: 200, SessionID: 2}}, v.Snapshot().Participants)

	// the stale result for session 1 must not overwrite the roster
	close(gates[1])
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls[1] == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, []model.Participant{{ID: 200, SessionID: 2}}, v.Snapshot().Participants)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls[1])
	require.Equal(t, 1, calls[2])
}

func TestRequestCancelRequiresEligibility(t *testing.T) {
	rec := &cancelRecorder{}
	v := openLoaded(t, scheduled(1), &model.CurrentUser{Email: "b@x.com", Role: model.RoleUser}, rec)
	require.ErrorIs(t, v.RequestCancel(), ErrNotEligible)
	require.Equal(t, StateLoaded, v.State())

	anon := openLoaded(t, scheduled(1), nil, rec)
	require.ErrorIs(t, anon.RequestCancel(), ErrNotEligible)

	done := scheduled(1)
	done.Status = model.StatusCompleted
	finished := openLoaded(t, done, creator, rec)
	require.ErrorIs(t, finished.RequestCancel(), ErrNotEligible)
}

func TestAdminCanCancelFullSession(t *testing.T) {
	rec := &cancelRecorder{}
	s := scheduled(3)
	s.Status = model.StatusFull
	s.CreatedBy = "other@x.com"
	v := openLoaded(t, s, &model.CurrentUser{Email: "boss@x.com", Role: model.RoleAdmin}, rec)
	require.NoError(t, v.RequestCancel())
	require.Equal(t, StateConfirmingCancel, v.State())
}

func TestWhitespaceReasonIsRejected(t *testing.T) {
	rec := &cancelRecorder{}
	v := openLoaded(t, scheduled(1), creator, rec)
	require.NoError(t, v.RequestCancel())
	require.False(t, v.ConfirmEnabled())

	require.NoError(t, v.SetReason("   "))
	require.False(t, v.ConfirmEnabled())
	require.ErrorIs(t, v.Confirm(context.Background()), ErrEmptyReason)
	require.Equal(t, StateConfirmingCancel, v.State())
	require.Empty(t, rec.calls)
}

func TestConfirmTrimsAndCloses(t *testing.T) {
	rec := &cancelRecorder{}
	v := openLoaded(t, scheduled(5), creator, rec)
	require.NoError(t, v.RequestCancel())
	require.NoError(t, v.SetReason("  court flooded \n"))
	require.True(t, v.ConfirmEnabled())

	require.NoError(t, v.Confirm(context.Background()))
	require.Equal(t, StateClosed, v.State())
	require.Equal(t, []string{"court flooded"}, rec.calls)
	require.Equal(t, []uint64{5}, rec.ids)

	require.ErrorIs(t, v.Confirm(context.Background()), ErrClosed)
	require.Len(t, rec.calls, 1)
}

func TestConfirmFailureKeepsFormOpen(t *testing.T) {
	rec := &cancelRecorder{failing: errors.New("update failed")}
	v := openLoaded(t, scheduled(1), creator, rec)
	require.NoError(t, v.RequestCancel())
	require.NoError(t, v.SetReason("storm"))

	require.Error(t, v.Confirm(context.Background()))
	snap := v.Snapshot()
	require.Equal(t, StateConfirmingCancel, snap.State)
	require.Equal(t, "update failed", snap.SubmitError)
	require.Equal(t, "storm", snap.Reason)
	require.True(t, snap.ConfirmEnabled)

	rec.failing = nil
	require.NoError(t, v.Confirm(context.Background()))
	require.Equal(t, StateClosed, v.State())
}

func TestAbandonReturnsToLoaded(t *testing.T) {
	rec := &cancelRecorder{}
	v := openLoaded(t, scheduled(1), creator, rec)
	require.ErrorIs(t, v.Abandon(), ErrInvalidTransition)

	require.NoError(t, v.RequestCancel())
	require.NoError(t, v.SetReason("maybe"))
	require.NoError(t, v.Abandon())
	require.Equal(t, StateLoaded, v.State())
	require.Empty(t, v.Snapshot().Reason)
	require.ErrorIs(t, v.SetReason("x"), ErrInvalidTransition)
}

func TestCloseFromAnyState(t *testing.T) {
	rec := &cancelRecorder{}
	v := openLoaded(t, scheduled(1), creator, rec)
	require.NoError(t, v.RequestCancel())
	v.Close()
	require.Equal(t, StateClosed, v.State())
	v.Close()
	require.ErrorIs(t, v.RequestCancel(), ErrClosed)
	require.ErrorIs(t, v.SetSession(context.Background(), scheduled(2)), ErrClosed)
}

func TestEligibilityFollowsSessionUpdates(t *testing.T) {
	rec := &cancelRecorder{}
	v := openLoaded(t, scheduled(1), creator, rec)
	require.True(t, v.CanCancel())

	done := scheduled(1)
	done.Status = model.StatusCompleted
	require.NoError(t, v.SetSession(context.Background(), done))
	require.False(t, v.CanCancel())
	require.Equal(t, StateLoaded, v.State())
}

func TestConcurrentConfirmIsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	cancel := func(context.Context, uint64, string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return nil
	}
	v := Open(context.Background(), scheduled(1), creator, rosterLoader(), cancel)
	require.NoError(t, v.Wait(context.Background()))
	require.NoError(t, v.RequestCancel())
	require.NoError(t, v.SetReason("rain"))

	errCh := make(chan error, 1)
	go func() { errCh <- v.Confirm(context.Background()) }()
	<-entered
	require.ErrorIs(t, v.Confirm(context.Background()), ErrBusy)
	require.False(t, v.ConfirmEnabled())
	close(release)
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestWaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	load := func(context.Context, uint64) ([]model.Participant, error) {
		<-block
		return nil, nil
	}
	v := Open(context.Background(), scheduled(1), creator, load, (&cancelRecorder{}).fn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, v.Wait(ctx), context.DeadlineExceeded)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "loading", StateLoading.String())
	require.Equal(t, "confirming_cancel", StateConfirmingCancel.String())
	require.Equal(t, "closed", StateClosed.String())
}

func TestReasonLengthLimit(t *testing.T) {
	rec := &cancelRecorder{}
	v := openLoaded(t, scheduled(7), creator, rec)
	require.NoError(t, v.RequestCancel())

	long := strings.Repeat("x", 5000)
	require.ErrorIs(t, v.SetReason(long), ErrReasonTooLong)
	snap := v.Snapshot()
	require.Equal(t, long, snap.Reason)
	require.False(t, snap.ConfirmEnabled)
	require.ErrorIs(t, v.Confirm(context.Background()), ErrReasonTooLong)
	require.Empty(t, rec.calls)
	require.Equal(t, StateConfirmingCancel, v.State())

	// the limit counts characters, and surrounding blanks are trimmed first
	atLimit := "  " + strings.Repeat("é", MaxReasonLen) + "  "
	require.NoError(t, v.SetReason(atLimit))
	require.True(t, v.ConfirmEnabled())
	require.NoError(t, v.Confirm(context.Background()))
	require.Equal(t, []string{strings.Repeat("é", MaxReasonLen)}, rec.calls)
}
