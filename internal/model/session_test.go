package model

import (
    "testing"

    "github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCanCancel(t *testing.T) {
    creator := &CurrentUser{Email: "a@x.com", Role: RoleUser}
    admin := &CurrentUser{Email: "root@x.com", Role: RoleAdmin}
    stranger := &CurrentUser{Email: "b@x.com", Role: RoleUser}

    cases := []struct {
        name string
        user *CurrentUser
        sess Session
        want bool
    }{
        {"creator scheduled", creator, Session{CreatedBy: "a@x.com", Status: StatusScheduled}, true},
        {"admin full", admin, Session{CreatedBy: "other@x.com", Status: StatusFull}, true},
        {"creator completed", creator, Session{CreatedBy: "a@x.com", Status: StatusCompleted}, false},
        {"creator cancelled", creator, Session{CreatedBy: "a@x.com", Status: StatusCancelled}, false},
        {"admin completed", admin, Session{CreatedBy: "a@x.com", Status: StatusCompleted}, false},
        {"stranger scheduled", stranger, Session{CreatedBy: "a@x.com", Status: StatusScheduled}, false},
        {"no user", nil, Session{CreatedBy: "a@x.com", Status: StatusScheduled}, false},
        {"no user empty creator", nil, Session{Status: StatusScheduled}, false},
        {"empty email does not match empty creator", &CurrentUser{Role: RoleUser}, Session{Status: StatusScheduled}, false},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            require.Equal(t, tc.want, CanCancel(tc.user, tc.sess))
        })
    }
}

func TestCanCancelWithoutUserIgnoresOtherFields(t *testing.T) {
    for _, st := range []string{StatusScheduled, StatusFull, StatusCancelled, StatusCompleted} {
        require.False(t, CanCancel(nil, Session{Status: st, CreatedBy: ""}))
    }
}

func TestSessionValidate(t *testing.T) {
    ok := Session{Status: StatusScheduled, MaxPlayers: 10, CurrentPlayers: 3}
    require.NoError(t, ok.Validate())

    cancelled := Session{Status: StatusCancelled, MaxPlayers: 10, CancellationReason: strPtr("rain")}
    require.NoError(t, cancelled.Validate())

    noReason := Session{Status: StatusCancelled, MaxPlayers: 10}
    require.ErrorIs(t, noReason.Validate(), ErrReasonMismatch)

    strayReason := Session{Status: StatusFull, MaxPlayers: 10, CurrentPlayers: 10, CancellationReason: strPtr("x")}
    require.ErrorIs(t, strayReason.Validate(), ErrReasonMismatch)

    over := Session{Status: StatusFull, MaxPlayers: 2, CurrentPlayers: 3}
    require.ErrorIs(t, over.Validate(), ErrOverCapacity)

    require.ErrorIs(t, Session{Status: "postponed", MaxPlayers: 1}.Validate(), ErrUnknownStatus)
    require.ErrorIs(t, Session{Status: StatusScheduled}.Validate(), ErrInvalidCapacity)
}

func TestSpotsLeft(t *testing.T) {
    require.Equal(t, 4, Session{MaxPlayers: 10, CurrentPlayers: 6}.SpotsLeft())
    require.Equal(t, 0, Session{MaxPlayers: 10, CurrentPlayers: 10}.SpotsLeft())
}
