// Package handler holds the echo handlers: the calendar pages, the JSON
// API and authentication.
package handler

import (
    "context"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/calendar"
    "github.com/iliyamo/sports-calendar/internal/detail"
    "github.com/iliyamo/sports-calendar/internal/model"
    "github.com/iliyamo/sports-calendar/internal/service"
)

// SessionService is what the session handlers need from the service layer.
type SessionService interface {
    ListSessions(ctx context.Context, sortKey string) ([]model.Session, error)
    GetSession(ctx context.Context, id uint64) (*model.Session, error)
    ListParticipants(ctx context.Context, sessionID uint64, sortKey string) ([]model.Participant, error)
    MonthGrid(ctx context.Context, anchor time.Time) (calendar.Grid, error)
    CreateSession(ctx context.Context, user *model.CurrentUser, in service.CreateSessionInput) (*model.Session, error)
    JoinSession(ctx context.Context, user *model.CurrentUser, sessionID uint64, name string) (*model.Participant, error)
    CancelSession(ctx context.Context, user *model.CurrentUser, id uint64, reason string) error
    Loader() detail.ParticipantLoader
    Canceller(user *model.CurrentUser) detail.CancelFunc
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    return id, err == nil && id > 0
}
