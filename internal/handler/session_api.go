package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/detail"
    "github.com/iliyamo/sports-calendar/internal/middleware"
    "github.com/iliyamo/sports-calendar/internal/service"
)

// SessionHandler serves the calendar pages and the session JSON API.
type SessionHandler struct {
    Svc           SessionService
    Views         *detail.Registry
    Loc           *time.Location
    VisiblePerDay int
    now           func() time.Time
    validate      *validator.Validate
}

func NewSessionHandler(svc SessionService, views *detail.Registry, loc *time.Location, visiblePerDay int) *SessionHandler {
    if loc == nil {
        loc = time.Local
    }
    return &SessionHandler{
        Svc:           svc,
        Views:         views,
        Loc:           loc,
        VisiblePerDay: visiblePerDay,
        now:           time.Now,
        validate:      validator.New(),
    }
}

func (h *SessionHandler) fail(c echo.Context, err error) error {
    status, msg := statusFor(err)
    return c.JSON(status, echo.Map{"error": msg})
}

// ----- DTOs -----

type createSessionReq struct {
    Title       string    `json:"title" validate:"required,max=200"`
    SportName   string    `json:"sport_name" validate:"required,max=100"`
    Venue       string    `json:"venue" validate:"required,max=200"`
    Description *string   `json:"description" validate:"omitempty,max=5000"`
    ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
    MaxPlayers  int       `json:"max_players" validate:"required,min=1,max=1000"`
}

type joinReq struct {
    DisplayName string `json:"display_name" validate:"max=100"`
}

type cancelReq struct {
    Reason string `json:"reason" validate:"max=500"`
}

// ListSessions: GET /v1/sessions?sort=-scheduled_at
func (h *SessionHandler) ListSessions(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    items, err := h.Svc.ListSessions(ctx, c.QueryParam("sort"))
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// GetSession: GET /v1/sessions/:id
func (h *SessionHandler) GetSession(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    s, err := h.Svc.GetSession(ctx, id)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, s)
}

// ListParticipants: GET /v1/sessions/:id/participants?sort=-created_at
func (h *SessionHandler) ListParticipants(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    if _, err := h.Svc.GetSession(ctx, id); err != nil {
        return h.fail(c, err)
    }
    items, err := h.Svc.ListParticipants(ctx, id, c.QueryParam("sort"))
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// CreateSession: POST /v1/sessions
func (h *SessionHandler) CreateSession(c echo.Context) error {
    var req createSessionReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.validate.Struct(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    s, err := h.Svc.CreateSession(ctx, middleware.CurrentUser(c), service.CreateSessionInput{
        Title:       req.Title,
        SportName:   req.SportName,
        Venue:       req.Venue,
        Description: req.Description,
        ScheduledAt: req.ScheduledAt,
        MaxPlayers:  req.MaxPlayers,
    })
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusCreated, s)
}

// JoinSession: POST /v1/sessions/:id/join
func (h *SessionHandler) JoinSession(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req joinReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.validate.Struct(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    p, err := h.Svc.JoinSession(ctx, middleware.CurrentUser(c), id, req.DisplayName)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusCreated, p)
}

// CancelSession: POST /v1/sessions/:id/cancel with {"reason": "..."}.
// The reason is trimmed; a blank or overlong one is 422.
func (h *SessionHandler) CancelSession(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req cancelReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.validate.Struct(&req); err != nil {
        return h.fail(c, detail.ErrReasonTooLong)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()
    if err := h.Svc.CancelSession(ctx, middleware.CurrentUser(c), id, req.Reason); err != nil {
        return h.fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
