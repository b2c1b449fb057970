package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/detail"
    "github.com/iliyamo/sports-calendar/internal/metrics"
    "github.com/iliyamo/sports-calendar/internal/middleware"
    "github.com/iliyamo/sports-calendar/internal/model"
)

type viewDTO struct {
    ID             string              `json:"id"`
    State          string              `json:"state"`
    Session        model.Session       `json:"session"`
    Participants   []model.Participant `json:"participants"`
    FetchFailed    bool                `json:"fetch_failed"`
    CanCancel      bool                `json:"can_cancel"`
    Reason         string              `json:"reason"`
    ConfirmEnabled bool                `json:"confirm_enabled"`
    SubmitError    string              `json:"submit_error,omitempty"`
}

func newViewDTO(id uuid.UUID, s detail.Snapshot) viewDTO {
    return viewDTO{
        ID:             id.String(),
        State:          s.State.String(),
        Session:        s.Session,
        Participants:   s.Participants,
        FetchFailed:    s.FetchFailed,
        CanCancel:      s.CanCancel,
        Reason:         s.Reason,
        ConfirmEnabled: s.ConfirmEnabled,
        SubmitError:    s.SubmitError,
    }
}

type reasonReq struct {
    Reason string `json:"reason" validate:"max=500"`
}

func viewID(c echo.Context) (uuid.UUID, bool) {
    id, err := uuid.Parse(c.Param("vid"))
    return id, err == nil
}

// lookupView resolves :vid for the current user and writes the error
// response itself when that fails.
func (h *SessionHandler) lookupView(c echo.Context) (uuid.UUID, *detail.View, error) {
    id, ok := viewID(c)
    if !ok {
        return uuid.Nil, nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid view id"})
    }
    v, err := h.Views.Get(id, middleware.CurrentUser(c))
    if err != nil {
        return uuid.Nil, nil, h.fail(c, err)
    }
    return id, v, nil
}

// OpenView: POST /v1/sessions/:id/views?wait=true
// Starts a detail view for the session.  With wait the response is sent
// once the participant list has loaded.
func (h *SessionHandler) OpenView(c echo.Context) error {
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
    user := middleware.CurrentUser(c)
    vid, v := h.Views.Open(ctx, *s, user, h.Svc.Loader(), h.Svc.Canceller(user))
    metrics.OpenViews.Set(float64(h.Views.Len()))

    if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
        if err := v.Wait(ctx); err != nil {
            return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "participants still loading", "id": vid.String()})
        }
    }
    return c.JSON(http.StatusCreated, newViewDTO(vid, v.Snapshot()))
}

// GetView: GET /v1/views/:vid
func (h *SessionHandler) GetView(c echo.Context) error {
    id, v, err := h.lookupView(c)
    if v == nil {
        return err
    }
    return c.JSON(http.StatusOK, newViewDTO(id, v.Snapshot()))
}

// RequestCancel: POST /v1/views/:vid/cancel opens the confirmation form.
func (h *SessionHandler) RequestCancel(c echo.Context) error {
    id, v, err := h.lookupView(c)
    if v == nil {
        return err
    }
    if err := v.RequestCancel(); err != nil {
        return h.fail(c, cancelRefusal(middleware.CurrentUser(c), v.Snapshot().Session, err))
    }
    return c.JSON(http.StatusOK, newViewDTO(id, v.Snapshot()))
}

// SetReason: PUT /v1/views/:vid/reason
func (h *SessionHandler) SetReason(c echo.Context) error {
    id, v, err := h.lookupView(c)
    if v == nil {
        return err
    }
    var req reasonReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.validate.Struct(&req); err != nil {
        return h.fail(c, detail.ErrReasonTooLong)
    }
    if err := v.SetReason(req.Reason); err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, newViewDTO(id, v.Snapshot()))
}

// Nevermind: POST /v1/views/:vid/nevermind leaves the form.
func (h *SessionHandler) Nevermind(c echo.Context) error {
    id, v, err := h.lookupView(c)
    if v == nil {
        return err
    }
    if err := v.Abandon(); err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, newViewDTO(id, v.Snapshot()))
}

// ConfirmCancel: POST /v1/views/:vid/confirm submits the cancellation.
// On success the view is closed and dropped; on failure the form stays
// open and the snapshot carries submit_error.
func (h *SessionHandler) ConfirmCancel(c echo.Context) error {
    id, v, err := h.lookupView(c)
    if v == nil {
        return err
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()
    if err := v.Confirm(ctx); err != nil {
        status, msg := statusFor(err)
        return c.JSON(status, echo.Map{"error": msg, "view": newViewDTO(id, v.Snapshot())})
    }
    snap := v.Snapshot()
    h.Views.Forget(id)
    metrics.OpenViews.Set(float64(h.Views.Len()))
    return c.JSON(http.StatusOK, newViewDTO(id, snap))
}

// CloseView: DELETE /v1/views/:vid
func (h *SessionHandler) CloseView(c echo.Context) error {
    id, ok := viewID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid view id"})
    }
    if err := h.Views.Close(id, middleware.CurrentUser(c)); err != nil {
        return h.fail(c, err)
    }
    metrics.OpenViews.Set(float64(h.Views.Len()))
    return c.NoContent(http.StatusNoContent)
}
