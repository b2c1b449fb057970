package handler

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/calendar"
    "github.com/iliyamo/sports-calendar/internal/detail"
    "github.com/iliyamo/sports-calendar/internal/middleware"
    "github.com/iliyamo/sports-calendar/internal/model"
    "github.com/iliyamo/sports-calendar/internal/repository"
)

// calendarPage is the data of calendar.html.
type calendarPage struct {
    Title         string
    User          *model.CurrentUser
    CSRFToken     string
    Month         string
    PrevMonth     string
    TodayMonth    string
    NextMonth     string
    Grid          calendar.Grid
    VisiblePerDay int
    Error         string
    Detail        *detailPanel
}

// detailPanel is the session modal drawn over the grid.
type detailPanel struct {
    View        detail.Snapshot
    ShowForm    bool
    ReasonError string
    SubmitError string
}

// buildPage lays out the requested month.  A bad month parameter or a
// failed session fetch still yields a page with an empty grid and an
// error banner, together with the status to send.
func (h *SessionHandler) buildPage(ctx context.Context, c echo.Context, month string) (calendarPage, int) {
    now := h.now()
    page := calendarPage{
        User:          middleware.CurrentUser(c),
        CSRFToken:     middleware.CSRFToken(c),
        VisiblePerDay: h.VisiblePerDay,
    }
    status := http.StatusOK

    anchor, err := calendar.ParseMonth(month, h.Loc, now)
    if err != nil {
        anchor, _ = calendar.ParseMonth("", h.Loc, now)
        _, page.Error = statusFor(err)
        status = http.StatusBadRequest
    }

    nav := calendar.NewNavigator(anchor)
    nav.Today(now)
    page.TodayMonth = nav.Anchor().Format(calendar.MonthLayout)
    nav.SetMonth(anchor)
    nav.AdvanceMonth(-1)
    page.PrevMonth = nav.Anchor().Format(calendar.MonthLayout)
    nav.SetMonth(anchor)
    nav.AdvanceMonth(1)
    page.NextMonth = nav.Anchor().Format(calendar.MonthLayout)
    page.Month = anchor.Format(calendar.MonthLayout)
    page.Title = anchor.Format("January 2006")

    grid, err := h.Svc.MonthGrid(ctx, anchor)
    if err != nil {
        grid = calendar.Build(anchor, nil, now)
        if status == http.StatusOK {
            status, _ = statusFor(err)
            if status == http.StatusInternalServerError {
                status = http.StatusBadGateway
            }
            page.Error = "Sessions could not be loaded. Try again in a moment."
        }
    }
    page.Grid = grid
    return page, status
}

// Calendar: GET /calendar?month=2024-03
func (h *SessionHandler) Calendar(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    page, status := h.buildPage(ctx, c, c.QueryParam("month"))
    return c.Render(status, "calendar.html", page)
}

// openDetail loads the session and its roster into a fresh view.
func (h *SessionHandler) openDetail(ctx context.Context, c echo.Context) (*detail.View, error) {
    id, ok := pathID(c)
    if !ok {
        return nil, errInvalidID
    }
    s, err := h.Svc.GetSession(ctx, id)
    if err != nil {
        return nil, err
    }
    user := middleware.CurrentUser(c)
    v := detail.Open(ctx, *s, user, h.Svc.Loader(), h.Svc.Canceller(user))
    if err := v.Wait(ctx); err != nil {
        v.Close()
        return nil, err
    }
    return v, nil
}

var errInvalidID = errors.New("invalid id")

// cancelRefusal reports a refused cancel request.  A creator or admin is
// refused only because the session already left the scheduled state, which
// is a conflict rather than a permission problem.
func cancelRefusal(user *model.CurrentUser, s model.Session, err error) error {
    if errors.Is(err, detail.ErrNotEligible) && user != nil &&
        (user.IsAdmin() || user.Email == s.CreatedBy) {
        return fmt.Errorf("session %d is %s: %w", s.ID, s.Status, repository.ErrConflict)
    }
    return err
}

// renderDetailError draws the calendar with an error banner instead of
// the modal.
func (h *SessionHandler) renderDetailError(c echo.Context, page calendarPage, err error) error {
    status, msg := statusFor(err)
    if errors.Is(err, errInvalidID) {
        status, msg = http.StatusBadRequest, "invalid session id"
    }
    page.Error = msg
    return c.Render(status, "calendar.html", page)
}

// SessionDetail: GET /calendar/sessions/:id?month=2024-03[&cancel=1]
// Shows the session modal.  cancel=1 opens the confirmation form when the
// viewer may cancel.
func (h *SessionHandler) SessionDetail(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    page, status := h.buildPage(ctx, c, c.QueryParam("month"))

    v, err := h.openDetail(ctx, c)
    if err != nil {
        return h.renderDetailError(c, page, err)
    }
    defer v.Close()

    panel := &detailPanel{}
    if want, _ := strconv.ParseBool(c.QueryParam("cancel")); want {
        if err := v.RequestCancel(); err != nil {
            status, panel.SubmitError = statusFor(cancelRefusal(page.User, v.Snapshot().Session, err))
        } else {
            panel.ShowForm = true
        }
    }
    panel.View = v.Snapshot()
    page.Detail = panel
    page.Title = panel.View.Session.Title
    return c.Render(status, "calendar.html", page)
}

// CancelSubmit: POST /calendar/sessions/:id/cancel (form: reason, month).
// Success redirects back to the month.  Failures re-render the form with
// the entered reason kept.
func (h *SessionHandler) CancelSubmit(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    page, _ := h.buildPage(ctx, c, c.FormValue("month"))

    v, err := h.openDetail(ctx, c)
    if err != nil {
        return h.renderDetailError(c, page, err)
    }
    defer v.Close()

    panel := &detailPanel{}
    page.Detail = panel
    if err := v.RequestCancel(); err != nil {
        var status int
        status, panel.SubmitError = statusFor(cancelRefusal(page.User, v.Snapshot().Session, err))
        panel.View = v.Snapshot()
        return c.Render(status, "calendar.html", page)
    }
    panel.ShowForm = true
    _ = v.SetReason(c.FormValue("reason"))

    if err := v.Confirm(ctx); err != nil {
        status, msg := statusFor(err)
        if errors.Is(err, detail.ErrEmptyReason) || errors.Is(err, detail.ErrReasonTooLong) {
            panel.ReasonError = msg
        } else {
            panel.SubmitError = msg
        }
        panel.View = v.Snapshot()
        page.Title = panel.View.Session.Title
        return c.Render(status, "calendar.html", page)
    }
    return c.Redirect(http.StatusSeeOther, "/calendar?month="+url.QueryEscape(page.Month))
}
