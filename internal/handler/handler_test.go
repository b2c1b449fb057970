package handler

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "net/url"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/go-sql-driver/mysql"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/sports-calendar/internal/calendar"
    "github.com/iliyamo/sports-calendar/internal/detail"
    "github.com/iliyamo/sports-calendar/internal/middleware"
    "github.com/iliyamo/sports-calendar/internal/model"
    "github.com/iliyamo/sports-calendar/internal/repository"
    "github.com/iliyamo/sports-calendar/internal/service"
    "github.com/iliyamo/sports-calendar/internal/utils"
    "github.com/iliyamo/sports-calendar/internal/web"
)

const testSecret = "handler-test-secret"

var fixedNow = time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)

type fakeService struct {
    mu           sync.Mutex
    sessions     map[uint64]model.Session
    participants []model.Participant
    partsErr     error
    gridErr      error
    cancelErr    error
    cancelled    map[uint64]string
}

func newFakeService() *fakeService {
    at := time.Date(2024, time.March, 14, 18, 0, 0, 0, time.UTC)
    return &fakeService{
        sessions: map[uint64]model.Session{
            1: {ID: 1, Title: "Pickup Basketball", SportName: "Basketball", Venue: "Gym A",
                ScheduledAt: &at, MaxPlayers: 10, CurrentPlayers: 2,
                Status: model.StatusScheduled, CreatedBy: "alice@x.com"},
        },
        participants: []model.Participant{{ID: 7, SessionID: 1, DisplayName: "Bob", Email: "bob@x.com"}},
        cancelled:    map[uint64]string{},
    }
}

func (f *fakeService) ListSessions(ctx context.Context, sortKey string) ([]model.Session, error) {
    if sortKey == "bogus" {
        return nil, repository.ErrInvalidSort
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    out := []model.Session{}
    for _, s := range f.sessions {
        out = append(out, s)
    }
    return out, nil
}

func (f *fakeService) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    s, ok := f.sessions[id]
    if !ok {
        return nil, repository.ErrSessionNotFound
    }
    return &s, nil
}

func (f *fakeService) ListParticipants(ctx context.Context, sessionID uint64, sortKey string) ([]model.Participant, error) {
    return f.participants, f.partsErr
}

func (f *fakeService) MonthGrid(ctx context.Context, anchor time.Time) (calendar.Grid, error) {
    if f.gridErr != nil {
        return calendar.Grid{}, f.gridErr
    }
    list, _ := f.ListSessions(ctx, "")
    return calendar.Build(anchor, list, fixedNow), nil
}

func (f *fakeService) CreateSession(ctx context.Context, user *model.CurrentUser, in service.CreateSessionInput) (*model.Session, error) {
    if user == nil {
        return nil, service.ErrUnauthenticated
    }
    at := in.ScheduledAt
    s := model.Session{ID: 2, Title: in.Title, SportName: in.SportName, Venue: in.Venue,
        ScheduledAt: &at, MaxPlayers: in.MaxPlayers, Status: model.StatusScheduled, CreatedBy: user.Email}
    f.mu.Lock()
    f.sessions[2] = s
    f.mu.Unlock()
    return &s, nil
}

func (f *fakeService) JoinSession(ctx context.Context, user *model.CurrentUser, sessionID uint64, name string) (*model.Participant, error) {
    if user == nil {
        return nil, service.ErrUnauthenticated
    }
    return &model.Participant{ID: 8, SessionID: sessionID, DisplayName: name, Email: user.Email}, nil
}

func (f *fakeService) CancelSession(ctx context.Context, user *model.CurrentUser, id uint64, reason string) error {
    if f.cancelErr != nil {
        return f.cancelErr
    }
    s, err := f.GetSession(ctx, id)
    if err != nil {
        return err
    }
    if !model.CanCancel(user, *s) {
        if user != nil && (user.IsAdmin() || user.Email == s.CreatedBy) {
            return repository.ErrConflict
        }
        return service.ErrForbidden
    }
    reason = strings.TrimSpace(reason)
    if reason == "" {
        return service.ErrEmptyReason
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    s.Status = model.StatusCancelled
    s.CancellationReason = &reason
    f.sessions[id] = *s
    f.cancelled[id] = reason
    return nil
}

func (f *fakeService) Loader() detail.ParticipantLoader {
    return func(ctx context.Context, sessionID uint64) ([]model.Participant, error) {
        return f.ListParticipants(ctx, sessionID, "")
    }
}

func (f *fakeService) Canceller(user *model.CurrentUser) detail.CancelFunc {
    return func(ctx context.Context, sessionID uint64, reason string) error {
        return f.CancelSession(ctx, user, sessionID, reason)
    }
}

func newTestServer(t *testing.T, svc *fakeService) (*echo.Echo, *SessionHandler) {
    t.Helper()
    r, err := web.NewRenderer(time.UTC)
    require.NoError(t, err)
    e := echo.New()
    e.Renderer = r

    h := NewSessionHandler(svc, detail.NewRegistry(), time.UTC, 2)
    h.now = func() time.Time { return fixedNow }

    e.Use(middleware.OptionalJWT(testSecret))
    e.GET("/calendar", h.Calendar)
    e.GET("/calendar/sessions/:id", h.SessionDetail)
    e.POST("/calendar/sessions/:id/cancel", h.CancelSubmit)

    e.GET("/v1/calendar", h.MonthGrid)
    e.GET("/v1/sessions", h.ListSessions)
    e.GET("/v1/sessions/:id", h.GetSession)
    e.GET("/v1/sessions/:id/participants", h.ListParticipants)
    e.POST("/v1/sessions", h.CreateSession)
    e.POST("/v1/sessions/:id/join", h.JoinSession)
    e.POST("/v1/sessions/:id/cancel", h.CancelSession)
    e.POST("/v1/sessions/:id/views", h.OpenView)
    e.GET("/v1/views/:vid", h.GetView)
    e.POST("/v1/views/:vid/cancel", h.RequestCancel)
    e.PUT("/v1/views/:vid/reason", h.SetReason)
    e.POST("/v1/views/:vid/nevermind", h.Nevermind)
    e.POST("/v1/views/:vid/confirm", h.ConfirmCancel)
    e.DELETE("/v1/views/:vid", h.CloseView)
    return e, h
}

func bearer(t *testing.T, id uint64, email, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(testSecret, id, email, role, time.Hour)
    require.NoError(t, err)
    return "Bearer " + tok.Token
}

func do(e *echo.Echo, method, target, auth, body string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    if auth != "" {
        req.Header.Set(echo.HeaderAuthorization, auth)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func postForm(e *echo.Echo, target, auth string, form url.Values) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
    if auth != "" {
        req.Header.Set(echo.HeaderAuthorization, auth)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestStatusFor(t *testing.T) {
    cases := []struct {
        err  error
        want int
    }{
        {repository.ErrSessionNotFound, http.StatusNotFound},
        {detail.ErrViewNotFound, http.StatusNotFound},
        {service.ErrForbidden, http.StatusForbidden},
        {detail.ErrNotEligible, http.StatusForbidden},
        {repository.ErrConflict, http.StatusConflict},
        {service.ErrEmptyReason, http.StatusUnprocessableEntity},
        {detail.ErrEmptyReason, http.StatusUnprocessableEntity},
        {detail.ErrReasonTooLong, http.StatusUnprocessableEntity},
        {fmt.Errorf("cancel session 1: %w", &mysql.MySQLError{Number: 1406, Message: "Data too long"}), http.StatusUnprocessableEntity},
        {&mysql.MySQLError{Number: 1213, Message: "Deadlock"}, http.StatusInternalServerError},
        {calendar.ErrInvalidMonth, http.StatusBadRequest},
        {context.DeadlineExceeded, http.StatusBadGateway},
        {errors.New("boom"), http.StatusInternalServerError},
    }
    for _, tc := range cases {
        got, msg := statusFor(tc.err)
        require.Equal(t, tc.want, got, tc.err.Error())
        require.NotEmpty(t, msg)
    }
}

func TestCancelSessionAPI(t *testing.T) {
    owner := bearer(t, 1, "alice@x.com", model.RoleUser)
    stranger := bearer(t, 2, "eve@x.com", model.RoleUser)

    t.Run("blank reason", func(t *testing.T) {
        e, _ := newTestServer(t, newFakeService())
        rec := do(e, http.MethodPost, "/v1/sessions/1/cancel", owner, `{"reason":"   "}`)
        require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    })
    t.Run("stranger", func(t *testing.T) {
        e, _ := newTestServer(t, newFakeService())
        rec := do(e, http.MethodPost, "/v1/sessions/1/cancel", stranger, `{"reason":"rain"}`)
        require.Equal(t, http.StatusForbidden, rec.Code)
    })
    t.Run("missing session", func(t *testing.T) {
        e, _ := newTestServer(t, newFakeService())
        rec := do(e, http.MethodPost, "/v1/sessions/42/cancel", owner, `{"reason":"rain"}`)
        require.Equal(t, http.StatusNotFound, rec.Code)
    })
    t.Run("owner then repeat", func(t *testing.T) {
        svc := newFakeService()
        e, _ := newTestServer(t, svc)
        rec := do(e, http.MethodPost, "/v1/sessions/1/cancel", owner, `{"reason":"  Gym closed  "}`)
        require.Equal(t, http.StatusNoContent, rec.Code)
        require.Equal(t, "Gym closed", svc.cancelled[1])

        rec = do(e, http.MethodPost, "/v1/sessions/1/cancel", owner, `{"reason":"again"}`)
        require.Equal(t, http.StatusConflict, rec.Code)
    })
    t.Run("bad id", func(t *testing.T) {
        e, _ := newTestServer(t, newFakeService())
        rec := do(e, http.MethodPost, "/v1/sessions/abc/cancel", owner, `{"reason":"x"}`)
        require.Equal(t, http.StatusBadRequest, rec.Code)
    })
    t.Run("reason too long", func(t *testing.T) {
        svc := newFakeService()
        e, _ := newTestServer(t, svc)
        body := `{"reason":"` + strings.Repeat("r", 5000) + `"}`
        rec := do(e, http.MethodPost, "/v1/sessions/1/cancel", owner, body)
        require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
        require.Contains(t, rec.Body.String(), "too long")
        require.Empty(t, svc.cancelled)
    })
}

func TestSessionReadAPI(t *testing.T) {
    e, _ := newTestServer(t, newFakeService())

    rec := do(e, http.MethodGet, "/v1/sessions", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Contains(t, rec.Body.String(), "Pickup Basketball")

    rec = do(e, http.MethodGet, "/v1/sessions?sort=bogus", "", "")
    require.Equal(t, http.StatusBadRequest, rec.Code)

    rec = do(e, http.MethodGet, "/v1/sessions/9", "", "")
    require.Equal(t, http.StatusNotFound, rec.Code)

    rec = do(e, http.MethodGet, "/v1/sessions/9/participants", "", "")
    require.Equal(t, http.StatusNotFound, rec.Code)

    rec = do(e, http.MethodGet, "/v1/sessions/1/participants", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Contains(t, rec.Body.String(), "Bob")
}

func TestCreateAndJoinAPI(t *testing.T) {
    e, _ := newTestServer(t, newFakeService())
    auth := bearer(t, 1, "alice@x.com", model.RoleUser)

    rec := do(e, http.MethodPost, "/v1/sessions", auth, `{"title":"Futsal"}`)
    require.Equal(t, http.StatusBadRequest, rec.Code)

    body := `{"title":"Futsal","sport_name":"Football","venue":"Hall","scheduled_at":"2024-03-20T19:00:00Z","max_players":10}`
    rec = do(e, http.MethodPost, "/v1/sessions", auth, body)
    require.Equal(t, http.StatusCreated, rec.Code)
    require.Contains(t, rec.Body.String(), `"created_by":"alice@x.com"`)

    rec = do(e, http.MethodPost, "/v1/sessions/1/join", auth, `{"display_name":"Al"}`)
    require.Equal(t, http.StatusCreated, rec.Code)
}

func TestMonthGridAPI(t *testing.T) {
    svc := newFakeService()
    e, h := newTestServer(t, svc)

    rec := do(e, http.MethodGet, "/v1/calendar?month=2024-13", "", "")
    require.Equal(t, http.StatusBadRequest, rec.Code)

    rec = do(e, http.MethodGet, "/v1/calendar?month=2024-03", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    var g gridDTO
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
    require.Equal(t, "2024-03", g.Month)
    require.Equal(t, "2024-02", g.Prev)
    require.Equal(t, "2024-04", g.Next)
    require.Equal(t, 5, g.LeadingBlanks) // 1 March 2024 is a Friday
    require.Len(t, g.Cells, 31)
    require.True(t, g.Cells[13].IsToday)
    require.Len(t, g.Cells[13].Sessions, 1)

    require.Equal(t, "2024-03-14", h.CalendarDay(nil))
    h.now = func() time.Time { return fixedNow.Add(14 * time.Hour) }
    require.Equal(t, "2024-03-15", h.CalendarDay(nil))
    h.now = func() time.Time { return fixedNow }

    svc.gridErr = context.DeadlineExceeded
    rec = do(e, http.MethodGet, "/v1/calendar?month=2024-03", "", "")
    require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNewGridDTOOverflow(t *testing.T) {
    at := time.Date(2024, time.March, 2, 9, 0, 0, 0, time.UTC)
    var list []model.Session
    for i := 0; i < 5; i++ {
        list = append(list, model.Session{ID: uint64(i + 1), ScheduledAt: &at})
    }
    g := calendar.Build(at, list, fixedNow)
    dto := newGridDTO(g, 2)
    require.Len(t, dto.Cells[1].Sessions, 2)
    require.Equal(t, 3, dto.Cells[1].Overflow)
    require.NotNil(t, dto.Cells[0].Sessions)
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) viewDTO {
    t.Helper()
    var v viewDTO
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
    return v
}

func TestViewCancelFlow(t *testing.T) {
    svc := newFakeService()
    e, h := newTestServer(t, svc)
    owner := bearer(t, 1, "alice@x.com", model.RoleUser)

    rec := do(e, http.MethodPost, "/v1/sessions/1/views?wait=true", owner, "")
    require.Equal(t, http.StatusCreated, rec.Code)
    v := decodeView(t, rec)
    require.Equal(t, "loaded", v.State)
    require.True(t, v.CanCancel)
    require.Len(t, v.Participants, 1)
    base := "/v1/views/" + v.ID

    // another identity cannot see the view
    rec = do(e, http.MethodGet, base, bearer(t, 2, "eve@x.com", model.RoleUser), "")
    require.Equal(t, http.StatusNotFound, rec.Code)

    rec = do(e, http.MethodPost, base+"/confirm", owner, "")
    require.Equal(t, http.StatusConflict, rec.Code)

    rec = do(e, http.MethodPost, base+"/cancel", owner, "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "confirming_cancel", decodeView(t, rec).State)
    require.False(t, decodeView(t, rec).ConfirmEnabled)

    rec = do(e, http.MethodPost, base+"/confirm", owner, "")
    require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

    rec = do(e, http.MethodPut, base+"/reason", owner, `{"reason":"`+strings.Repeat("w", 501)+`"}`)
    require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    require.Empty(t, svc.cancelled)

    rec = do(e, http.MethodPut, base+"/reason", owner, `{"reason":"  Court flooded "}`)
    require.Equal(t, http.StatusOK, rec.Code)
    require.True(t, decodeView(t, rec).ConfirmEnabled)

    rec = do(e, http.MethodPost, base+"/confirm", owner, "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "closed", decodeView(t, rec).State)
    require.Equal(t, "Court flooded", svc.cancelled[1])
    require.Equal(t, 0, h.Views.Len())

    rec = do(e, http.MethodGet, base, owner, "")
    require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewTerminalSessionIsConflictForCreator(t *testing.T) {
    svc := newFakeService()
    s := svc.sessions[1]
    s.Status = model.StatusCompleted
    svc.sessions[1] = s
    e, _ := newTestServer(t, svc)

    owner := bearer(t, 1, "alice@x.com", model.RoleUser)
    v := decodeView(t, do(e, http.MethodPost, "/v1/sessions/1/views?wait=true", owner, ""))
    require.False(t, v.CanCancel)
    rec := do(e, http.MethodPost, "/v1/views/"+v.ID+"/cancel", owner, "")
    require.Equal(t, http.StatusConflict, rec.Code)

    stranger := bearer(t, 2, "eve@x.com", model.RoleUser)
    v = decodeView(t, do(e, http.MethodPost, "/v1/sessions/1/views?wait=true", stranger, ""))
    rec = do(e, http.MethodPost, "/v1/views/"+v.ID+"/cancel", stranger, "")
    require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestViewSubmitFailureKeepsForm(t *testing.T) {
    svc := newFakeService()
    e, _ := newTestServer(t, svc)
    owner := bearer(t, 1, "alice@x.com", model.RoleUser)

    v := decodeView(t, do(e, http.MethodPost, "/v1/sessions/1/views?wait=true", owner, ""))
    base := "/v1/views/" + v.ID
    require.Equal(t, http.StatusOK, do(e, http.MethodPost, base+"/cancel", owner, "").Code)
    require.Equal(t, http.StatusOK, do(e, http.MethodPut, base+"/reason", owner, `{"reason":"rain"}`).Code)

    svc.cancelErr = context.DeadlineExceeded
    rec := do(e, http.MethodPost, base+"/confirm", owner, "")
    require.Equal(t, http.StatusBadGateway, rec.Code)

    rec = do(e, http.MethodGet, base, owner, "")
    got := decodeView(t, rec)
    require.Equal(t, "confirming_cancel", got.State)
    require.Equal(t, "rain", got.Reason)
    require.NotEmpty(t, got.SubmitError)

    rec = do(e, http.MethodPost, base+"/nevermind", owner, "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "loaded", decodeView(t, rec).State)

    require.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, base, owner, "").Code)
    require.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, base, owner, "").Code)
}

func TestViewStrangerCannotRequestCancel(t *testing.T) {
    e, _ := newTestServer(t, newFakeService())
    eve := bearer(t, 2, "eve@x.com", model.RoleUser)

    v := decodeView(t, do(e, http.MethodPost, "/v1/sessions/1/views?wait=1", eve, ""))
    require.False(t, v.CanCancel)
    rec := do(e, http.MethodPost, "/v1/views/"+v.ID+"/cancel", eve, "")
    require.Equal(t, http.StatusForbidden, rec.Code)

    rec = do(e, http.MethodGet, "/v1/views/not-a-uuid", eve, "")
    require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewParticipantFailure(t *testing.T) {
    svc := newFakeService()
    svc.partsErr = errors.New("db down")
    e, _ := newTestServer(t, svc)

    v := decodeView(t, do(e, http.MethodPost, "/v1/sessions/1/views?wait=true", "", ""))
    require.True(t, v.FetchFailed)
    require.Empty(t, v.Participants)
    require.Equal(t, "loaded", v.State)
}

func TestCalendarPage(t *testing.T) {
    svc := newFakeService()
    e, _ := newTestServer(t, svc)

    rec := do(e, http.MethodGet, "/calendar?month=2024-03", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    body := rec.Body.String()
    require.Contains(t, body, "March 2024")
    require.Contains(t, body, "Pickup Basketball")
    require.Contains(t, body, "month=2024-02")
    require.Contains(t, body, "month=2024-04")

    rec = do(e, http.MethodGet, "/calendar?month=March", "", "")
    require.Equal(t, http.StatusBadRequest, rec.Code)

    svc.gridErr = errors.New("connection refused")
    rec = do(e, http.MethodGet, "/calendar?month=2024-03", "", "")
    require.Equal(t, http.StatusBadGateway, rec.Code)
    require.Contains(t, rec.Body.String(), "Sessions could not be loaded")
}

func TestCalendarPageTodayLinkUsesCalendarZone(t *testing.T) {
    e, h := newTestServer(t, newFakeService())
    auckland, err := time.LoadLocation("Pacific/Auckland")
    require.NoError(t, err)
    h.Loc = auckland
    h.now = func() time.Time { return time.Date(2024, time.March, 31, 20, 0, 0, 0, time.UTC) }

    rec := do(e, http.MethodGet, "/calendar?month=2023-11", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Contains(t, rec.Body.String(), `href="/calendar?month=2024-04">Today`)
}

func TestSessionDetailPage(t *testing.T) {
    e, _ := newTestServer(t, newFakeService())
    owner := bearer(t, 1, "alice@x.com", model.RoleUser)

    rec := do(e, http.MethodGet, "/calendar/sessions/1?month=2024-03", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Contains(t, rec.Body.String(), "Bob")
    require.Contains(t, rec.Body.String(), "bob@x.com")
    require.Contains(t, rec.Body.String(), "8 spots left")
    require.NotContains(t, rec.Body.String(), "Cancel session")

    rec = do(e, http.MethodGet, "/calendar/sessions/1?month=2024-03", owner, "")
    require.Contains(t, rec.Body.String(), "Cancel session")

    rec = do(e, http.MethodGet, "/calendar/sessions/1?month=2024-03&cancel=1", owner, "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Contains(t, rec.Body.String(), "Confirm cancellation")
    require.Contains(t, rec.Body.String(), `maxlength="500"`)
    require.Contains(t, rec.Body.String(), `pattern=".*\S.*"`)

    rec = do(e, http.MethodGet, "/calendar/sessions/1?cancel=1", "", "")
    require.Equal(t, http.StatusForbidden, rec.Code)
    require.NotContains(t, rec.Body.String(), "Confirm cancellation")

    rec = do(e, http.MethodGet, "/calendar/sessions/77", "", "")
    require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSubmit(t *testing.T) {
    svc := newFakeService()
    e, _ := newTestServer(t, svc)
    owner := bearer(t, 1, "alice@x.com", model.RoleUser)

    rec := postForm(e, "/calendar/sessions/1/cancel", owner, url.Values{"reason": {"  "}, "month": {"2024-03"}})
    require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    require.Contains(t, rec.Body.String(), "a cancellation reason is required")
    require.Empty(t, svc.cancelled)

    rec = postForm(e, "/calendar/sessions/1/cancel", bearer(t, 2, "eve@x.com", model.RoleUser),
        url.Values{"reason": {"rain"}, "month": {"2024-03"}})
    require.Equal(t, http.StatusForbidden, rec.Code)

    svc.cancelErr = context.DeadlineExceeded
    rec = postForm(e, "/calendar/sessions/1/cancel", owner, url.Values{"reason": {"rain"}, "month": {"2024-03"}})
    require.Equal(t, http.StatusBadGateway, rec.Code)
    require.Contains(t, rec.Body.String(), "rain")
    svc.cancelErr = nil

    rec = postForm(e, "/calendar/sessions/1/cancel", owner, url.Values{"reason": {"rain"}, "month": {"2024-03"}})
    require.Equal(t, http.StatusSeeOther, rec.Code)
    require.Equal(t, "/calendar?month=2024-03", rec.Header().Get(echo.HeaderLocation))
    require.Equal(t, "rain", svc.cancelled[1])

    // the session is no longer scheduled, so a creator or admin hits a conflict
    rec = postForm(e, "/calendar/sessions/1/cancel", owner, url.Values{"reason": {"again"}, "month": {"2024-03"}})
    require.Equal(t, http.StatusConflict, rec.Code)
    require.Contains(t, rec.Body.String(), "session can no longer be cancelled")
    rec = postForm(e, "/calendar/sessions/1/cancel", bearer(t, 9, "root@x.com", model.RoleAdmin),
        url.Values{"reason": {"again"}, "month": {"2024-03"}})
    require.Equal(t, http.StatusConflict, rec.Code)
    rec = do(e, http.MethodGet, "/calendar/sessions/1?month=2024-03&cancel=1", owner, "")
    require.Equal(t, http.StatusConflict, rec.Code)
    rec = postForm(e, "/calendar/sessions/1/cancel", bearer(t, 2, "eve@x.com", model.RoleUser),
        url.Values{"reason": {"again"}, "month": {"2024-03"}})
    require.Equal(t, http.StatusForbidden, rec.Code)
    require.Equal(t, "rain", svc.cancelled[1])
}

func TestCancelSubmitReasonTooLong(t *testing.T) {
    svc := newFakeService()
    e, _ := newTestServer(t, svc)
    owner := bearer(t, 1, "alice@x.com", model.RoleUser)

    long := strings.Repeat("q", 5000)
    rec := postForm(e, "/calendar/sessions/1/cancel", owner, url.Values{"reason": {long}, "month": {"2024-03"}})
    require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    require.Contains(t, rec.Body.String(), "the cancellation reason is too long")
    require.Contains(t, rec.Body.String(), long)
    require.Empty(t, svc.cancelled)
}
