package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/calendar"
    "github.com/iliyamo/sports-calendar/internal/model"
)

type cellDTO struct {
    Day      string          `json:"day"`
    IsToday  bool            `json:"is_today"`
    Sessions []model.Session `json:"sessions"`
    Overflow int             `json:"overflow"`
}

type gridDTO struct {
    Month         string    `json:"month"`
    Prev          string    `json:"prev"`
    Next          string    `json:"next"`
    LeadingBlanks int       `json:"leading_blanks"`
    VisiblePerDay int       `json:"visible_per_day"`
    Skipped       int       `json:"skipped"`
    Cells         []cellDTO `json:"cells"`
}

func newGridDTO(g calendar.Grid, visible int) gridDTO {
    nav := calendar.NewNavigator(g.Anchor)
    nav.AdvanceMonth(-1)
    prev := nav.Anchor()
    nav.SetMonth(g.Anchor)
    nav.AdvanceMonth(1)
    next := nav.Anchor()

    out := gridDTO{
        Month:         g.Anchor.Format(calendar.MonthLayout),
        Prev:          prev.Format(calendar.MonthLayout),
        Next:          next.Format(calendar.MonthLayout),
        LeadingBlanks: g.LeadingBlanks,
        VisiblePerDay: visible,
        Skipped:       g.Skipped,
        Cells:         make([]cellDTO, 0, len(g.Cells)),
    }
    for _, c := range g.Cells {
        sessions := c.Visible(visible)
        if sessions == nil {
            sessions = []model.Session{}
        }
        out.Cells = append(out.Cells, cellDTO{
            Day:      c.Day.Format("2006-01-02"),
            IsToday:  c.IsToday,
            Sessions: sessions,
            Overflow: c.Overflow(visible),
        })
    }
    return out
}

// CalendarDay is the current date in the calendar's location.  Grid
// responses mark today's cell, so cached grids are kept apart per day.
func (h *SessionHandler) CalendarDay(echo.Context) string {
    return h.now().In(h.Loc).Format("2006-01-02")
}

// MonthGrid: GET /v1/calendar?month=2024-03
func (h *SessionHandler) MonthGrid(c echo.Context) error {
    anchor, err := calendar.ParseMonth(c.QueryParam("month"), h.Loc, h.now())
    if err != nil {
        return h.fail(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    g, err := h.Svc.MonthGrid(ctx, anchor)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, newGridDTO(g, h.VisiblePerDay))
}
