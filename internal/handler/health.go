package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
    DB Pinger
}

// Live reports that the process is up.
func (h *HealthHandler) Live(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready also checks that MySQL answers within two seconds.
func (h *HealthHandler) Ready(c echo.Context) error {
    if h.DB == nil {
        return c.String(http.StatusOK, "ok")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()
    if err := h.DB.PingContext(ctx); err != nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database unavailable"})
    }
    return c.String(http.StatusOK, "ok")
}
