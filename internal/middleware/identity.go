package middleware

// identity.go holds the helpers that move the signed-in user through the
// echo context. JWTAuth and OptionalJWT store it; handlers, RequireRole
// and the rate limiter read it.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/model"
)

const userContextKey = "current_user"

// SetCurrentUser stores u in the request context.
func SetCurrentUser(c echo.Context, u *model.CurrentUser) {
    c.Set(userContextKey, u)
}

// CurrentUser returns the signed-in user or nil for anonymous requests.
func CurrentUser(c echo.Context) *model.CurrentUser {
    u, _ := c.Get(userContextKey).(*model.CurrentUser)
    return u
}

// userID returns the user identifier for keying, "anon" when nobody is
// signed in.
func userID(c echo.Context) string {
    if u := CurrentUser(c); u != nil {
        return strconv.FormatUint(u.ID, 10)
    }
    return "anon"
}
