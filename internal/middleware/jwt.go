package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/model"
    "github.com/iliyamo/sports-calendar/internal/utils"
)

// AccessTokenCookie is the cookie the login handler sets for the HTML pages.
const AccessTokenCookie = "access_token"

// tokenFrom reads a bearer token from the Authorization header, falling
// back to the access_token cookie.
func tokenFrom(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(AccessTokenCookie); err == nil {
        return ck.Value
    }
    return ""
}

func resolve(secret, raw string) (*model.CurrentUser, error) {
    claims, err := utils.ParseAccessToken(secret, raw)
    if err != nil {
        return nil, err
    }
    id, err := claims.UserID()
    if err != nil {
        return nil, err
    }
    return &model.CurrentUser{ID: id, Email: claims.Email, Role: claims.Role}, nil
}

// JWTAuth rejects requests without a valid access token with 401 and
// stores the resolved user in the context otherwise.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := tokenFrom(c)
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            u, err := resolve(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            SetCurrentUser(c, u)
            return next(c)
        }
    }
}

// OptionalJWT resolves the user when a valid token is present and lets
// every request through.  An invalid token is treated as anonymous.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if raw := tokenFrom(c); raw != "" {
                if u, err := resolve(secret, raw); err == nil {
                    SetCurrentUser(c, u)
                }
            }
            return next(c)
        }
    }
}
