package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sports-calendar/internal/config"
    "github.com/iliyamo/sports-calendar/internal/middleware"
    "github.com/iliyamo/sports-calendar/internal/model"
    "github.com/iliyamo/sports-calendar/internal/repository"
    "github.com/iliyamo/sports-calendar/internal/utils"
)

// UserStore reads and creates accounts.
type UserStore interface {
    Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
    GetByEmail(ctx context.Context, email string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists refresh tokens.
type TokenStore interface {
    StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
    ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
    RevokeByHash(ctx context.Context, tokenHash string) error
    RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg      config.Config
    Users    UserStore
    Tokens   TokenStore
    validate *validator.Validate
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, validate: validator.New()}
}

// ----- DTOs -----

type registerReq struct {
    Email    string `json:"email" validate:"required,email,max=255"`
    Password string `json:"password" validate:"required,min=8,max=72"`
}
type loginReq struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// issue creates an access/refresh pair for u and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Role, h.Cfg.AccessTTL())
    if err != nil {
        return authResp{}, err
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTL())
    if err != nil {
        return authResp{}, err
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return authResp{}, err
    }
    return authResp{
        User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
    }, nil
}

// setAccessCookie lets the HTML pages see the same identity as the API.
func (h *AuthHandler) setAccessCookie(c echo.Context, t tokenPart) {
    c.SetCookie(&http.Cookie{
        Name:     middleware.AccessTokenCookie,
        Value:    t.Token,
        Path:     "/",
        Expires:  t.Expires,
        HttpOnly: true,
        Secure:   h.Cfg.CSRFSecure,
        SameSite: http.SameSiteLaxMode,
    })
}

func (h *AuthHandler) clearAccessCookie(c echo.Context) {
    c.SetCookie(&http.Cookie{
        Name:     middleware.AccessTokenCookie,
        Value:    "",
        Path:     "/",
        MaxAge:   -1,
        HttpOnly: true,
        Secure:   h.Cfg.CSRFSecure,
        SameSite: http.SameSiteLaxMode,
    })
}

// authenticate checks credentials and issues tokens.
func (h *AuthHandler) authenticate(ctx context.Context, email, password string) (authResp, error) {
    u, err := h.Users.GetByEmail(ctx, email)
    if err != nil {
        return authResp{}, err
    }
    if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
        return authResp{}, repository.ErrUserNotFound
    }
    return h.issue(ctx, u)
}

// Register: create a user account and return tokens immediately.  New
// accounts always get the user role; admins are promoted in the database.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = repository.NormalizeEmail(req.Email)
    if err := h.validate.Struct(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    uid, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }
    resp, err := h.issue(ctx, model.User{ID: uid, Email: req.Email, Role: model.RoleUser, IsActive: true})
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    h.setAccessCookie(c, resp.Access)
    return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return a new pair.  The access token is also set as
// a cookie for the calendar pages.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = repository.NormalizeEmail(req.Email)
    if err := h.validate.Struct(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    resp, err := h.authenticate(ctx, req.Email, req.Password)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
    }
    h.setAccessCookie(c, resp.Access)
    return c.JSON(http.StatusOK, resp)
}

func bindRefresh(c echo.Context) (string, bool) {
    var req refreshReq
    if err := c.Bind(&req); err != nil {
        return "", false
    }
    raw := strings.TrimSpace(req.RefreshToken)
    return raw, raw != ""
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
    raw, ok := bindRefresh(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(raw)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    _ = h.Tokens.RevokeByHash(ctx, hash)

    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    resp, err := h.issue(ctx, u)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    h.setAccessCookie(c, resp.Access)
    return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    raw, ok := bindRefresh(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(raw))
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Role, h.Cfg.AccessTTL())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    part := tokenPart{Token: access.Token, Expires: access.Exp}
    h.setAccessCookie(c, part)
    return c.JSON(http.StatusOK, echo.Map{"access": part})
}

// Logout revokes one refresh token when given in the body, otherwise all
// tokens of the signed-in user.  The access cookie is always cleared.
func (h *AuthHandler) Logout(c echo.Context) error {
    raw, hasRefresh := bindRefresh(c)
    user := middleware.CurrentUser(c)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    switch {
    case hasRefresh:
        hash := utils.HashRefreshRaw(raw)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
    case user != nil:
        if err := h.Tokens.RevokeAllForUser(ctx, user.ID); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
    }
    h.clearAccessCookie(c)
    return c.NoContent(http.StatusNoContent)
}

// Me returns the identity resolved from the access token.
func (h *AuthHandler) Me(c echo.Context) error {
    u := middleware.CurrentUser(c)
    if u == nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    return c.JSON(http.StatusOK, u)
}

// ----- HTML sign-in -----

type loginPage struct {
    Title     string
    User      *model.CurrentUser
    CSRFToken string
    Email     string
    Error     string
}

// LoginPage renders the sign-in form.
func (h *AuthHandler) LoginPage(c echo.Context) error {
    return c.Render(http.StatusOK, "login.html", loginPage{
        Title:     "Sign in",
        User:      middleware.CurrentUser(c),
        CSRFToken: middleware.CSRFToken(c),
    })
}

// LoginForm handles the sign-in form post and redirects to the calendar.
func (h *AuthHandler) LoginForm(c echo.Context) error {
    email := repository.NormalizeEmail(c.FormValue("email"))
    password := c.FormValue("password")

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    resp, err := h.authenticate(ctx, email, password)
    if err != nil {
        status, msg := http.StatusUnauthorized, "Email or password is incorrect."
        if !errors.Is(err, repository.ErrUserNotFound) {
            status, msg = http.StatusInternalServerError, "Signing in failed, try again."
        }
        return c.Render(status, "login.html", loginPage{
            Title:     "Sign in",
            CSRFToken: middleware.CSRFToken(c),
            Email:     email,
            Error:     msg,
        })
    }
    h.setAccessCookie(c, resp.Access)
    return c.Redirect(http.StatusSeeOther, "/calendar")
}

// LogoutForm revokes the user's refresh tokens and clears the cookie.
func (h *AuthHandler) LogoutForm(c echo.Context) error {
    if u := middleware.CurrentUser(c); u != nil {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
        defer cancel()
        _ = h.Tokens.RevokeAllForUser(ctx, u.ID)
    }
    h.clearAccessCookie(c)
    return c.Redirect(http.StatusSeeOther, "/calendar")
}
