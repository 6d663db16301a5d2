package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation/internal/utils"
)

// AdminSubject is the token subject issued to the single admin account.
const AdminSubject = "admin"

// AuthHandler exchanges the admin password for an access token.
type AuthHandler struct {
	Secret       string
	PasswordHash string // bcrypt
	AccessTTL    time.Duration
	Now          func() time.Time
}

// NewAuthHandler panics when secret or passwordHash is empty.
func NewAuthHandler(secret, passwordHash string, accessTTL time.Duration) *AuthHandler {
	if secret == "" || passwordHash == "" {
		panic("empty secret or password hash passed to NewAuthHandler")
	}
	return &AuthHandler{Secret: secret, PasswordHash: passwordHash, AccessTTL: accessTTL, Now: time.Now}
}

type loginReq struct {
	Password string `json:"password"`
}

// Login handles POST /v1/admin/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Password == "" {
		return badRequest(c, "password required")
	}
	if !utils.VerifyPassword(h.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	}
	tok, err := utils.NewAccessToken(h.Secret, AdminSubject, utils.RoleAdmin, h.AccessTTL, h.Now())
	if err != nil {
		c.Logger().Errorf("auth: sign token: %v", err)
		return fail(c, http.StatusInternalServerError, CodeInternal, "token error")
	}
	return c.JSON(http.StatusOK, tok)
}
