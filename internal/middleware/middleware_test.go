package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation/internal/config"
	"github.com/iliyamo/seat-reservation/internal/utils"
)

const secret = "test-secret"

func protected(roles ...string) *echo.Echo {
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, Subject(c))
	}, JWTAuth(secret), RequireRole(roles...))
	return e
}

func do(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, key, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(key, "admin", role, ttl, time.Now())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + tok.Token
}

func TestJWTAuthAndRole(t *testing.T) {
	e := protected(utils.RoleAdmin)

	cases := []struct {
		name string
		auth string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong secret", token(t, "other", utils.RoleAdmin, time.Hour), http.StatusUnauthorized},
		{"expired", token(t, secret, utils.RoleAdmin, -time.Minute), http.StatusUnauthorized},
		{"wrong role", token(t, secret, "CUSTOMER", time.Hour), http.StatusForbidden},
		{"ok", token(t, secret, utils.RoleAdmin, time.Hour), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(e, tc.auth)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusOK && rec.Body.String() != "admin" {
				t.Fatalf("subject = %q, want admin", rec.Body.String())
			}
		})
	}
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: false}
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, nil))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")

	cases := map[string]string{
		"ip":       "rl:ip:10.0.0.1",
		"route":    "rl:route:POST /v1/bookings",
		"ip_route": "rl:ip:10.0.0.1:route:POST /v1/bookings",
		"user":     "rl:user:anon",
	}
	for strategy, want := range cases {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		if got != want {
			t.Fatalf("%s: key = %q, want %q", strategy, got, want)
		}
	}
}
