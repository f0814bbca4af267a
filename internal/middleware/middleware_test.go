package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/config"
	"github.com/iliyamo/cruise-services/internal/ratelimit"
)

func newCtx(e *echo.Echo, method, target, route string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.1.1.1:5000"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(route)
	return c, rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

type stubResolver map[string]*authz.Identity

func (s stubResolver) Resolve(_ context.Context, raw string) (*authz.Identity, error) {
	if raw == "expired" {
		return nil, apperr.New(apperr.CredentialExpired, "credential has expired")
	}
	if id, ok := s[raw]; ok {
		return id, nil
	}
	return nil, apperr.New(apperr.InvalidCredential, "invalid credential")
}

var resolver = stubResolver{
	"voyager": {UserID: 7, Role: authz.Voyager},
	"admin":   {UserID: 1, Role: authz.Admin},
}

func TestIdentifyAndRequireAuth(t *testing.T) {
	e := echo.New()
	chain := Identify(resolver, "jwt")(RequireAuth()(ok))

	tests := []struct {
		name   string
		header string
		cookie string
		want   apperr.Kind
	}{
		{name: "no credential", want: apperr.Unauthenticated},
		{name: "bearer", header: "Bearer voyager"},
		{name: "lowercase scheme", header: "bearer admin"},
		{name: "cookie", cookie: "voyager"},
		{name: "expired", header: "Bearer expired", want: apperr.CredentialExpired},
		{name: "garbage", header: "Bearer nope", want: apperr.InvalidCredential},
		{name: "header wins over cookie", header: "Bearer admin", cookie: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newCtx(e, http.MethodGet, "/v1/me", "/v1/me")
			if tt.header != "" {
				c.Request().Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				c.Request().AddCookie(&http.Cookie{Name: "jwt", Value: tt.cookie})
			}
			err := chain(c)
			if tt.want == "" {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.NotNil(t, IdentityFrom(c))
				return
			}
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestIdentifyLeavesPublicRequestsAnonymous(t *testing.T) {
	e := echo.New()
	c, rec := newCtx(e, http.MethodGet, "/v1/items", "/v1/items")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer expired")
	require.NoError(t, Identify(resolver, "jwt")(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, IdentityFrom(c))
}

func TestRequireCapability(t *testing.T) {
	e := echo.New()
	chain := Identify(resolver, "")(RequireCapability(authz.CanManageUsers)(ok))

	c, _ := newCtx(e, http.MethodPatch, "/v1/users/3/role", "/v1/users/:id/role")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(chain(c)))

	c, _ = newCtx(e, http.MethodPatch, "/v1/users/3/role", "/v1/users/:id/role")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer expired")
	assert.Equal(t, apperr.CredentialExpired, apperr.KindOf(chain(c)))

	c, _ = newCtx(e, http.MethodPatch, "/v1/users/3/role", "/v1/users/:id/role")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer voyager")
	assert.Equal(t, apperr.InsufficientRole, apperr.KindOf(chain(c)))

	c, rec := newCtx(e, http.MethodPatch, "/v1/users/3/role", "/v1/users/:id/role")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer admin")
	require.NoError(t, chain(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true}
	lim := ratelimit.NewMemoryFixedWindow(2, time.Minute)
	mw := RateLimit(cfg, lim, LoginRateKey, nil)(ok)

	for i := 0; i < 2; i++ {
		c, rec := newCtx(e, http.MethodPost, "/v1/auth/login", "/v1/auth/login")
		require.NoError(t, mw(c))
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	c, rec := newCtx(e, http.MethodPost, "/v1/auth/login", "/v1/auth/login")
	err := mw(c)
	assert.Equal(t, apperr.RateLimited, apperr.KindOf(err))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// another address has its own window
	c, _ = newCtx(e, http.MethodPost, "/v1/auth/login", "/v1/auth/login")
	c.Request().RemoteAddr = "10.2.2.2:5000"
	assert.NoError(t, mw(c))
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	e := echo.New()
	c, rec := newCtx(e, http.MethodGet, "/v1/items", "/v1/items")
	mw := RateLimit(config.RateLimitConfig{Enabled: true}, brokenLimiter{}, LoginRateKey, nil)(ok)
	require.NoError(t, mw(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestAPIRateKey(t *testing.T) {
	e := echo.New()
	c, _ := newCtx(e, http.MethodGet, "/v1/orders/5", "/v1/orders/:id")
	SetIdentity(c, &authz.Identity{UserID: 42, Role: authz.Voyager})

	tests := map[string]string{
		"ip":         "ip:10.1.1.1",
		"user":       "user:42",
		"route":      "route:GET /v1/orders/:id",
		"ip_user":    "ip:10.1.1.1:user:42",
		"user_route": "user:42:route:GET /v1/orders/:id",
		"":           "ip:10.1.1.1:user:42:route:GET /v1/orders/:id",
	}
	for strategy, want := range tests {
		assert.Equal(t, want, APIRateKey(config.RateLimitConfig{KeyStrategy: strategy})(c), strategy)
	}

	anon, _ := newCtx(e, http.MethodGet, "/v1/items", "/v1/items")
	assert.Equal(t, "user:guest", APIRateKey(config.RateLimitConfig{KeyStrategy: "user"})(anon))
}

func TestResponseCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "catalog"}
	calls := 0
	h := ResponseCache(cfg, rdb, nil)(func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "calls": calls})
	})
	e := echo.New()
	get := func(target string) *httptest.ResponseRecorder {
		c, rec := newCtx(e, http.MethodGet, target, "/v1/items/:id")
		c.SetParamNames("id")
		c.SetParamValues(target[len("/v1/items/"):])
		require.NoError(t, h(c))
		return rec
	}

	first := get("/v1/items/1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("/v1/items/1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	// a different id is a different entry
	assert.Equal(t, "MISS", get("/v1/items/2").Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	mr.Set("other:key", "keep")
	n, err := PurgeCache(context.Background(), rdb, "catalog")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("other:key"))

	assert.Equal(t, "MISS", get("/v1/items/1").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestResponseCacheSkipsErrorsAndOtherMethods(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "catalog"}
	e := echo.New()

	notFound := ResponseCache(cfg, rdb, nil)(func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	})
	c, _ := newCtx(e, http.MethodGet, "/v1/items/9", "/v1/items/:id")
	require.NoError(t, notFound(c))
	assert.Empty(t, mr.Keys())

	post := ResponseCache(cfg, rdb, nil)(ok)
	c, rec := newCtx(e, http.MethodPost, "/v1/items", "/v1/items")
	require.NoError(t, post(c))
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Empty(t, mr.Keys())
}
