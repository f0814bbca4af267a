package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
)

// Resolver maps a raw access token to the live identity of its subject.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*authz.Identity, error)
}

// Identify looks for an access token in the Authorization header
// ("Bearer <token>") and then in the named cookie.  A present token is
// resolved and the identity stored on the context.  Resolution failures do
// not stop the request here: they are kept so that RequireAuth can report
// the precise reason, while public endpoints simply see an anonymous caller.
func Identify(r Resolver, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := credential(c, cookieName)
			if raw == "" {
				return next(c)
			}
			id, err := r.Resolve(c.Request().Context(), raw)
			if err != nil {
				c.Set(authErrKey, err)
				return next(c)
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

// RequireAuth rejects requests without a resolved identity.  The error is
// the one Identify recorded (expired, disabled, ...) or Unauthenticated
// when no credential was sent at all.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IdentityFrom(c) != nil {
				return next(c)
			}
			if err, ok := c.Get(authErrKey).(error); ok {
				return err
			}
			return apperr.New(apperr.Unauthenticated, "authentication required")
		}
	}
}

func credential(c echo.Context, cookieName string) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if cookieName == "" {
		return ""
	}
	if ck, err := c.Cookie(cookieName); err == nil {
		return strings.TrimSpace(ck.Value)
	}
	return ""
}
