package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/authz"
)

// RequireCapability returns a middleware that enforces capability c for the
// identity stored by Identify.  A missing identity yields Unauthenticated,
// a role outside the capability's policy yields InsufficientRole.  Services
// check again; this gate keeps whole route groups closed.
func RequireCapability(c authz.Capability) echo.MiddlewareFunc {
	// Resolve the policy once so an unknown capability panics at startup.
	policy := authz.PolicyFor(c)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if id := IdentityFrom(ctx); id == nil {
				if err, ok := ctx.Get(authErrKey).(error); ok {
					return err
				}
			}
			if err := authz.Authorize(IdentityFrom(ctx), policy); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
