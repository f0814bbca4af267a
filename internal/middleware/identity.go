package middleware

// identity.go holds the context helpers shared across middleware and
// handlers: where the resolved caller lives on the echo.Context and how the
// rate limiter names that caller.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/authz"
)

const (
	identityKey = "identity"
	authErrKey  = "auth_error"
)

// IdentityFrom returns the caller resolved by Identify, or nil for an
// anonymous request.
func IdentityFrom(c echo.Context) *authz.Identity {
	if id, ok := c.Get(identityKey).(*authz.Identity); ok {
		return id
	}
	return nil
}

// SetIdentity stores id on the context.
func SetIdentity(c echo.Context, id *authz.Identity) {
	c.Set(identityKey, id)
}

// userID names the caller for rate-limit keys. It returns "guest" when no
// user is authenticated.
func userID(c echo.Context) string {
	if id := IdentityFrom(c); id != nil {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "guest"
}
