package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/service"
)

// AuthHandler bundles dependencies for auth, profile and user admin endpoints.
type AuthHandler struct {
	Identity     *service.IdentityService
	CookieName   string // empty disables the credential cookie
	SecureCookie bool
}

func NewAuthHandler(identity *service.IdentityService, cookieName string, secure bool) *AuthHandler {
	return &AuthHandler{Identity: identity, CookieName: cookieName, SecureCookie: secure}
}

// ----- DTOs -----

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

type roleReq struct {
	Role string `json:"role"`
}

type statusReq struct {
	IsActive *bool `json:"is_active"`
}

func (h *AuthHandler) session(c echo.Context, status int, s service.Session) error {
	if h.CookieName != "" {
		c.SetCookie(&http.Cookie{
			Name:     h.CookieName,
			Value:    s.Access.Token,
			Path:     "/",
			Expires:  s.Access.Exp,
			HttpOnly: true,
			Secure:   h.SecureCookie,
			SameSite: http.SameSiteStrictMode,
		})
	}
	return c.JSON(status, authResp{
		User:    s.User,
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw back to client
	})
}

// Register: create a voyager account and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Identity.Register(ctx, req)
	if err != nil {
		return err
	}
	return h.session(c, http.StatusCreated, s)
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Identity.Login(ctx, req)
	if err != nil {
		return err
	}
	return h.session(c, http.StatusOK, s)
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Identity.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return h.session(c, http.StatusOK, s)
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Identity.Logout(ctx, caller(c), req.RefreshToken); err != nil {
		return err
	}
	if h.CookieName != "" {
		c.SetCookie(&http.Cookie{Name: h.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.SecureCookie})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Identity.Me(ctx, caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateMe edits the caller's profile.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	var req service.ProfileInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Identity.UpdateProfile(ctx, caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// ChangeRole: admin only.
func (h *AuthHandler) ChangeRole(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Identity.ChangeRole(ctx, caller(c), userID, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// SetStatus activates or deactivates an account: admin only.
func (h *AuthHandler) SetStatus(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.IsActive == nil {
		return apperr.Invalid([]apperr.FieldError{{Field: "is_active", Message: "is required"}})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Identity.SetActive(ctx, caller(c), userID, *req.IsActive)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
