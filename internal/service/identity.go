package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/repository"
	"github.com/iliyamo/cruise-services/internal/utils"
)

// IdentityConfig carries the credential settings.
type IdentityConfig struct {
	Secret         string
	AccessTTL      time.Duration
	RefreshTTLDays int
	BcryptCost     int
}

// IdentityService registers accounts, issues and verifies credentials and
// resolves callers to live, active users.
type IdentityService struct {
	Users  UserStore
	Tokens TokenStore
	Log    *logger.Logger
	cfg    IdentityConfig
	now    func() time.Time
}

func NewIdentityService(cfg IdentityConfig, users UserStore, tokens TokenStore, log *logger.Logger) *IdentityService {
	if log == nil {
		log = logger.Discard()
	}
	return &IdentityService{Users: users, Tokens: tokens, Log: log, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Session is a freshly issued credential pair.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	FirstName string `json:"first_name" validate:"required,min=2,max=50"`
	LastName  string `json:"last_name" validate:"required,min=2,max=50"`
	Phone     string `json:"phone" validate:"max=20"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates a voyager account and signs it in.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if fields := fieldErrors(in); len(fields) > 0 {
		return Session{}, apperr.Invalid(fields)
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, apperr.Wrap(err, "hash password")
	}
	u := model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         authz.Voyager,
		IsActive:     true,
	}
	if err := s.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Session{}, apperr.New(apperr.DuplicateReference, "email %s is already registered", in.Email)
		}
		return Session{}, apperr.Wrap(err, "create user")
	}
	s.Log.Info("auth", "registered user %d", u.ID)
	return s.issueSession(ctx, u)
}

// Login verifies the password and returns a new session.  Unknown emails
// and wrong passwords fail the same way and cost the same.
func (s *IdentityService) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if fields := fieldErrors(in); len(fields) > 0 {
		return Session{}, apperr.Invalid(fields)
	}

	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(in.Password)
		s.Log.LogSecurity("login_failed", email, "unknown email")
		return Session{}, apperr.New(apperr.InvalidCredential, "invalid email or password")
	}
	if err != nil {
		return Session{}, apperr.Wrap(err, "load user")
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		s.Log.LogSecurity("login_failed", email, "wrong password")
		return Session{}, apperr.New(apperr.InvalidCredential, "invalid email or password")
	}
	if !u.IsActive {
		s.Log.LogSecurity("login_blocked", email, "account disabled")
		return Session{}, apperr.New(apperr.AccountDisabled, "account is disabled")
	}

	at := s.now()
	if err := s.Users.TouchLastLogin(ctx, u.ID, at); err != nil {
		s.Log.Warn("auth", "update last login for user %d: %v", u.ID, err)
	} else {
		u.LastLoginAt = &at
	}
	return s.issueSession(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *IdentityService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, apperr.Invalid([]apperr.FieldError{{Field: "refresh_token", Message: "is required"}})
	}
	userID, err := s.Tokens.ConsumeRefresh(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.New(apperr.InvalidCredential, "invalid refresh token")
	}
	if err != nil {
		return Session{}, apperr.Wrap(err, "consume refresh token")
	}
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, u)
}

// Logout revokes the given refresh token, or every refresh token of the
// caller when none is given.
func (s *IdentityService) Logout(ctx context.Context, id *authz.Identity, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		_, err := s.Tokens.ConsumeRefresh(ctx, utils.HashRefreshRaw(raw))
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.InvalidCredential, "invalid refresh token")
		}
		if err != nil {
			return apperr.Wrap(err, "revoke refresh token")
		}
		return nil
	}
	if id == nil {
		return apperr.Invalid([]apperr.FieldError{{Field: "refresh_token", Message: "is required without a bearer credential"}})
	}
	if err := s.Tokens.RevokeAllForUser(ctx, id.UserID); err != nil {
		return apperr.Wrap(err, "revoke sessions")
	}
	return nil
}

// IssueCredential signs an access token for u.  The embedded email and role
// are informational; Resolve always reloads the user.
func (s *IdentityService) IssueCredential(u model.User) (utils.AccessToken, error) {
	tok, err := utils.NewAccessToken(s.cfg.Secret, u.ID, u.Email, string(u.Role), s.cfg.AccessTTL)
	if err != nil {
		return utils.AccessToken{}, apperr.Wrap(err, "sign access token")
	}
	return tok, nil
}

func (s *IdentityService) issueSession(ctx context.Context, u model.User) (Session, error) {
	access, err := s.IssueCredential(u)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, apperr.Wrap(err, "generate refresh token")
	}
	if err := s.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, apperr.Wrap(err, "store refresh token")
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// Resolve maps a raw access token to the live identity of its subject.
func (s *IdentityService) Resolve(ctx context.Context, raw string) (*authz.Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	claims, err := utils.ParseAccessToken(s.cfg.Secret, raw)
	if errors.Is(err, utils.ErrTokenExpired) {
		return nil, apperr.New(apperr.CredentialExpired, "credential has expired")
	}
	if err != nil {
		return nil, apperr.New(apperr.InvalidCredential, "invalid credential")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperr.New(apperr.InvalidCredential, "invalid credential")
	}
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	id := u.Identity()
	return &id, nil
}

func (s *IdentityService) activeUser(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.New(apperr.AccountNotFound, "account no longer exists")
	}
	if err != nil {
		return model.User{}, apperr.Wrap(err, "load user %d", userID)
	}
	if !u.IsActive {
		return model.User{}, apperr.New(apperr.AccountDisabled, "account is disabled")
	}
	return u, nil
}

// Me returns the caller's account.
func (s *IdentityService) Me(ctx context.Context, id *authz.Identity) (model.User, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return model.User{}, err
	}
	return s.activeUser(ctx, id.UserID)
}

// ProfileInput is a partial profile update.
type ProfileInput struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=2,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,min=2,max=50"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
}

// UpdateProfile changes the caller's name and phone.
func (s *IdentityService) UpdateProfile(ctx context.Context, id *authz.Identity, in ProfileInput) (model.User, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return model.User{}, err
	}
	for _, p := range []*string{in.FirstName, in.LastName, in.Phone} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	var fields fieldSet
	fields = append(fields, fieldErrors(in)...)
	if in.FirstName != nil && *in.FirstName == "" {
		fields.add("first_name", "must not be empty")
	}
	if in.LastName != nil && *in.LastName == "" {
		fields.add("last_name", "must not be empty")
	}
	if err := fields.err(); err != nil {
		return model.User{}, err
	}

	u, err := s.activeUser(ctx, id.UserID)
	if err != nil {
		return model.User{}, err
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if err := s.Users.UpdateProfile(ctx, u.ID, u.FirstName, u.LastName, u.Phone); err != nil {
		return model.User{}, notFound(err, "user", u.ID)
	}
	updated, err := s.Users.GetByID(ctx, u.ID)
	if err != nil {
		return model.User{}, notFound(err, "user", u.ID)
	}
	return updated, nil
}

// ChangeRole assigns a canonical role to another account.
func (s *IdentityService) ChangeRole(ctx context.Context, id *authz.Identity, userID uint64, role string) (model.User, error) {
	if err := authz.Require(id, authz.CanManageUsers); err != nil {
		return model.User{}, err
	}
	r := authz.Role(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		return model.User{}, apperr.Invalid([]apperr.FieldError{{Field: "role", Message: "must be one of: " + roleList(), Value: role}})
	}
	if err := s.Users.UpdateRole(ctx, userID, r); err != nil {
		return model.User{}, notFound(err, "user", userID)
	}
	s.Log.LogSecurity("role_changed", strconv.FormatUint(userID, 10), "role "+string(r)+" by user "+strconv.FormatUint(id.UserID, 10))
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, notFound(err, "user", userID)
	}
	return u, nil
}

// SetActive enables or disables another account.  Disabling also revokes
// its refresh tokens.
func (s *IdentityService) SetActive(ctx context.Context, id *authz.Identity, userID uint64, active bool) (model.User, error) {
	if err := authz.Require(id, authz.CanManageUsers); err != nil {
		return model.User{}, err
	}
	if userID == id.UserID && !active {
		return model.User{}, apperr.Invalid([]apperr.FieldError{{Field: "is_active", Message: "cannot deactivate your own account"}})
	}
	if err := s.Users.SetActive(ctx, userID, active); err != nil {
		return model.User{}, notFound(err, "user", userID)
	}
	if !active {
		if err := s.Tokens.RevokeAllForUser(ctx, userID); err != nil {
			s.Log.Warn("auth", "revoke sessions of user %d: %v", userID, err)
		}
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, notFound(err, "user", userID)
	}
	return u, nil
}

func roleList() string {
	names := make([]string, len(authz.Roles))
	for i, r := range authz.Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
