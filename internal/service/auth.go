package service

import (
	"context"
	"errors"
	netmail "net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/mail"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
	"github.com/reqtrack/reqtrack/internal/utils"
)

const minPasswordLen = 6

// ResetRequestMessage is returned by every forgot-password call, whether or
// not the email is registered.
const ResetRequestMessage = "If an account with that email exists, a password reset link has been sent."

var errInvalidCredentials = authErr("invalid credentials")

// AuthConfig carries the injected secrets and lifetimes.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	ResetTTL   time.Duration
	ClientURL  string
	AppName    string
	Production bool
	// RestrictStaffSignup limits admin and manager self-registration to the
	// first account.
	RestrictStaffSignup bool
}

type AuthService struct {
	clock
	cfg      AuthConfig
	users    UserStore
	tokens   TokenStore
	projects ProjectStore
	mailer   mail.Mailer
	log      zerolog.Logger
}

func NewAuthService(cfg AuthConfig, st Stores, m mail.Mailer, log zerolog.Logger) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if m == nil {
		m = mail.NewLogMailer(log)
	}
	return &AuthService{cfg: cfg, users: st.Users, tokens: st.Tokens, projects: st.Projects, mailer: m, log: log}
}

// Session is the result of a successful register or login.
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      model.PublicUser `json:"user"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (in *RegisterInput) Validate() error {
	var fe fieldErrors
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		fe.add("name", "name is required")
	}
	if !validEmail(in.Email) {
		fe.add("email", "a valid email is required")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		fe.add("password", "password must be at least 6 characters")
	}
	if in.Role != "" && !model.Role(in.Role).Valid() {
		fe.add("role", "unknown role")
	}
	return fe.err()
}

// Register creates an account and opens a session. Projects whose contact
// email matches a new client are linked to it once, here.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, *model.User, error) {
	if err := in.Validate(); err != nil {
		return Session{}, nil, err
	}
	role := model.Role(in.Role)
	if role == "" {
		role = model.RoleClient
	}
	if role.IsStaff() && s.cfg.RestrictStaffSignup {
		n, err := s.users.Count(ctx)
		if err != nil {
			return Session{}, nil, internalErr("count users", err)
		}
		if n > 0 {
			return Session{}, nil, validationErr("role not allowed for self-registration",
				FieldError{Field: "role", Message: "choose client or team_member"})
		}
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return Session{}, nil, validationErr("password is too long", FieldError{Field: "password", Message: "at most 72 bytes"})
	}
	if err != nil {
		return Session{}, nil, internalErr("hash password", err)
	}
	now := s.now()
	u := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	u.Touch(now)
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Session{}, nil, validationErr("user already exists", FieldError{Field: "email", Message: "email is already registered"})
		}
		return Session{}, nil, internalErr("create user", err)
	}

	if role == model.RoleClient {
		n, err := s.projects.LinkClientByEmail(ctx, u.Email, u.ID, now)
		if err != nil {
			s.log.Error().Err(err).Str("user", u.ID.Hex()).Msg("client auto-link failed")
		} else if n > 0 {
			s.log.Info().Str("user", u.ID.Hex()).Int64("projects", n).Msg("client linked to projects")
		}
	}

	sess, err := s.session(u, now)
	if err != nil {
		return Session{}, nil, err
	}
	return sess, u, nil
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials. Unknown emails and disabled accounts fail
// exactly like a wrong password.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, *model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return Session{}, nil, validationErr("email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword("", in.Password)
		return Session{}, nil, errInvalidCredentials
	}
	if err != nil {
		return Session{}, nil, internalErr("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) || !u.IsActive {
		return Session{}, nil, errInvalidCredentials
	}

	now := s.now()
	if utils.NeedsRehash(u.PasswordHash, s.cfg.BcryptCost) {
		if err := s.setPassword(ctx, u, in.Password, now); err != nil {
			s.log.Warn().Err(err).Str("user", u.ID.Hex()).Msg("rehash password")
		}
	}
	if err := s.users.SetLastLogin(ctx, u.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user", u.ID.Hex()).Msg("update last login")
	}
	u.LastLogin = &now
	sess, err := s.session(u, now)
	if err != nil {
		return Session{}, nil, err
	}
	return sess, u, nil
}

func (s *AuthService) session(u *model.User, now time.Time) (Session, error) {
	tok, err := utils.NewSessionToken(s.cfg.JWTSecret, u.ID.Hex(), string(u.Role), s.cfg.TokenTTL, now)
	if err != nil {
		return Session{}, internalErr("sign token", err)
	}
	return Session{Token: tok.Token, ExpiresAt: tok.Exp, User: u.Public()}, nil
}

// VerifySession resolves a bearer token to the current user record. The
// user is always loaded fresh so role changes and deactivation apply
// immediately.
func (s *AuthService) VerifySession(ctx context.Context, raw string) (*model.User, error) {
	claims, err := utils.ParseSessionToken(s.cfg.JWTSecret, raw)
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return nil, authErr("token expired")
	case err != nil:
		return nil, authErr("invalid token")
	}
	id, err := ParseID("sub", claims.Subject)
	if err != nil {
		return nil, authErr("invalid token")
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, authErr("user no longer exists")
	}
	if err != nil {
		return nil, internalErr("load session user", err)
	}
	if !u.IsActive {
		return nil, authErr("account is disabled")
	}
	return u, nil
}

// ResetRequest is the forgot-password response. ResetURL is only filled
// outside production.
type ResetRequest struct {
	Message  string `json:"message"`
	ResetURL string `json:"resetUrl,omitempty"`
}

// RequestPasswordReset issues a reset token when email belongs to an active
// account. The response is identical for unknown addresses, and internal
// failures are logged rather than surfaced for the same reason.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (ResetRequest, *model.User) {
	out := ResetRequest{Message: ResetRequestMessage}
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return out, nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Msg("forgot password lookup")
		}
		return out, nil
	}
	if !u.IsActive {
		return out, nil
	}

	if err := s.tokens.InvalidateUnused(ctx, u.ID); err != nil {
		s.log.Error().Err(err).Str("user", u.ID.Hex()).Msg("invalidate reset tokens")
		return out, nil
	}
	raw, hash, err := utils.NewResetToken()
	if err != nil {
		s.log.Error().Err(err).Msg("generate reset token")
		return out, nil
	}
	now := s.now()
	t := &model.PasswordResetToken{User: u.ID, TokenHash: hash, ExpiresAt: now.Add(s.cfg.ResetTTL), CreatedAt: now}
	if err := s.tokens.Store(ctx, t); err != nil {
		s.log.Error().Err(err).Str("user", u.ID.Hex()).Msg("store reset token")
		return out, nil
	}

	link := s.cfg.ClientURL + "/reset-password/" + raw
	if msg, err := mail.PasswordReset(s.cfg.AppName, u.Email, u.Name, link, s.cfg.ResetTTL); err != nil {
		s.log.Error().Err(err).Msg("render reset email")
	} else if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("user", u.ID.Hex()).Msg("send reset email")
	}
	if !s.cfg.Production {
		out.ResetURL = link
	}
	return out, u
}

type ResetPasswordInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword redeems a reset token. The token is consumed atomically
// before the password changes, so a token is never honored twice. Input
// checks all run first so a rejected password leaves the token usable.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (*model.User, error) {
	if strings.TrimSpace(in.Token) == "" {
		return nil, validationErr("reset token is required", FieldError{Field: "token", Message: "required"})
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return nil, validationErr("password must be at least 6 characters", FieldError{Field: "password", Message: "too short"})
	}
	if len(in.Password) > utils.MaxPasswordBytes {
		return nil, validationErr("password is too long", FieldError{Field: "password", Message: "at most 72 bytes"})
	}
	now := s.now()
	t, err := s.tokens.Consume(ctx, utils.HashToken(strings.TrimSpace(in.Token)), now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, validationErr("invalid or expired token")
	}
	if err != nil {
		return nil, internalErr("consume reset token", err)
	}
	u, err := s.users.GetByID(ctx, t.User)
	if err != nil {
		return nil, storeErr("load reset user", "user", err)
	}
	if err := s.setPassword(ctx, u, in.Password, now); err != nil {
		return nil, err
	}
	return u, nil
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *AuthService) ChangePassword(ctx context.Context, u *model.User, in ChangePasswordInput) error {
	if utf8.RuneCountInString(in.NewPassword) < minPasswordLen {
		return validationErr("password must be at least 6 characters", FieldError{Field: "newPassword", Message: "too short"})
	}
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return authErr("current password is incorrect")
	}
	return s.setPassword(ctx, u, in.NewPassword, s.now())
}

func (s *AuthService) setPassword(ctx context.Context, u *model.User, plain string, now time.Time) error {
	hash, err := utils.HashPassword(plain, s.cfg.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return validationErr("password is too long", FieldError{Field: "password", Message: "at most 72 bytes"})
	}
	if err != nil {
		return internalErr("hash password", err)
	}
	u.PasswordHash = hash
	u.Touch(now)
	if err := s.users.Update(ctx, u); err != nil {
		return storeErr("update password", "user", err)
	}
	return nil
}

// ProfileInput carries the self-editable profile fields. Nil leaves a field
// unchanged.
type ProfileInput struct {
	Name       *string `json:"name"`
	Avatar     *string `json:"avatar"`
	Phone      *string `json:"phone"`
	Company    *string `json:"company"`
	Department *string `json:"department"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, u *model.User, in ProfileInput) (*model.User, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validationErr("name is required", FieldError{Field: "name", Message: "must not be empty"})
		}
		u.Name = name
	}
	setTrimmed(&u.Avatar, in.Avatar)
	setTrimmed(&u.Phone, in.Phone)
	setTrimmed(&u.Company, in.Company)
	setTrimmed(&u.Department, in.Department)
	u.Touch(s.now())
	if err := s.users.Update(ctx, u); err != nil {
		return nil, storeErr("update profile", "user", err)
	}
	return u, nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func validEmail(s string) bool {
	if s == "" || !strings.Contains(s, "@") {
		return false
	}
	a, err := netmail.ParseAddress(s)
	return err == nil && a.Address == s
}
