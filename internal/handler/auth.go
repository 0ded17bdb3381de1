package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

// Authenticator is the part of service.AuthService the auth routes use.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Session, *model.User, error)
	Login(ctx context.Context, in service.LoginInput) (service.Session, *model.User, error)
	RequestPasswordReset(ctx context.Context, email string) (service.ResetRequest, *model.User)
	ResetPassword(ctx context.Context, in service.ResetPasswordInput) (*model.User, error)
	ChangePassword(ctx context.Context, u *model.User, in service.ChangePasswordInput) error
	UpdateProfile(ctx context.Context, u *model.User, in service.ProfileInput) (*model.User, error)
}

// AuthHandler serves /auth.
type AuthHandler struct {
	svc Authenticator
	log zerolog.Logger
}

func NewAuthHandler(svc Authenticator, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// Register: create the account and return a session immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	sess, u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditActor(c, u)
	middleware.SetAuditTarget(c, u.ID)
	return c.JSON(http.StatusCreated, sess)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	sess, u, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditActor(c, u)
	middleware.SetAuditTarget(c, u.ID)
	return c.JSON(http.StatusOK, sess)
}

// Me returns the session user as loaded by JWTAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user": user(c)})
}

// ForgotPassword always answers 200 with the same message so the response
// does not reveal whether the address is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var in struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	out, u := h.svc.RequestPasswordReset(c.Request().Context(), in.Email)
	if u != nil {
		middleware.SetAuditActor(c, u)
		middleware.SetAuditTarget(c, u.ID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": out.Message, "resetUrl": out.ResetURL})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var in struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	u, err := h.svc.ResetPassword(c.Request().Context(), service.ResetPasswordInput{Token: c.Param("token"), Password: in.Password})
	if err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditActor(c, u)
	middleware.SetAuditTarget(c, u.ID)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "password has been reset"})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var in service.ChangePasswordInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	if err := h.svc.ChangePassword(c.Request().Context(), user(c), in); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "password updated"})
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var in service.ProfileInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), user(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
