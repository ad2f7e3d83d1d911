package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/domain"
	httpez "gin-gorm-user-service/internal/transport/http/ez"
	resp "gin-gorm-user-service/internal/transport/http/response"
)

// AuthUseCase is the part of service.AuthService the HTTP layer needs.
type AuthUseCase interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, fullName, email, password string) (*domain.User, error)
	ResetPassword(ctx context.Context, email, newPassword string) error
}

// AuthHandler serves the public /auth endpoints.
type AuthHandler struct {
	svc AuthUseCase
	log *zap.Logger
}

func NewAuthHandler(svc AuthUseCase, l *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: l}
}

func (h *AuthHandler) Priority() int { return 10 }

type loginIn struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginOut struct {
	Token string `json:"token"`
}

type registerIn struct {
	FullName string `json:"fullName" binding:"required,max=100"`
	Email    string `json:"email"    binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
}

type userOut struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

type resetIn struct {
	Email       string `json:"email"       binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *AuthHandler) MountAPI(g *gin.RouterGroup) {
	ez := httpez.New(g, h.log)

	httpez.RegisterAction[loginIn, loginOut](ez, httpez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			tok, err := h.svc.Login(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidCredentials) {
					return loginOut{}, httpez.Unauthorized("Invalid credentials.")
				}
				return loginOut{}, err
			}
			return loginOut{Token: tok}, nil
		},
	})

	httpez.RegisterAction[registerIn, userOut](ez, httpez.Action[registerIn, userOut]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *registerIn) (userOut, error) {
			u, err := h.svc.Register(c.Request.Context(), in.FullName, in.Email, in.Password)
			if err != nil {
				if errors.Is(err, domain.ErrDuplicateEmail) {
					return userOut{}, httpez.BadRequest("Email is already in use.")
				}
				return userOut{}, err
			}
			return userOut{Message: "User registered successfully.", User: u}, nil
		},
	})

	httpez.RegisterAction[resetIn, resp.Msg](ez, httpez.Action[resetIn, resp.Msg]{
		Method: http.MethodPost,
		Path:   "/auth/reset-password",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *resetIn) (resp.Msg, error) {
			if err := h.svc.ResetPassword(c.Request.Context(), in.Email, in.NewPassword); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return resp.Msg{}, httpez.NotFound("User not found.")
				}
				return resp.Msg{}, err
			}
			return resp.Message("Password reset successfully."), nil
		},
	})
}
