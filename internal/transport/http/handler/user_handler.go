package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/domain"
	"gin-gorm-user-service/internal/service"
	httpez "gin-gorm-user-service/internal/transport/http/ez"
	resp "gin-gorm-user-service/internal/transport/http/response"
)

// UserUseCase is the part of service.UserService the HTTP layer needs.
type UserUseCase interface {
	Get(ctx context.Context, p domain.Principal, id uint) (*domain.User, error)
	List(ctx context.Context, p domain.Principal, offset, limit int) ([]domain.User, error)
	Update(ctx context.Context, p domain.Principal, id uint, ch service.UserChanges) (*domain.User, error)
	Delete(ctx context.Context, p domain.Principal, id uint) error
}

// UserHandler serves /users. The group it is mounted on must run middleware.AuthJWT.
type UserHandler struct {
	svc UserUseCase
	log *zap.Logger
}

func NewUserHandler(svc UserUseCase, l *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: l}
}

func (h *UserHandler) Priority() int { return 20 }

type listQ struct {
	Offset int `form:"offset" binding:"omitempty,min=0"`
	Limit  int `form:"limit"  binding:"omitempty,min=0,max=1000"`
}

type idURI struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

type updateIn struct {
	FullName string `json:"fullName" binding:"required,max=100"`
	Email    string `json:"email"    binding:"required,email,max=255"`
	IsActive *bool  `json:"isActive"`
}

// userError attaches the per-id messages to the service sentinels.
func userError(id uint, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return httpez.NotFound(fmt.Sprintf("User with ID %d not found.", id))
	case errors.Is(err, domain.ErrDuplicateEmail):
		return httpez.BadRequest("Email already in use, please choose a different one.")
	default:
		return err
	}
}

func (h *UserHandler) MountAPI(g *gin.RouterGroup) {
	ez := httpez.New(g, h.log)

	httpez.RegisterAction[listQ, []domain.User](ez, httpez.Action[listQ, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *listQ) ([]domain.User, error) {
			us, err := h.svc.List(c.Request.Context(), httpez.Principal(c), in.Offset, in.Limit)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, httpez.NotFound("No users found.")
			}
			return us, err
		},
	})

	httpez.RegisterAction[idURI, *domain.User](ez, httpez.Action[idURI, *domain.User]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: httpez.BindURI,
		Auth:   true,
		Handler: func(c *gin.Context, in *idURI) (*domain.User, error) {
			u, err := h.svc.Get(c.Request.Context(), httpez.Principal(c), in.ID)
			if err != nil {
				return nil, userError(in.ID, err)
			}
			return u, nil
		},
	})

	httpez.RegisterAction[updateIn, userOut](ez, httpez.Action[updateIn, userOut]{
		Method: http.MethodPut,
		Path:   "/users/:id",
		Binder: httpez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *updateIn) (userOut, error) {
			id, err := httpez.PathID(c, "id")
			if err != nil {
				return userOut{}, err
			}
			u, err := h.svc.Update(c.Request.Context(), httpez.Principal(c), id, service.UserChanges{
				FullName: in.FullName,
				Email:    in.Email,
				Active:   in.IsActive,
			})
			if err != nil {
				return userOut{}, userError(id, err)
			}
			return userOut{Message: "User updated successfully.", User: u}, nil
		},
	})

	httpez.RegisterAction[idURI, resp.Msg](ez, httpez.Action[idURI, resp.Msg]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: httpez.BindURI,
		Auth:   true,
		Handler: func(c *gin.Context, in *idURI) (resp.Msg, error) {
			if err := h.svc.Delete(c.Request.Context(), httpez.Principal(c), in.ID); err != nil {
				return resp.Msg{}, userError(in.ID, err)
			}
			return resp.Message("User deleted successfully."), nil
		},
	})
}
