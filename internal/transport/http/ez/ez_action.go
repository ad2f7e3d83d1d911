// Package ez registers typed request handlers ("actions") on a gin group with
// uniform binding, authentication and error mapping.
package ez

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/domain"
	mdw "gin-gorm-user-service/internal/transport/http/middleware"
	resp "gin-gorm-user-service/internal/transport/http/response"
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ { return EZ{g: g, log: l} }

// Binder selects where the action input is bound from. The zero value binds nothing.
type Binder string

const (
	BindJSON  Binder = "json"  // request body
	BindQuery Binder = "query" // ?a=b
	BindURI   Binder = "uri"   // path parameters
)

// AErr carries the HTTP status and client message for a failed action. Err is
// logged but never sent.
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: http.StatusUnauthorized, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: http.StatusNotFound, Msg: msg} }

// Action is one endpoint: I is the bound input, O the JSON output.
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // e.g. "/auth/login", "/users/:id"
	Binder  Binder
	Auth    bool // require a principal set by middleware.AuthJWT
	Handler func(c *gin.Context, in *I) (O, error)
}

// Principal returns the caller of an Auth action.
func Principal(c *gin.Context) domain.Principal {
	p, _ := mdw.PrincipalFrom(c)
	return p
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth {
			if _, ok := mdw.PrincipalFrom(c); !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, ""))
				return
			}
		}

		var in I
		if err := bind(c, a.Binder, &in); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp.Error(http.StatusRequestEntityTooLarge, ""))
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, resp.Error(http.StatusBadRequest, "Invalid request: "+err.Error()))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			code, msg := e.mapError(c, err)
			c.AbortWithStatusJSON(code, resp.Error(code, msg))
			return
		}
		c.JSON(http.StatusOK, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// PathID parses a positive numeric path parameter.
func PathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || id == 0 {
		return 0, BadRequest(fmt.Sprintf("Invalid request: %s must be a positive integer", name))
	}
	return uint(id), nil
}

func bind(c *gin.Context, b Binder, in any) error {
	switch b {
	case BindJSON:
		return c.ShouldBindJSON(in)
	case BindQuery:
		return c.ShouldBindQuery(in)
	case BindURI:
		return c.ShouldBindUri(in)
	default:
		return nil
	}
}

// mapError turns a handler error into a status and client message. Anything
// unrecognised is a 500 whose cause only reaches the log.
func (e EZ) mapError(c *gin.Context, err error) (int, string) {
	var ae *AErr
	switch {
	case errors.As(err, &ae):
		if ae.Code >= http.StatusInternalServerError {
			e.logError(c, err)
			return ae.Code, resp.CodeMsgMap[http.StatusInternalServerError]
		}
		return ae.Code, ae.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, resp.CodeMsgMap[http.StatusForbidden]
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, resp.CodeMsgMap[http.StatusNotFound]
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusBadRequest, "Email is already in use."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp.CodeMsgMap[http.StatusGatewayTimeout]
	default:
		e.logError(c, err)
		return http.StatusInternalServerError, resp.CodeMsgMap[http.StatusInternalServerError]
	}
}

func (e EZ) logError(c *gin.Context, err error) {
	e.log.Error("action failed",
		zap.String("rid", c.GetString(mdw.KeyRequestID)),
		zap.String("route", fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())),
		zap.Error(err),
	)
}
