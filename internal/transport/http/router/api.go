package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/core/config"
	"gin-gorm-user-service/internal/core/server"
	"gin-gorm-user-service/internal/transport/http/handler"
	mdw "gin-gorm-user-service/internal/transport/http/middleware"
	resp "gin-gorm-user-service/internal/transport/http/response"
)

// Deps is everything the API engine serves.
type Deps struct {
	HTTP   config.HTTP
	Tokens mdw.TokenParser
	Auth   handler.AuthUseCase
	Users  handler.UserUseCase
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewAPIEngine(l *zap.Logger, d Deps) *gin.Engine {
	r := server.NewRouter(l)

	r.Use(
		mdw.RequestID(),
		mdw.ConcurrencyLimit(orDefault(d.HTTP.MaxConcurrent, 300)),
		mdw.MaxBodyBytes(orDefault(d.HTTP.MaxBodyBytes, 1<<20)),
		mdw.Timeout(time.Duration(orDefault(d.HTTP.RequestTimeoutSec, 10))*time.Second),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	r.GET("/health", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				l.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": 0})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": 1})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, resp.Error(http.StatusNotFound, ""))
	})

	public := r.Group("")
	Mount(public, handler.NewAuthHandler(d.Auth, l))

	authed := r.Group("")
	authed.Use(mdw.AuthJWT(d.Tokens))
	Mount(authed, handler.NewUserHandler(d.Users, l))

	return r
}

func orDefault[T int | int64](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
