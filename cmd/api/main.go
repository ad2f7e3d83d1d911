package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/bootstrap"
	"gin-gorm-user-service/internal/core/auth"
	"gin-gorm-user-service/internal/core/config"
	"gin-gorm-user-service/internal/core/logger"
	"gin-gorm-user-service/internal/core/server"
	"gin-gorm-user-service/internal/service"
	"gin-gorm-user-service/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log, cleanup := bootstrap.Logger(cfg)
	defer cleanup()
	defer logger.RedirectStdLog(log)()

	// refuse to serve without a signing secret
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	jwter, err := auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		log.Fatal("token issuer", zap.Error(err))
	}

	store, err := bootstrap.OpenStore(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("user store", zap.Error(err))
	}
	defer store.Close()

	authSvc, err := service.NewAuthService(store.Users, bootstrap.Hasher(cfg), jwter, log)
	if err != nil {
		log.Fatal("auth service", zap.Error(err))
	}
	userSvc := service.NewUserService(store.Users, log)

	r := router.NewAPIEngine(log, router.Deps{
		HTTP:   cfg.App.HTTP,
		Tokens: jwter,
		Auth:   authSvc,
		Users:  userSvc,
		Ready:  store.Ready,
	})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("user api starting",
		zap.String("addr", addr),
		zap.String("env", cfg.App.Env),
		zap.String("health", baseURL+"/health"),
		zap.String("metrics", baseURL+"/metrics"),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("user api start FAILED", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	log.Info("user api stopped gracefully")
}
