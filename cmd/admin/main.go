// Command admin creates the first Admin account, or promotes an existing
// account to Admin, against the configured database.
//
//	admin --email root@example.com --name "Root" --password '...'
//
// The password may come from ADMIN_PASSWORD instead of the flag.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/bootstrap"
	"gin-gorm-user-service/internal/core/config"
	"gin-gorm-user-service/internal/service"
)

func main() {
	var (
		cfgPath  = flag.StringP("config", "c", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
		email    = flag.StringP("email", "e", "", "admin email (required)")
		name     = flag.StringP("name", "n", "", "full name (default: part of the email before @; kept when promoting)")
		password = flag.StringP("password", "p", "", "password (or ADMIN_PASSWORD)")
	)
	flag.Parse()

	_ = godotenv.Load()
	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "--email and --password are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if cfg.DB.Driver == "memory" {
		fmt.Fprintln(os.Stderr, "db.driver memory keeps no state between processes; point the tool at a database")
		os.Exit(1)
	}
	log, cleanup := bootstrap.Logger(cfg)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("user store", zap.Error(err))
	}
	defer store.Close()

	// tokens are never minted here
	svc, err := service.NewAuthService(store.Users, bootstrap.Hasher(cfg), nil, log)
	if err != nil {
		log.Fatal("auth service", zap.Error(err))
	}
	u, created, err := svc.BootstrapAdmin(ctx, *name, *email, *password)
	if err != nil {
		log.Fatal("bootstrap admin", zap.String("email", *email), zap.Error(err))
	}
	verb := "promoted"
	if created {
		verb = "created"
	}
	fmt.Printf("admin %s: id=%d email=%s\n", verb, u.ID, u.Email)
}
