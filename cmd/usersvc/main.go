package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/homecase-users/internal/infra/config"
	"github.com/mkrupp/homecase-users/internal/infra/database"
	"github.com/mkrupp/homecase-users/internal/infra/logging"
	"github.com/mkrupp/homecase-users/internal/infra/transport/http"
	"github.com/mkrupp/homecase-users/internal/repo/user"
	"github.com/mkrupp/homecase-users/internal/svc/usersvc"
	"github.com/mkrupp/homecase-users/internal/util/password"
)

const (
	appName = "users"
	svcName = "usersvc"
)

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig         `envPrefix:"LOG_"`
	HTTP     usersvc.HTTPTransportConfig  `envPrefix:"HTTP_"`
	DB       database.SQLiteGatewayConfig `envPrefix:"DB_"`
	Password password.HasherConfig        `envPrefix:"PASSWORD_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotenv(".env"); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	if err := logging.Configure(ctx, cfg.Log, loggerName); err != nil {
		panic(err)
	}

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.usersvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	gateway, err := database.NewSQLiteGateway(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("new sqlite gateway: %w", err)
	}
	defer gateway.Close()

	hasher := password.NewBcryptHasher(cfg.Password)

	if _, err := gateway.Bootstrap(ctx, hasher); err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}

	userSvc := usersvc.NewUserService(gateway, user.NewSQLiteUserRepository(), hasher)
	httpTransport := usersvc.NewHTTPTransport(userSvc, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
