// Command userdb (re)initialises the user database: it removes the database
// file, creates the schema and inserts the sample users.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mkrupp/homecase-users/internal/infra/config"
	"github.com/mkrupp/homecase-users/internal/infra/database"
	"github.com/mkrupp/homecase-users/internal/infra/logging"
	"github.com/mkrupp/homecase-users/internal/util/password"
)

const (
	appName = "users"
	svcName = "userdb"
)

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig         `envPrefix:"LOG_"`
	DB       database.SQLiteGatewayConfig `envPrefix:"DB_"`
	Password password.HasherConfig        `envPrefix:"PASSWORD_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	reset := flag.Bool("reset", true, "remove the existing database before bootstrapping")
	flag.Parse()

	if err := config.LoadDotenv(".env"); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	if err := logging.Configure(ctx, cfg.Log, loggerName); err != nil {
		panic(err)
	}

	if err := run(ctx, cfg, *reset); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, reset bool) (err error) {
	log := logging.GetLogger("cmd.userdb").With(logging.Group("db", "path", cfg.DB.Path))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		}
	}()

	if reset {
		if err := database.Reset(cfg.DB.Path); err != nil {
			return fmt.Errorf("reset database: %w", err)
		}

		log.InfoContext(ctx, "database removed")
	}

	gateway, err := database.NewSQLiteGateway(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("new sqlite gateway: %w", err)
	}
	defer gateway.Close()

	seeded, err := gateway.Bootstrap(ctx, password.NewBcryptHasher(cfg.Password))
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}

	log.InfoContext(ctx, "database initialised", "seeded", seeded)

	return nil
}
