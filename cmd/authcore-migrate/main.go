// Command authcore-migrate applies or rolls back the Postgres schema used by
// store/postgres.
//
//	authcore-migrate [-dsn URL] up|down
//
// The DSN defaults to DATABASE_URL.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/store/postgres"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(os.Args[1:], logger); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("authcore-migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "postgres connection URL (default $DATABASE_URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: authcore-migrate [-dsn URL] up|down")
	}
	direction := fs.Arg(0)

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		*dsn = cfg.DatabaseURL
	}
	if *dsn == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	if err := postgres.Migrate(*dsn, direction); err != nil {
		return err
	}
	logger.Info("migration complete", "direction", direction)
	return nil
}
