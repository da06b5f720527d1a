// bzf runs the Bravo Zulu Films community server.
//
// It reads configuration from bzf.json (overridable with --config), with
// BZF_* environment variables and an optional .env file layered on top,
// connects to PostgreSQL, bootstraps the schema, and serves the JSON API
// under /api and the notification WebSocket at /ws.
//
// Usage:
//
//	bzf serve                                 # start the server
//	bzf migrate                               # bootstrap the schema and exit
//	bzf grant-credits ops@bzf.example 100     # credit a member
//	bzf verify vet@bzf.example approve "DD-214 checked"
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bravozulu-films/bzf/internal/config"
	"github.com/bravozulu-films/bzf/internal/database"
	"github.com/bravozulu-films/bzf/internal/server"
)

var (
	configPath string
	devLogging bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bzf",
		Short:         "Bravo Zulu Films community server",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "bzf.json", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&devLogging, "dev", false, "human-readable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(grantCreditsCmd())
	rootCmd.AddCommand(verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bzf:", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger.
func newLogger() (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if devLogging {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar(), nil
}

// setup loads the configuration and opens the database. Opening the
// database also bootstraps the schema.
func setup(ctx context.Context, log *zap.SugaredLogger) (*config.Config, *database.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log.Infow("config loaded", "listen", cfg.ListenAddr, "db", cfg.DBConn+"/"+cfg.DBName,
		"redis", cfg.RedisURL != "", "studio", cfg.StudioEnabled())

	db, err := database.Open(ctx, cfg.ConnString())
	if err != nil {
		return nil, nil, err
	}
	log.Info("database connected, schema bootstrapped")
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bootstrap the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			_, db, err := setup(cmd.Context(), log)
			if err != nil {
				return err
			}
			db.Close()
			return nil
		},
	}
}
