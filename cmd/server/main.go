package main

import (
	"fmt"
	"os"

	"github.com/reqforge/backend/internal/config"
	"github.com/reqforge/backend/internal/database"
	"github.com/reqforge/backend/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "reqforge",
		Short:         "Requirements management backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (defaults to $CONFIG_PATH or config.yaml)")
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the config path and builds the global logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	path := cfgPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	l, err := logger.New(cfg.Server.Mode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			defer l.Sync()

			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			return database.Migrate(db)
		},
	}
}
