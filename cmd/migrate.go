package cmd

import (
	"fmt"

	"ats-scanner/config"
	"ats-scanner/database"
	"ats-scanner/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(_ *cobra.Command, _ []string) error {
		_, db, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("schema migrated")
		return nil
	},
}

var seedPlansCmd = &cobra.Command{
	Use:   "seed-plans",
	Short: "Insert or refresh the default plan catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		if err := database.Migrate(db); err != nil {
			return err
		}
		if err := database.SeedPlans(cmd.Context(), db); err != nil {
			return err
		}
		log.Info("plan catalog seeded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedPlansCmd)
}

// bootstrap loads the configuration, builds the logger and connects to the
// database. Every subcommand that touches storage starts here.
func bootstrap() (*config.Config, *gorm.DB, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, log, nil
}
