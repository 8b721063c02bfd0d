// Command tributaria runs the tributarIA API server and its maintenance
// commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/config"
	"github.com/tbourn/tributaria/internal/repo"
	"github.com/tbourn/tributaria/internal/services"
	"github.com/tbourn/tributaria/internal/sysutil"
)

var (
	// Global flags
	envFiles []string
	logLevel string
	dbURL    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tributaria",
	Short: "tributarIA chat API and maintenance tools",
	Long: `tributarIA answers questions about the Brazilian tax reform.

Run without arguments to start the API server (same as "serve").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotenv(envFiles...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
		level := sysutil.FirstNonEmpty(logLevel, os.Getenv("LOG_LEVEL"), "info")
		sysutil.ConfigureLogging(level, os.Getenv("LOG_PRETTY") == "true", cmd.ErrOrStderr())
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database URL (default $DATABASE_URL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB opens the database named by --db or DATABASE_URL.
func openDB() (*gorm.DB, func(), error) {
	dsn := sysutil.FirstNonEmpty(dbURL, os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return nil, nil, fmt.Errorf("no database: pass --db or set DATABASE_URL")
	}
	db, err := repo.Open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeFn, nil
}

// migrate creates the schema and seeds the default plans.
func migrate(ctx context.Context, db *gorm.DB) error {
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := (&services.SubscriptionService{DB: db}).SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	log.Debug().Msg("schema up to date")
	return nil
}
