package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"key-management-service/config"
	"key-management-service/internal/domain"
	"key-management-service/internal/infra"
	"key-management-service/internal/repository"
	"key-management-service/internal/usecase"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long:  "Manage database migrations for the credential management service",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long:  "Apply all pending migrations to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}

		db, err := infra.NewDB(cfg.DatabaseURL, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		absPath, err := filepath.Abs(cfg.MigrationsDir)
		if err != nil {
			return fmt.Errorf("failed to resolve migrations directory: %w", err)
		}

		migrationRepo := repository.NewMigrationRepository(db)
		migrationService := usecase.NewMigrationService(migrationRepo, db, absPath)

		appliedCount, err := migrationService.ApplyMigrations(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		if appliedCount == 0 {
			fmt.Println("No pending migrations.")
		} else {
			fmt.Printf("Applied %d migration(s) successfully.\n", appliedCount)
		}

		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  "Show the status of all migrations (applied/pending)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}

		db, err := infra.NewDB(cfg.DatabaseURL, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		absPath, err := filepath.Abs(cfg.MigrationsDir)
		if err != nil {
			return fmt.Errorf("failed to resolve migrations directory: %w", err)
		}

		migrationRepo := repository.NewMigrationRepository(db)
		migrationService := usecase.NewMigrationService(migrationRepo, db, absPath)

		migrations, err := migrationService.GetMigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
		fmt.Fprintln(w, "-------\t----\t------\t----------")

		for _, migration := range migrations {
			appliedAt := "-"
			if migration.AppliedAt != nil {
				appliedAt = migration.AppliedAt.Format("2006-01-02 15:04:05")
			}

			status := "pending"
			if migration.Status == domain.MigrationStatusApplied {
				status = "applied"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", migration.Version, migration.Name, status, appliedAt)
		}

		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}

		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
