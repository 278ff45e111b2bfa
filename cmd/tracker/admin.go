package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chandumcs/opstracker/internal/auth"
	"github.com/chandumcs/opstracker/internal/platform/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context(), cfg.PGDSN); err != nil {
				return err
			}
			version, err := db.MigrationVersion(cmd.Context(), cfg.PGDSN)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", slog.Int64("version", version))
			return nil
		},
	}
}

func newSeedAdminCmd() *cobra.Command {
	var (
		name     string
		email    = os.Getenv("SEED_ADMIN_EMAIL")
		password = os.Getenv("SEED_ADMIN_PASSWORD")
	)
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first Admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password (or SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD) are required")
			}
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			created, err := auth.NewService(auth.NewRepository(pool)).SeedAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if created {
				logger.Info("admin account created", slog.String("email", email))
			} else {
				logger.Info("admin account already present", slog.String("email", email))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "System Admin", "display name of the admin")
	cmd.Flags().StringVar(&email, "email", email, "admin email (env SEED_ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", password, "admin password (env SEED_ADMIN_PASSWORD)")
	return cmd
}
