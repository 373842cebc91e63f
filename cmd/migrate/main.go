package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/teresa-solution/tenant-provisioning-service/internal/app"
	"github.com/teresa-solution/tenant-provisioning-service/internal/config"
	"github.com/teresa-solution/tenant-provisioning-service/internal/logging"
	"github.com/teresa-solution/tenant-provisioning-service/internal/store"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "tenant-migrate",
		Short:        "Directory database migrations and maintenance",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(
		migrateCommand("up", "Apply all pending migrations", func(m *store.Migrator, _ []string) error {
			return m.Up()
		}),
		migrateCommand("down", "Revert all migrations", func(m *store.Migrator, _ []string) error {
			return m.Down()
		}),
		forceCommand(),
		versionCommand(),
		bootstrapAdminCommand(),
		syncSchemasCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Directory.URL == "" {
		return nil, logger, fmt.Errorf("directory.url is required")
	}
	return cfg, logger, nil
}

func withMigrator(fn func(m *store.Migrator) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := store.NewMigrator(cfg.Directory.URL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close migrator")
		}
	}()
	return fn(m)
}

func migrateCommand(use, short string, fn func(m *store.Migrator, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *store.Migrator) error {
				if err := fn(m, args); err != nil {
					return err
				}
				log.Info().Str("command", use).Msg("Migrations finished successfully")
				return nil
			})
		},
	}
}

func forceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(func(m *store.Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				log.Info().Int("version", v).Msg("Migration version forced successfully")
				return nil
			})
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *store.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", v, dirty)
				return nil
			})
		},
	}
}

func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func bootstrapAdminCommand() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create a super admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				admin, err := a.Admins.Bootstrap(cmd.Context(), name, email, password)
				if err != nil {
					return err
				}
				log.Info().Int64("admin_id", admin.ID).Str("email", admin.Email).Msg("Super admin created")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (defaults to $BOOTSTRAP_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func syncSchemasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-schemas",
		Short: "Provision missing or incomplete tenant schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				results, err := a.Sync.SyncAll(cmd.Context())
				if err != nil {
					return err
				}
				failed := 0
				for _, r := range results {
					switch {
					case r.Error != "":
						failed++
						fmt.Fprintf(cmd.OutOrStdout(), "%-30s error: %s\n", r.Schema, r.Error)
					case r.Skipped:
						fmt.Fprintf(cmd.OutOrStdout(), "%-30s skipped (recently created)\n", r.Schema)
					case r.Repaired:
						fmt.Fprintf(cmd.OutOrStdout(), "%-30s repaired\n", r.Schema)
					default:
						fmt.Fprintf(cmd.OutOrStdout(), "%-30s in sync\n", r.Schema)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d tenant schemas could not be synced", failed, len(results))
				}
				return nil
			})
		},
	}
}
