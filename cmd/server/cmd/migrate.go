package cmd

import (
	"errors"
	"fmt"

	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/storage/postgres"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

func newMigrateCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply or roll back schema migrations against DATABASE_URL.

serve applies pending migrations on start; these subcommands are for
operators who need to inspect or roll back the schema by hand.`,
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := databaseConfig(g)
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(db.URL, migrationsPath(db), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := databaseConfig(g)
				if err != nil {
					return err
				}
				if err := postgres.MigrateUp(db.URL, migrationsPath(db)); err != nil {
					return err
				}
				return printMigrationVersion(cmd, db)
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := databaseConfig(g)
				if err != nil {
					return err
				}
				return printMigrationVersion(cmd, db)
			},
		},
	)
	return cmd
}

func databaseConfig(g *globalOptions) (config.DatabaseConfig, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.Database.URL == "" {
		return config.DatabaseConfig{}, errNoDatabase
	}
	return cfg.Database, nil
}

func printMigrationVersion(cmd *cobra.Command, db config.DatabaseConfig) error {
	version, dirty, err := postgres.MigrationVersion(db.URL, migrationsPath(db))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "schema version: %d\n", version)
	if dirty {
		fmt.Fprintln(out, "WARNING: schema is dirty; fix the failed migration and force the version")
	}
	return nil
}
