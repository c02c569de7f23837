package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

const (
	actionUp      = "up"
	actionDown    = "down"
	actionDrop    = "drop"
	actionVersion = "version"
)

var migrationShort = map[string]string{
	actionUp:      "Apply all pending migrations",
	actionDown:    "Roll back all applied migrations",
	actionDrop:    "Drop every object in the database",
	actionVersion: "Print the current migration version",
}

func newMigrationCmd(opts *rootOptions, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: migrationShort[action],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := runMigration(cmd, action, opts.MigrationsDir, cfg.Database.DSN()); err != nil {
				return fmt.Errorf("migration %s failed: %w", action, err)
			}
			cmd.Printf("migration %s completed\n", action)
			return nil
		},
	}
}

func migrationSourceURL(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	return fmt.Sprintf("file://%s", filepath.ToSlash(absDir)), nil
}

func runMigration(cmd *cobra.Command, action, dir, dsn string) error {
	sourceURL, err := migrationSourceURL(dir)
	if err != nil {
		return err
	}

	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch action {
	case actionUp:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case actionDown:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case actionDrop:
		return m.Drop()
	case actionVersion:
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				cmd.Println("no migration applied")
				return nil
			}
			return err
		}
		cmd.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}
