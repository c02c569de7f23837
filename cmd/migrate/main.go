package main

import (
	"fmt"
	"os"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath    string
	MigrationsDir string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Database migrations and administrator bootstrap",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadEnvFiles()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	cmd.PersistentFlags().StringVar(&opts.MigrationsDir, "dir", "assets/migrations", "directory containing migration files")

	for _, action := range []string{actionUp, actionDown, actionDrop, actionVersion} {
		cmd.AddCommand(newMigrationCmd(opts, action))
	}
	cmd.AddCommand(newBootstrapAdminCmd(opts))
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(effectiveConfigPath(o.ConfigPath))
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("database driver %q does not support migrations", cfg.Database.Driver)
	}
	return cfg, nil
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}
