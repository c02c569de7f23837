package main

import (
	"errors"
	"os"
	"strings"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	pg "github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/db/postgres"
	"github.com/spf13/cobra"
)

const bootstrapPasswordEnv = "ORG_BOOTSTRAP_PASSWORD"

type bootstrapOptions struct {
	Email    string
	Password string
}

func newBootstrapAdminCmd(root *rootOptions) *cobra.Command {
	var opts bootstrapOptions

	cmd := &cobra.Command{
		Use:   "bootstrap-admin --email <email>",
		Short: "Create an HRADMIN login account that is not linked to any employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.Email) == "" {
				return errors.New("--email is required")
			}
			password := opts.Password
			if password == "" {
				password = os.Getenv(bootstrapPasswordEnv)
			}
			if password == "" {
				return errors.New("--password or " + bootstrapPasswordEnv + " is required")
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			pool, err := pg.NewPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := account.NewService(
				postgres.NewAccountRepository(pool),
				account.NewBcryptHasher(cfg.Auth.BcryptCost),
				postgres.NewEmployeeRepository(pool),
				nil,
				pg.NewTransactionManager(pool),
			)

			created, err := svc.BootstrapAdmin(cmd.Context(), account.BootstrapAdminInput{
				Email:    opts.Email,
				Password: password,
			})
			if err != nil {
				return err
			}
			cmd.Printf("created administrator account id=%s email=%s\n", created.ID, created.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "login email of the administrator")
	cmd.Flags().StringVar(&opts.Password, "password", "", "initial password (defaults to "+bootstrapPasswordEnv+")")

	return cmd
}
