package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"waasp/internal/auth"
	"waasp/internal/rbac"
)

func newTokenCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Admin API token operations",
	}
	cmd.AddCommand(newTokenIssueCmd(rt))
	return cmd
}

func newTokenIssueCmd(rt *runtime) *cobra.Command {
	var subject, role string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed admin JWT (requires JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			if !rbac.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q (want %s or %s)", role, rbac.RoleAdmin, rbac.RoleAuditor)
			}
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			tok, err := m.Issue(time.Now(), subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Operator identity recorded as performed_by")
	cmd.Flags().StringVar(&role, "role", rbac.RoleAdmin, "Role: admin or auditor")
	return cmd
}
