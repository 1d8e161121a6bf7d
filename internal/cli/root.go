package cli

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"waasp/internal/app"
	"waasp/internal/audit"
	"waasp/internal/config"
	"waasp/internal/rbac"
	"waasp/pkg/logger"
)

// runtime carries root flags to subcommands and opens the App on demand.
type runtime struct {
	databaseURL string
	verbose     bool
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&runtime{})
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "waasp",
		Short:         "Whitelist gate for messages reaching an AI agent",
		Long:          "Decides ALLOW, LIMITED or BLOCK for a sender (optionally per channel) and keeps an append-only audit trail of every decision and admin change.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rt.databaseURL, "database", "", "Database URL (overrides DATABASE_URL)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Verbose logging on stderr")

	root.AddCommand(
		newCheckCmd(rt),
		newAddCmd(rt),
		newUpdateCmd(rt),
		newListCmd(rt),
		newRemoveCmd(rt),
		newAuditCmd(rt),
		newImportCmd(rt),
		newTokenCmd(rt),
		newServeCmd(rt),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	rt := &runtime{}
	root := newRootCommand(rt)
	if err := root.Execute(); err != nil {
		reportError(root.ErrOrStderr(), err, rt.verbose)
		os.Exit(1)
	}
}

func (rt *runtime) config() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if rt.databaseURL != "" {
		cfg.DB.URL = rt.databaseURL
	}
	return cfg, nil
}

// open builds the App and a context carrying the CLI actor for audit metadata.
// The caller must Close the App.
func (rt *runtime) open(cmd *cobra.Command) (*app.App, context.Context, error) {
	cfg, err := rt.config()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewCLI(cmd.ErrOrStderr(), rt.verbose)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.With(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	ctx = audit.WithActor(ctx, audit.Actor{Subject: cliSubject(), Role: rbac.RoleAdmin})
	return a, ctx, nil
}

func cliSubject() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "waasp %s\n", app.Version)
		},
	}
}
