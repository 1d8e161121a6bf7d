package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"waasp/internal/app"
	"waasp/pkg/logger"
)

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the audit retention janitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			log := logger.New(cfg.App.Env)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}
