package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-container/framework/app"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inspection API and /metrics",
		Long: `serve boots the kernel and serves the inspection API until interrupted.
With --watch the manifest is re-applied whenever it changes; protected
keys keep their first value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.viper(cmd, map[string]string{
				"app.port":        "port",
				"container.watch": "watch",
				"inspect.token":   "token",
			})
			if err != nil {
				return err
			}
			a, err := app.New(app.WithViper(v))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().String("port", "", "listen port (APP_PORT)")
	cmd.Flags().BoolP("watch", "w", false, "re-apply the manifest when it changes (CONTAINER_WATCH)")
	cmd.Flags().String("token", "", "bearer token for the inspection API (INSPECT_TOKEN)")
	return cmd
}
