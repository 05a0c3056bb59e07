package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/keilos1/harvestplan/api"
	"github.com/keilos1/harvestplan/app"
	"github.com/keilos1/harvestplan/infra/logger"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(func(svc *app.Service) error {
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				if _, err := svc.Init(ctx); err != nil {
					return err
				}
				go func() {
					if err := svc.Run(ctx); err != nil {
						logger.New("main").Errorf("service: %v", err)
					}
				}()
				// The API returns when ctx is cancelled or the listener fails.
				return api.New(svc, c.cfg.HTTP).Start(ctx)
			})
		},
	}
}
