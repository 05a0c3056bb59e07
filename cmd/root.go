// Package cmd implements the harvestplan command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/keilos1/harvestplan/app"
	"github.com/keilos1/harvestplan/config"
	"github.com/keilos1/harvestplan/infra/logger"
)

// cli holds the state shared by every command.
type cli struct {
	cfgPath string
	envFile string
	cfg     *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "harvestplan",
		Short:         "Forest harvesting plan optimizer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "configuration file (yaml or json)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	root.AddCommand(
		newInitCmd(c),
		newShowCmd(c),
		newCheckCmd(c),
		newSolveCmd(c),
		newSiteCmd(c),
		newMonthCmd(c),
		newRateCmd(c),
		newRunsCmd(c),
		newTransportCmd(c),
		newServeCmd(c),
	)
	return root
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (c *cli) load() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// withService runs fn with a service built from the loaded configuration
// and closes it afterwards.
func (c *cli) withService(fn func(*app.Service) error) (err error) {
	svc, err := app.New(c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.New("main").Errorf("service close: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()
	return fn(svc)
}
