// Command uibus runs the API server or a headless client that drives the ui
// components against it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seb7887/uibus/logging"
)

type application struct {
	cfg    *Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var configFile string
	app := &application{logger: logging.Nop()}

	cmd := &cobra.Command{
		Use:           "uibus",
		Short:         "Event bus driven ui components and their API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			app.cfg = cfg
			app.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = app.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./uibus.yaml)")

	cmd.AddCommand(newServeCmd(app), newWatchCmd(app))
	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("uibus:", err)
		cancel()
		os.Exit(1)
	}
}
