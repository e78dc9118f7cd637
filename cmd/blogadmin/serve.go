package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard and API server",
	RunE:  runServe,
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	cfg, err := blogadmin.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := blogadmin.New(cfg, blogadmin.WithLogger(log))
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("close", zap.Error(err))
		}
	}()
	if err := app.Setup(ctx); err != nil {
		return err
	}
	return app.Run(ctx)
}
