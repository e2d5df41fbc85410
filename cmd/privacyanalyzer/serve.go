package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/privacyanalyzer/privacyanalyzer/internal/app"
	"github.com/privacyanalyzer/privacyanalyzer/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Poll API front end",
	Long:  "Starts the HTTP front end that accepts scan submissions and serves poll/history/health/metrics.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Janitor.Start(); err != nil {
		application.Logger.Error().Err(err).Msg("failed to start retention janitor")
	}

	go func() {
		if err := application.APIServer.ListenAndServe(); err != nil {
			application.Logger.Fatal().Err(err).Msg("api server failed")
		}
	}()

	application.Logger.Info().Int("port", cfg.Server.Port).Msg("privacy analyzer api ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	application.Logger.Info().Msg("shutting down api server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := application.APIServer.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error().Err(err).Msg("api server shutdown failed")
	}
	return nil
}
