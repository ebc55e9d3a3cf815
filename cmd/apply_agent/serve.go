package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/apply-agent/internal/config"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run-control REST API server",
	Long: `Start an HTTP server that exposes the autonomous run endpoints:

  POST /autonomous/runs               start a run
  GET  /autonomous/runs/{id}          run status and counters
  GET  /autonomous/runs/{id}/logs     per-job logs
  GET  /autonomous/runs/{id}/stream   progress as Server-Sent Events
  POST /autonomous/runs/{id}/stop     stop a run
  GET  /autonomous/active-run         the queued or running run, if any

Bearer authentication is enabled when JWT_SECRET is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	jwtConfig, err := config.LoadJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}
	if jwtConfig == nil {
		log.Warn("JWT_SECRET not set - run-control API is unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(server.Config{
		Port: cfg.Port,
		JWT:  jwtConfig,
	}, server.Deps{
		Runs:     a.service,
		Progress: a.broadcaster,
		Health:   a.db,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	a.drain(30 * time.Second)
	return nil
}
