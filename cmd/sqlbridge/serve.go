package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redbco/sqlbridge/internal/config"
	"github.com/redbco/sqlbridge/internal/database"
	"github.com/redbco/sqlbridge/internal/engine"
	"github.com/redbco/sqlbridge/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Run the HTTP service. Routes:
  POST   /connect            open a connection, returns its id
  DELETE /connections/{id}   close a connection
  POST   /disconnect         close a connection by connection_id
  GET    /connections        list open connections
  POST   /sql                run a query on a connection
  GET    /health             service status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging.ServiceName, Version)
	log.SetLevel(cfg.LogLevel())

	registry := database.NewConnectionRegistry()
	registry.SetLogger(log)

	eng := engine.NewEngine(cfg, registry)
	eng.SetLogger(log)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	log.Info("sqlbridge %s started", Version)

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := eng.Stop(shutdownCtx); err != nil {
		log.Error("Shutdown finished with errors: %v", err)
		return err
	}
	log.Info("Stopped")
	return nil
}
