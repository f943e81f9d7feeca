package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/paperwalk/internal/api"
	"github.com/rohankatakam/paperwalk/internal/config"
	"github.com/rohankatakam/paperwalk/internal/logging"
)

var (
	listenAddr     string
	poolHealthFreq time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the paper, expansion, search, clean and analytics endpoints.

Examples:
  paperwalk serve
  paperwalk serve --addr :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides server.listen_addr)")
	serveCmd.Flags().DurationVar(&poolHealthFreq, "pool-health", 30*time.Second, "Neo4j pool health check interval (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	result := cfg.Validate(config.ValidationContextServe)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	if err := result.Err(); err != nil {
		return err
	}

	d, err := buildDeps(ctx, cfg, needs{graph: true, runs: true})
	if err != nil {
		return err
	}
	defer d.close(context.Background())

	if d.neo4j != nil && poolHealthFreq > 0 {
		go d.neo4j.WatchPoolHealth(ctx, poolHealthFreq)
	}

	handler := api.NewHandler(d.provider, d.crawler, d.store, d.ranker, d.runs, logging.Component("api"))
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)
	server := api.NewServer(cfg.Server, router, logging.Component("http"))

	logger.WithField("addr", cfg.Server.ListenAddr).Info("Starting paperwalk API")
	return server.Run(ctx)
}
