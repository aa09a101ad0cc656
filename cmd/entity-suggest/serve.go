package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/app"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/config"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/httpapi"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/server"
)

const drainTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		transport   string
		addr        string
		sseEndpoint string
		httpAddr    string
		libsqlURL   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server and, optionally, the REST API",
		Long: `Run the suggestion engine.

Examples:
  entity-suggest serve
  entity-suggest serve --transport sse --addr :8080
  entity-suggest serve --http-addr :8081 --libsql-url file:./suggest.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			a, logger, err := bootstrap(cmd.Context(), func(c *config.Config) {
				if flags.Changed("transport") {
					c.Server.Transport = transport
				}
				if flags.Changed("addr") {
					c.Server.Addr = addr
				}
				if flags.Changed("sse-endpoint") {
					c.Server.SSEEndpoint = sseEndpoint
				}
				if flags.Changed("http-addr") {
					c.Server.HTTPAddr = httpAddr
				}
				if flags.Changed("libsql-url") {
					c.Database.Enabled = true
					c.Database.URL = libsqlURL
				}
			})
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServe(cmd.Context(), a, logger)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", config.TransportStdio, "MCP transport: stdio or sse")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address for the SSE transport")
	cmd.Flags().StringVar(&sseEndpoint, "sse-endpoint", "/sse", "SSE endpoint path")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "listen address for the REST API (disabled when empty)")
	cmd.Flags().StringVar(&libsqlURL, "libsql-url", "", "libSQL database URL; enables persistence")
	return cmd
}

func runServe(ctx context.Context, a *app.App, logger *zap.Logger) error {
	cfg := a.Config
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := a.Close(drainCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
		logger.Info("server stopped")
	}()

	if err := metrics.Init(cfg.Metrics.Prometheus, cfg.Metrics.Addr); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	mcpServer := server.NewMCPServer(a.Engine, logger.Named("mcp"))
	switch cfg.Server.Transport {
	case config.TransportSSE:
		g.Go(func() error { return mcpServer.RunSSE(ctx, cfg.Server.Addr, cfg.Server.SSEEndpoint) })
	default:
		g.Go(func() error { return mcpServer.Run(ctx) })
	}
	if cfg.Server.HTTPAddr != "" {
		router := httpapi.NewRouter(a.Engine, a, logger.Named("http"))
		g.Go(func() error { return httpapi.Serve(ctx, cfg.Server.HTTPAddr, router.Setup(), logger) })
	}
	return g.Wait()
}
