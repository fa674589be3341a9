package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Long: "Runs an MCP server on stdin/stdout exposing build_chapter_context, apply_identity_exposures, " +
			"identity_timeline and who_knows. With --metrics-addr, Prometheus metrics are served over HTTP.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInternalDeps(func(d *internalDeps) error {
				addr := metricsAddr
				if addr == "" {
					addr = d.Config.Metrics.Addr
				}
				if addr != "" {
					stop := serveMetrics(cmd.Context(), addr, d)
					defer stop()
				}

				s := mcpserver.New(mcpserver.Deps{
					Projects:   d.db,
					Context:    d.Context,
					Exposures:  d.Exposures,
					Identities: d.Identities,
				}, d.Logger)

				d.Logger.Info("mcp server starting", zap.String("version", version))
				return mcpserver.ServeStdio(s)
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090")

	return cmd
}

// serveMetrics exposes /metrics in the background and returns a function
// that shuts the listener down.
func serveMetrics(ctx context.Context, addr string, d *internalDeps) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.recorder.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		d.Logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.Logger.Warn("stopping metrics server", zap.Error(err))
		}
	}
}
