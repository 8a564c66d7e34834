package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/drafting"
	"github.com/joelkehle/disclosure-drafter/internal/httpapi"
	"github.com/joelkehle/disclosure-drafter/internal/mcptools"
	"github.com/joelkehle/disclosure-drafter/internal/render"
	"github.com/joelkehle/disclosure-drafter/internal/store"
	"github.com/joelkehle/disclosure-drafter/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(app *cliApp) *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Store.Path = dbPath
			}
			logger := app.logger

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer scancel()
				if err := shutdownTracing(sctx); err != nil {
					logger.Warn("tracing shutdown", zap.Error(err))
				}
			}()

			st, err := store.NewSQLiteStore(cfg.Store.Path, store.Config{Logger: logger.Named("store")})
			if err != nil {
				return err
			}
			defer st.Close()

			caller, err := app.modelCaller()
			if err != nil {
				return err
			}
			deps := httpapi.Deps{
				Store:        st,
				Renderer:     render.NewChromiumPDFRenderer(cfg.Render.ChromePath, cfg.Render.Timeout),
				Metrics:      telemetry.NewMetrics(),
				Logger:       logger.Named("http"),
				Extractor:    drafting.NewExtractor(caller, logger.Named("extract")),
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				PDFCacheSize: cfg.Render.PDFCacheSize,
			}
			if caller != nil {
				deps.Polisher = drafting.NewPolisher(caller, logger.Named("polish"))
			}
			handler, err := httpapi.NewServer(deps)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errc := make(chan error, 1)
			go func() {
				logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Path))
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides store.path)")
	return cmd
}

func newMCPCommand(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the drafting tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.polisher()
			if err != nil {
				return err
			}
			var polisher mcptools.Polisher
			if p != nil {
				polisher = p
			}
			s := mcptools.NewServer(Version, polisher, app.logger.Named("mcp"))
			app.logger.Info("serving MCP over stdio")
			return server.ServeStdio(s)
		},
	}
}
