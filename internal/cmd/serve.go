package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finassist/finassist/internal/app"
	"github.com/finassist/finassist/internal/config"
	"github.com/finassist/finassist/internal/idempotency"
	"github.com/finassist/finassist/internal/mcpserver"
	"github.com/finassist/finassist/internal/tools"
)

var serveTransport string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the finance tools over MCP",
	Long: `Serve the tool catalog as MCP tools for the configured family, over stdio or
streamable HTTP. The HTTP transport also answers /healthz and /readyz.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "stdio or http (default: FINASSIST_MCP_TRANSPORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	transport := e.cfg.MCPTransport
	if serveTransport != "" {
		transport = serveTransport
	}

	var cache *idempotency.Cache[tools.Result]
	if e.cfg.MCPCacheMaxEntries > 0 {
		cache = idempotency.NewCache[tools.Result](e.cfg.MCPCacheTTL, e.cfg.MCPCacheMaxEntries)
	}
	builder := mcpserver.Builder{
		Catalog: e.catalog,
		Runner:  e.executor,
		Family:  e.family,
		Version: Version,
		Logger:  e.logger,
		Audit:   e.audit,
		Cache:   cache,
	}
	server, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build mcp server: %w", err)
	}

	switch transport {
	case config.TransportStdio:
		e.logger.Info("serving mcp over stdio", "family_id", e.family.ID)
		return mcpserver.ServeStdio(ctx, server)
	case config.TransportHTTP:
		application, err := app.New(ctx, app.Options{
			Listen:          e.cfg.MCPListen,
			Path:            e.cfg.MCPPath,
			ShutdownTimeout: e.cfg.ShutdownTimeout,
		}, mcpserver.Handler(server, e.cfg.MCPStateless), e.logger)
		if err != nil {
			return err
		}
		application.Health().AddCheck("family", func(ctx context.Context) error {
			_, err := e.store.Family(ctx, e.family.ID)
			return err
		})
		return application.Run(ctx)
	default:
		return fmt.Errorf("unsupported mcp transport %q", transport)
	}
}
