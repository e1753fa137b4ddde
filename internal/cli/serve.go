package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rohmanhakim/page-tracker/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /fetch, /count and /metrics over HTTP",
	Long: `Run an HTTP server exposing the cached fetcher.

  GET /fetch?url=URL    page text, through the cache
  GET /count?url=URL    {"url": URL, "count": N}
  GET /metrics          Prometheus metrics

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on (default :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	handler := server.NewHandler(a.tracker, a.registry, a.logger)
	return server.Run(ctx, cfg.ListenAddr(), handler, a.logger)
}
