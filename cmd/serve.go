package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/enoch-sit/project-1-xx/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming chat completions proxy",
	Long: `Run an HTTP proxy that forwards chat requests to the upstream API and
relays the event stream back unchanged.

Settings are read from the environment:
  EDUHK_API_URL   upstream chat completions endpoint
  EDUHK_API_KEY   key used when a request has no X-API-Key header
  APP_HOST        listen host (default 0.0.0.0)
  APP_PORT        listen port (default 8000)
  APP_DEBUG       set to true for debug logging`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := server.ConfigFromEnv()
		if cmd.Flags().Changed("host") {
			cfg.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if cfg.Debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else if !verbose {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		return runServer(cmd.Context(), cfg)
	},
}

func runServer(ctx context.Context, cfg server.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("upstream", cfg.UpstreamURL).Msg("proxying chat completions")
	if cfg.APIKey == "" {
		log.Warn().Msg(server.EnvAPIKey + " not set, clients must send X-API-Key")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", server.DefaultHost, "Listen host (overrides APP_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", server.DefaultPort, "Listen port (overrides APP_PORT)")
}
