package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/shipd/internal/healthgate"
	"github.com/yz4230/shipd/internal/orchestrator"
	"github.com/yz4230/shipd/internal/server"
	"github.com/yz4230/shipd/internal/transport"
)

var serveFlags struct {
	port             int
	migrations       string
	buildTimeout     time.Duration
	transportTimeout time.Duration
	healthTimeout    time.Duration
	healthInterval   time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the deployment API server",
	Run: func(cmd *cobra.Command, args []string) {
		gateCfg := healthgate.DefaultConfig()
		gateCfg.Timeout = serveFlags.healthTimeout
		gateCfg.Interval = serveFlags.healthInterval

		cfg := &server.Config{
			Root:          rootFlags.data,
			Port:          serveFlags.port,
			MigrationsDir: serveFlags.migrations,
			Logger:        log.Logger,
			Orchestrator: orchestrator.Config{
				BuildTimeout:     serveFlags.buildTimeout,
				TransportTimeout: serveFlags.transportTimeout,
			},
			HealthGate: gateCfg,
			Transport:  transport.DefaultConfig(),
		}
		srv := server.New(cfg)
		chSignal := make(chan os.Signal, 1)
		signal.Notify(chSignal, os.Interrupt, syscall.SIGTERM)

		wg := &sync.WaitGroup{}
		wg.Go(func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cfg.Logger.Fatal().Err(err).Msg("server error")
			}
		})

		sig := <-chSignal
		cfg.Logger.Info().Str("signal", sig.String()).Msg("shutting down server...")
		if err := srv.Stop(context.Background()); err != nil {
			cfg.Logger.Error().Err(err).Msg("error during server shutdown")
		}

		wg.Wait()
		cfg.Logger.Info().Msg("server stopped")
	},
}

func init() {
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVarP(&serveFlags.migrations, "migrations", "m", "./migrations", "Directory of .sql migrations")
	serveCmd.Flags().DurationVar(&serveFlags.buildTimeout, "build-timeout", 10*time.Minute, "Build phase timeout")
	serveCmd.Flags().DurationVar(&serveFlags.transportTimeout, "transport-timeout", 5*time.Minute, "Transport phase timeout")
	serveCmd.Flags().DurationVar(&serveFlags.healthTimeout, "health-timeout", 2*time.Minute, "Health gate timeout")
	serveCmd.Flags().DurationVar(&serveFlags.healthInterval, "health-interval", 5*time.Second, "Health gate poll interval")
}
