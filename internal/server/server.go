package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/docker/docker/client"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/yz4230/shipd/internal/builder"
	"github.com/yz4230/shipd/internal/healthgate"
	"github.com/yz4230/shipd/internal/migrate"
	"github.com/yz4230/shipd/internal/orchestrator"
	"github.com/yz4230/shipd/internal/repository"
	"github.com/yz4230/shipd/internal/secret"
	"github.com/yz4230/shipd/internal/server/routes"
	"github.com/yz4230/shipd/internal/transport"
	"github.com/yz4230/shipd/internal/usecase"
	"gorm.io/gorm"
)

type Config struct {
	Root          string
	Port          int
	MigrationsDir string
	Logger        zerolog.Logger
	Orchestrator  orchestrator.Config
	HealthGate    healthgate.Config
	Transport     transport.Config
}

type Server struct {
	e      *echo.Echo
	config *Config
}

func New(config *Config) *Server {
	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogRemoteIP:  true,
		LogHost:      true,
		LogMethod:    true,
		LogURI:       true,
		LogUserAgent: true,
		LogStatus:    true,
		LogLatency:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			config.Logger.Info().
				Str("remote_ip", v.RemoteIP).
				Str("host", v.Host).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("user_agent", v.UserAgent).
				Int("status", v.Status).
				Int64("latency_ms", v.Latency.Milliseconds()).
				Msg("handled request")
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			config.Logger.Error().Err(err).Bytes("stack", stack).Send()
			return err
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := config.Logger.WithContext(req.Context())
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	})

	s := &Server{e: e, config: config}
	s.init()
	return s
}

func (s *Server) init() {
	injector := do.New()
	s.injectDependencies(injector)
	s.registerRoutes(injector)
}

func (s *Server) injectDependencies(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gorm.DB, error) {
		return repository.NewSQLiteDB(s.config.Root)
	})
	do.Provide(injector, func(i *do.Injector) (*client.Client, error) {
		return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	})
	do.Provide(injector, func(i *do.Injector) (secret.Resolver, error) {
		return secret.NewEnvResolver(), nil
	})
	do.Provide(injector, func(i *do.Injector) (repository.ReleaseRepository, error) {
		return repository.NewReleaseRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (repository.EnvironmentRepository, error) {
		return repository.NewEnvironmentRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (repository.MigrationRecordRepository, error) {
		return repository.NewMigrationRecordRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (builder.Builder, error) {
		logsDir := filepath.Join(s.config.Root, "buildlogs")
		return builder.New(do.MustInvoke[*client.Client](i), logsDir), nil
	})
	do.Provide(injector, func(i *do.Injector) (transport.Transport, error) {
		cli := do.MustInvoke[*client.Client](i)
		return transport.New(cli, do.MustInvoke[secret.Resolver](i), s.config.Transport), nil
	})
	do.Provide(injector, func(i *do.Injector) (healthgate.Gate, error) {
		return healthgate.New(s.config.HealthGate), nil
	})
	do.Provide(injector, func(i *do.Injector) (*migrate.Runner, error) {
		records := do.MustInvoke[repository.MigrationRecordRepository](i)
		return migrate.NewRunner(records, s.config.MigrationsDir), nil
	})
	do.Provide(injector, func(i *do.Injector) (*orchestrator.Orchestrator, error) {
		return orchestrator.New(
			do.MustInvoke[repository.ReleaseRepository](i),
			do.MustInvoke[repository.EnvironmentRepository](i),
			do.MustInvoke[builder.Builder](i),
			do.MustInvoke[transport.Transport](i),
			do.MustInvoke[healthgate.Gate](i),
			do.MustInvoke[*migrate.Runner](i),
			s.config.Orchestrator,
		), nil
	})
	do.Provide(injector, usecase.NewCreateEnvironmentUsecase)
	do.Provide(injector, usecase.NewListEnvironmentsUsecase)
	do.Provide(injector, usecase.NewTriggerDeploymentUsecase)
	do.Provide(injector, usecase.NewGetReleaseUsecase)
	do.Provide(injector, usecase.NewListReleasesUsecase)
}

func (s *Server) registerRoutes(injector *do.Injector) {
	routes.RegisterRestAPI(injector, s.e)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.config.Logger.Info().Str("addr", addr).Msg("starting server")
	return s.e.Start(addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
