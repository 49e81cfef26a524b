package cmd

import (
	"path/filepath"
	"time"

	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/yz4230/shipd/internal/builder"
	"github.com/yz4230/shipd/internal/healthgate"
	"github.com/yz4230/shipd/internal/migrate"
	"github.com/yz4230/shipd/internal/orchestrator"
	"github.com/yz4230/shipd/internal/repository"
	"github.com/yz4230/shipd/internal/secret"
	"github.com/yz4230/shipd/internal/transport"
)

var deployFlags struct {
	environment string
	revision    string
	migrations  string
}

var deployCmd = &cobra.Command{
	Use:           "deploy",
	Short:         "Run one deployment to completion",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repository.NewSQLiteDB(rootFlags.data)
		if err != nil {
			log.Error().Err(err).Msg("open database")
			return err
		}
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			log.Error().Err(err).Msg("create docker client")
			return err
		}
		defer cli.Close()

		releases := repository.NewReleaseRepository(db)
		environments := repository.NewEnvironmentRepository(db)
		records := repository.NewMigrationRecordRepository(db)

		orc := orchestrator.New(
			releases,
			environments,
			builder.New(cli, filepath.Join(rootFlags.data, "buildlogs")),
			transport.New(cli, secret.NewEnvResolver(), transport.DefaultConfig()),
			healthgate.New(healthgate.DefaultConfig()),
			migrate.NewRunner(records, deployFlags.migrations),
			orchestrator.DefaultConfig(),
		)

		ctx := log.Logger.WithContext(cmd.Context())
		start := time.Now()
		rel, err := orc.Deploy(ctx, deployFlags.environment, deployFlags.revision)
		if err != nil {
			log.Error().Err(err).Msg("deployment failed")
			return err
		}
		log.Info().
			Str("release", rel.UUID).
			Str("status", string(rel.Status)).
			Dur("took", time.Since(start)).
			Msg("deployment finished")
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVarP(&deployFlags.environment, "environment", "e", "", "Target environment name")
	deployCmd.Flags().StringVarP(&deployFlags.revision, "revision", "r", "", "Source revision to deploy")
	deployCmd.Flags().StringVarP(&deployFlags.migrations, "migrations", "m", "./migrations", "Directory of .sql migrations")
	lo.Must0(deployCmd.MarkFlagRequired("environment"))
	lo.Must0(deployCmd.MarkFlagRequired("revision"))
}
