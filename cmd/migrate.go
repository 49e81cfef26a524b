package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/yz4230/shipd/internal/migrate"
	"github.com/yz4230/shipd/internal/repository"
)

var migrateFlags struct {
	environment string
	migrations  string
}

var migrateCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply pending migrations for an environment without deploying",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repository.NewSQLiteDB(rootFlags.data)
		if err != nil {
			log.Error().Err(err).Msg("open database")
			return err
		}

		ctx := log.Logger.WithContext(cmd.Context())
		env, err := repository.NewEnvironmentRepository(db).GetByName(ctx, migrateFlags.environment)
		if err != nil {
			log.Error().Err(err).Str("environment", migrateFlags.environment).Msg("load environment")
			return err
		}

		runner := migrate.NewRunner(repository.NewMigrationRecordRepository(db), migrateFlags.migrations)
		applied, err := runner.Apply(ctx, env)
		if err != nil {
			log.Error().Err(err).Msg("migration run failed")
			return err
		}
		log.Info().Int("applied", applied).Str("environment", env.Name).Msg("migrations up to date")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateFlags.environment, "environment", "e", "", "Target environment name")
	migrateCmd.Flags().StringVarP(&migrateFlags.migrations, "migrations", "m", "./migrations", "Directory of .sql migrations")
	lo.Must0(migrateCmd.MarkFlagRequired("environment"))
}
