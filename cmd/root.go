package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootFlags struct {
	verbose bool
	data    string
}

var rootCmd = &cobra.Command{
	Use:   "shipd",
	Short: "Deployment orchestrator: build, transport, migrate, health-gate, rollback.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if !rootFlags.verbose {
			log.Logger = log.Logger.Level(zerolog.InfoLevel)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.data, "data", "d", "./data", "Directory for the release log and build logs")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(migrateCmd)
}
