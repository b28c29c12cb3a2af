package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cosmicdatasets/curator/internal/config"
	"github.com/cosmicdatasets/curator/internal/logging"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "curator",
		Short:         "curator - AI-assisted dataset curation",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logging.Setup(loaded.Logging.Level, loaded.Logging.Pretty)
			log.Debug().Str("data_path", loaded.Storage.DataPath).Msg("configuration loaded")
			*cfg = *loaded
			return nil
		},
	}
	cfg = config.Default()

	root.AddCommand(
		newImportCmd(cfg),
		newListCmd(cfg),
		newAnalyzeCmd(cfg),
		newBatchCmd(cfg),
		newSettingsCmd(cfg),
		newModelsCmd(cfg),
		newStatsCmd(cfg),
		newEagleCmd(cfg),
		newDeleteCmd(cfg),
	)
	return root
}
