package cmd

import (
	"fmt"
	"os"

	"PlayDeck/config"
	"PlayDeck/logger"

	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "playdeck",
	Short: "PlayDeck is a playlist player for MP3 files.",
	Long: `PlayDeck keeps an ordered, optionally shuffled list of MP3 tracks and
plays them, either through connected browsers (serve) or the local sound
device (play).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	// Running without a subcommand starts the server.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
