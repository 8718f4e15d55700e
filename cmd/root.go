package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/podletter/newsletter-api/pkg/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "newsletter-api",
	Short: "Podcast newsletter backend",
	Long: `Podcast newsletter backend - syncs subscriptions, ingests episode
metadata, acquires transcripts, and feeds the newsletter pipeline.

The transcript worker discovers episodes lacking a transcript, fetches
text from the primary provider, escalates to paid fallback transcription
under a cost ceiling, and persists compressed blobs plus relational
metadata.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
}

// loadConfig loads the configuration when a command needs it
func loadConfig() {
	cmd, _, _ := rootCmd.Find(os.Args[1:])
	if cmd != nil && (cmd.Name() == "version" || cmd.Name() == "help") {
		return
	}

	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}
