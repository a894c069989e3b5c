// Package commands implements the krai-processor CLI.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "krai-processor",
	Short: "Document processing engine for technical service documentation",
	Long: `krai-processor ingests PDF service manuals, bulletins, and parts catalogs:
it extracts text and images, classifies manufacturer and document type, pulls
out versions, model numbers, error codes and part numbers, chunks the content,
and stores everything with vector embeddings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine; the environment may already be set.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
