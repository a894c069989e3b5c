package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krai-ai/krai-engine/internal/config"
	"github.com/krai-ai/krai-engine/internal/pipeline"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List execution modes and their enabled stages",
	Run:   runModes,
}

func init() {
	rootCmd.AddCommand(modesCmd)
}

func runModes(cmd *cobra.Command, args []string) {
	modes := []config.ExecutionMode{
		config.ModeProduction,
		config.ModeDemo,
		config.ModeImageOnly,
		config.ModeEmbeddingOnly,
		config.ModeClassificationOnly,
		config.ModeFullTest,
	}

	fmt.Printf("%-20s %-7s %-5s %-7s %-7s %-9s %-9s %-6s %-7s %s\n",
		"mode", "upload", "text", "images", "vision", "classify", "metadata", "store", "chunks", "embeddings")

	for _, mode := range modes {
		f := pipeline.FeaturesFor(mode)
		fmt.Printf("%-20s %-7s %-5s %-7s %-7s %-9s %-9s %-6s %-7s %s\n",
			mode,
			mark(f.UploadDocument), mark(f.ExtractText), mark(f.ProcessImages),
			mark(f.VisionAnalysis), mark(f.Classify), mark(f.ExtractMetadata),
			mark(f.StoreDocument), mark(f.Chunking), mark(f.Embeddings))
	}
}

func mark(enabled bool) string {
	if enabled {
		return "yes"
	}
	return "-"
}
