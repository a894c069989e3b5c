package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/krai-ai/krai-engine/internal/config"
	"github.com/krai-ai/krai-engine/internal/modelclient"
	"github.com/krai-ai/krai-engine/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity to the database, model server, and object storage",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("execution mode: %s\n\n", cfg.Processing.Mode)

	db, err := storage.Open(ctx, storage.OpenConfig{DSN: cfg.Database.DSN})
	if err != nil {
		fmt.Printf("database:     UNREACHABLE (%v)\n", err)
	} else {
		fmt.Println("database:     ok")
		db.Close()
	}

	model, err := modelclient.NewClient(modelclient.Config{
		BaseURL:        cfg.Ollama.BaseURL,
		TextModel:      cfg.Ollama.TextModel,
		VisionModel:    cfg.Ollama.VisionModel,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
	})
	if err != nil {
		return err
	}
	if missing, err := model.Health(ctx); err != nil {
		fmt.Printf("model server: UNREACHABLE (%v)\n", err)
	} else if len(missing) > 0 {
		fmt.Printf("model server: ok (missing models: %v)\n", missing)
	} else {
		fmt.Println("model server: ok")
	}

	if cfg.Storage.BaseURL == "" {
		fmt.Println("storage:      not configured")
	} else {
		fmt.Printf("storage:      %s (buckets: %s, %s, %s)\n",
			cfg.Storage.BaseURL, cfg.Storage.ImagesBucket,
			cfg.Storage.AssetsBucket, cfg.Storage.PartsBucket)
	}

	return nil
}
