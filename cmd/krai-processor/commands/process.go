package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/krai-ai/krai-engine/internal/pipeline"
)

var processMode string

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Process one or more PDF documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processMode, "mode", "m", "", "execution mode (production, demo, image_only, embedding_only, classification_only, full_test)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := buildEnvironment(ctx, processMode)
	if err != nil {
		return err
	}
	defer env.Close()

	reqs := make([]pipeline.Request, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		reqs = append(reqs, pipeline.Request{
			Filename: filepath.Base(path),
			Data:     data,
		})
	}

	// One bar unit per stage per document.
	bar := progressbar.NewOptions(len(reqs)*len(pipeline.StageOrder),
		progressbar.OptionSetDescription("processing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range env.Pipeline.Tracker().Events() {
			switch event.Status {
			case pipeline.StageCompleted, pipeline.StageSkipped, pipeline.StageFailed:
				_ = bar.Add(1)
			}
			if verbose {
				fmt.Fprintf(os.Stderr, "\n%s: %s %s %s\n", event.Filename, event.Stage, event.Status, event.Detail)
			}
		}
	}()

	results, errs := env.Pipeline.ProcessBatch(ctx, reqs)
	_ = bar.Finish()

	var failures, duplicates int
	var total pipeline.Stats
	for i, req := range reqs {
		if errs[i] != nil {
			failures++
			fmt.Printf("FAILED    %s: %v\n", req.Filename, errs[i])
			continue
		}
		r := results[i]
		switch {
		case r.Duplicate:
			duplicates++
			fmt.Printf("DUPLICATE %s: already stored as %s\n", req.Filename, r.DocumentID)
		default:
			total.Pages += r.Stats.Pages
			total.Chunks += r.Stats.Chunks
			total.Images += r.Stats.Images
			total.Embeddings += r.Stats.Embeddings
			total.DegradedEmbeddings += r.Stats.DegradedEmbeddings
			total.ErrorCodes += r.Stats.ErrorCodes
			total.Parts += r.Stats.Parts
			total.Models += r.Stats.Models
			fmt.Printf("OK        %s: %s/%s", req.Filename, r.Manufacturer, r.DocumentType)
			if r.Version != "" {
				fmt.Printf(" version=%q", r.Version)
			}
			fmt.Printf(" pages=%d chunks=%d images=%d embeddings=%d",
				r.Stats.Pages, r.Stats.Chunks, r.Stats.Images, r.Stats.Embeddings)
			if r.Stats.DegradedEmbeddings > 0 {
				fmt.Printf(" degraded=%d", r.Stats.DegradedEmbeddings)
			}
			fmt.Printf(" codes=%d parts=%d models=%d in %s\n",
				r.Stats.ErrorCodes, r.Stats.Parts, r.Stats.Models, r.Duration.Round(timeRound))
		}
	}

	env.Logger.Info().
		Int("documents", len(reqs)).
		Int("duplicates", duplicates).
		Int("failures", failures).
		Int("pages", total.Pages).
		Int("chunks", total.Chunks).
		Int("images", total.Images).
		Int("embeddings", total.Embeddings).
		Int("degraded_embeddings", total.DegradedEmbeddings).
		Int("error_codes", total.ErrorCodes).
		Int("parts", total.Parts).
		Int("models", total.Models).
		Msg("Batch completed")

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(reqs))
	}
	return nil
}
