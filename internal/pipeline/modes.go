package pipeline

import "github.com/krai-ai/krai-engine/internal/config"

// Features describes which pipeline stages run for an execution mode.
type Features struct {
	UploadDocument  bool
	ExtractText     bool
	ProcessImages   bool
	VisionAnalysis  bool
	Classify        bool
	ExtractMetadata bool
	StoreDocument   bool
	Chunking        bool
	Embeddings      bool
}

// FeaturesFor maps an execution mode to its feature toggles.
func FeaturesFor(mode config.ExecutionMode) Features {
	switch mode {
	case config.ModeDemo:
		return Features{
			UploadDocument:  true,
			ExtractText:     true,
			ProcessImages:   true,
			VisionAnalysis:  false,
			Classify:        true,
			ExtractMetadata: true,
			StoreDocument:   true,
			Chunking:        true,
			Embeddings:      false,
		}
	case config.ModeImageOnly:
		return Features{
			UploadDocument: true,
			ProcessImages:  true,
			VisionAnalysis: true,
			StoreDocument:  true,
		}
	case config.ModeEmbeddingOnly:
		return Features{
			UploadDocument: true,
			ExtractText:    true,
			StoreDocument:  true,
			Chunking:       true,
			Embeddings:     true,
		}
	case config.ModeClassificationOnly:
		return Features{
			UploadDocument:  true,
			ExtractText:     true,
			Classify:        true,
			ExtractMetadata: true,
			StoreDocument:   true,
		}
	default: // production, full_test
		return Features{
			UploadDocument:  true,
			ExtractText:     true,
			ProcessImages:   true,
			VisionAnalysis:  true,
			Classify:        true,
			ExtractMetadata: true,
			StoreDocument:   true,
			Chunking:        true,
			Embeddings:      true,
		}
	}
}
