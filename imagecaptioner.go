// Package imagecaptioner generates one caption file per image using a vision model.
//
// A model server (Ollama or a llama.cpp OpenAI-compatible server) does the actual
// vision encoding and decoding. This package wires a backend client, the captioner
// and the batch driver together from a config.Config.
//
// Basic usage:
//
//	cfg := config.Default()
//	summary, err := imagecaptioner.Run(ctx, cfg, slog.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%d captioned, %d failed\n", summary.Succeeded, summary.Failed)
//
// The package consists of these components:
//
// 1. Clients (pkg/ollama, pkg/llamacpp): talk to the model server
// 2. Processing (pkg/processing): decodes, flattens and resizes images
// 3. Captioner (pkg/captioner): image bytes in, single-line caption out
// 4. Batch (pkg/batch): walks the input directory and writes caption files
//
// Every qualifying image gets exactly one output file named
// <filename>_caption.txt. Images that fail get the text
// "Error processing image: <reason>" instead of a caption, and the batch carries on.
package imagecaptioner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/menta2k/image-captioner/internal/config"
	"github.com/menta2k/image-captioner/pkg/batch"
	"github.com/menta2k/image-captioner/pkg/captioner"
	"github.com/menta2k/image-captioner/pkg/client"
	"github.com/menta2k/image-captioner/pkg/llamacpp"
	"github.com/menta2k/image-captioner/pkg/ollama"
	"github.com/menta2k/image-captioner/pkg/types"
)

// Version of the image captioner
const Version = "1.0.0"

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// NewClient creates the backend client selected by the model configuration
func NewClient(cfg config.ModelConfig) (client.CaptionClient, error) {
	switch strings.ToLower(cfg.Backend) {
	case "ollama":
		c, err := ollama.NewClient(cfg.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Backend)
	}
}

// NewCaptioner builds a captioner from the model configuration
func NewCaptioner(c client.CaptionClient, cfg config.ModelConfig) (*captioner.Captioner, error) {
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	return captioner.New(c, captioner.Options{
		Model:  cfg.Name,
		Prompt: cfg.Prompt,
		Decoding: types.Decoding{
			MaxTokens: cfg.MaxTokens,
			NumBeams:  cfg.NumBeams,
		},
		SendSize:    cfg.SendSize,
		SendQuality: cfg.SendQuality,
		Timeout:     timeout,
	}), nil
}

// Run validates cfg, resolves the model and captions the input directory.
// Errors returned here are startup failures or cancellation; per-image failures
// are reported in the summary.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*types.Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := NewClient(cfg.Model)
	if err != nil {
		return nil, err
	}
	return RunWithClient(ctx, c, cfg, logger)
}

// RunWithClient is Run with a caller-supplied backend client
func RunWithClient(ctx context.Context, c client.CaptionClient, cfg *config.Config, logger *slog.Logger) (*types.Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	capt, err := NewCaptioner(c, cfg.Model)
	if err != nil {
		return nil, err
	}

	logger.Info("loading model",
		slog.String("backend", cfg.Model.Backend),
		slog.String("model", capt.Model()),
		slog.Int("max_tokens", capt.Decoding().MaxTokens),
		slog.Int("num_beams", capt.Decoding().NumBeams))
	if err := capt.Load(ctx); err != nil {
		return nil, err
	}

	driver := batch.New(capt, batch.Options{
		InputDir:   cfg.Batch.InputDir,
		OutputDir:  cfg.Batch.OutputDir,
		Extensions: cfg.Batch.Extensions,
		Suffix:     cfg.Batch.Suffix,
		Out:        os.Stdout,
		Logger:     logger,
	})
	return driver.Run(ctx)
}
