package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"

	imagecaptioner "github.com/menta2k/image-captioner"
	"github.com/menta2k/image-captioner/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).
		With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Starting image captioner", slog.String("version", imagecaptioner.GetVersion()))

	summary, err := imagecaptioner.Run(ctx, cfg, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) && summary != nil {
			logger.Warn("interrupted", slog.Int("written", summary.Total))
			return
		}
		logger.Error("Captioning failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("done",
		slog.Int("images", summary.Total),
		slog.Int("captioned", summary.Succeeded),
		slog.Int("failed", summary.Failed))
}
