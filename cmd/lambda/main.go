package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"travel-agent/handler"
	"travel-agent/internal/app"
	"travel-agent/internal/config"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- Service ----
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to wire service", "err", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	// ---- Handler ----
	h, err := handler.NewHandler(a.Service)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
