package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"relastore/cmd/relastore/commands"
	"relastore/internal/stream"
	"syscall"
)

func Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Temp files that could not be deleted on close get one more attempt.
	defer stream.CleanupTempFiles()

	return commands.Execute(ctx)
}

func main() {
	if err := Run(context.Background()); err != nil {
		slog.Error("relastore exited with error", "error", err)
		os.Exit(1)
	}
}
