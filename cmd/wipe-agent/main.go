package main

import (
	"log/slog"
	"os"

	"github.com/securewipe/wipe-agent/cmd/wipe-agent/commands"
)

func main() {
	// Text logger until the root command applies the configured level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
