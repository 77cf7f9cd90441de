package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/matiaszanolli/auralis-go/cmd"
	"github.com/matiaszanolli/auralis-go/internal/conf"
	"github.com/matiaszanolli/auralis-go/internal/logging"
)

// Exit codes: 0 normal, 2 config error, 3 cache directory unwritable,
// 4 transport bind failed. Subcommands return coded errors; main maps them.
func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(cmd.ExitCode(err))
	}
}
