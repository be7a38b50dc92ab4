package main

import (
	"log/slog"
	"os"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("piperepro failed", "err", err)
		os.Exit(1)
	}
}
