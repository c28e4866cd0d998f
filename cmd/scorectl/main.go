package main

import (
	"os"

	"github.com/timmy/talentscore/internal/logger"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "warn",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "talentscore-ctl",
	})
	logger.SetDefaultLogger(appLogger)

	if err := newRootCmd(appLogger).Execute(); err != nil {
		os.Exit(1)
	}
}
