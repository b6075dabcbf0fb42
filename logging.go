package main

import (
	"os"

	"github.com/charmbracelet/log"
)

// newLogger builds the process-wide structured logger, matching the
// teacher's charmbracelet/log setup: timestamps, level-colored output
// to stderr, and a level parsed from the config/flag string (defaulting
// to info on anything unrecognised).
func newLogger(levelName string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	level, err := log.ParseLevel(levelName)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
