package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

var logger *log.Logger

// InitLogger initializes the package logger. Verbose enables debug output.
func InitLogger(verbose bool) {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: false,
		ReportCaller:    false,
	})

	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

func Debug(msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// PrintError prints a styled error line to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorMsg(IconCross), fmt.Sprintf(format, args...))
}

// Fatal prints a styled error line and exits.
func Fatal(format string, args ...any) {
	PrintError(format, args...)
	os.Exit(1)
}
