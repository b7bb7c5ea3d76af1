package main

import (
	"fmt"
	"os"

	"github.com/aionlabs/aion/pkg/logger"
)

const (
	// LogFileEnvVar overrides the log file path when no CLI flag is given.
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar overrides the log level when no CLI flag is given.
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar overrides the log format when no CLI flag is given.
	LogFormatEnvVar = "LOG_FORMAT"

	DefaultLogFormat = "simple"
)

// initLoggerFromCLI initializes the process logger.
// Priority: CLI flags > env vars > defaults.
func initLoggerFromCLI(cliLogLevel, cliLogFile, cliLogFormat string) (func(), error) {
	logLevel := cliLogLevel
	if logLevel == "" {
		logLevel = os.Getenv(LogLevelEnvVar)
	}
	if logLevel == "" {
		logLevel = "info"
	}

	logFile := cliLogFile
	if logFile == "" {
		logFile = os.Getenv(LogFileEnvVar)
	}

	logFormat := cliLogFormat
	if logFormat == "" {
		logFormat = os.Getenv(LogFormatEnvVar)
	}
	if logFormat == "" {
		logFormat = DefaultLogFormat
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}
