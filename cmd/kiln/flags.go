package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kiln/internal/logger"
)

var (
	logLevel  string
	logFormat string
)

func commonLogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json, pretty)",
			Value:       "text",
			Destination: &logFormat,
		},
	}
}

// runLogger builds the configured logger with a unique id bound to this run,
// so interleaved output from concurrent conversions stays attributable.
func runLogger() logger.Logger {
	return logger.Setup(os.Stderr, logLevel, logFormat).With("run", uuid.NewString())
}
