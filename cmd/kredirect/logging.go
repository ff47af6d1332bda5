package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func registerLoggingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("loglevel", "info", "set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringP("logformat", "f", "text", "set the log format (text, json)")
}

func baseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := loggerLevel(cmd)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format, _ := cmd.Flags().GetString("logformat"); format {
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}

func loggerLevel(cmd *cobra.Command) (slog.Level, error) {
	name, err := cmd.Flags().GetString("loglevel")
	if err != nil {
		return slog.LevelInfo, err
	}
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", name)
	}
}
