package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jpalmerr/hostmap"
	"github.com/jpalmerr/hostmap/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a logger for CLI use. format is json, text or auto;
// auto picks text when stderr is a terminal and JSON otherwise.
func newLogger(w io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "auto", "":
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return slog.New(slog.NewTextHandler(w, opts)), nil
		}
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected auto, json or text)", format)
	}
}

// serveCmd starts scanning and the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start scanning and the dashboard server",
	Long: `Start scanning and the HostMap dashboard server.

The server will:
  - Load variables from the env file, when present
  - Load configuration from the YAML file, or use defaults
  - Start probing random addresses in the configured range
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  hostmap serve
  hostmap serve -c config.yaml
  hostmap serve --config /etc/hostmap/config.yaml --env-file /etc/hostmap/env`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (defaults apply when omitted)")
	serveCmd.Flags().String("env-file", ".env", "environment file loaded before the config")
	serveCmd.Flags().String("log-format", "auto", "log output format: auto, json or text")
}

// loadEnvFile loads path into the environment. A missing file is not an
// error; variables already set are not overridden.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig loads the config file, or returns defaults for an empty path.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logFormat, _ := cmd.Flags().GetString("log-format")
	logger, err := newLogger(os.Stderr, logFormat, cfg.SlogLevel())
	if err != nil {
		return err
	}
	logger.Info("config loaded",
		"file", configFile,
		"port", cfg.Port,
		"storage", cfg.Storage.Driver,
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, hostmap.WithLogger(logger))

	hm, err := hostmap.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create HostMap: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- hm.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
