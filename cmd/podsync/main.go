package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rickgao/podsync/internal/app"
	"github.com/rickgao/podsync/internal/config"
	"github.com/rickgao/podsync/internal/version"
)

const (
	defaultConfigPath = "configs/podsync.local.yaml"
	shutdownTimeout   = 30 * time.Second
	statsInterval     = time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "podsync",
		Short:        "Keep a live view of chat state across pods",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; the process environment still applies.
			_ = godotenv.Load()
		},
	}

	root.AddCommand(newRunCmd(), newTailCmd(), newVersionCmd(), newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to configured pods and keep stores live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = logFormat
			}
			if debug {
				cfg.Log.Level = "debug"
			}
			return run(cmd.Context(), cfg, configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, configPath string) error {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting podsync",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"pods", len(cfg.Pods),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, logger)
	if err := a.Start(ctx); err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			logStats(logger, a.Stats())
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logStats(logger, a.Stats())
	logger.Info("podsync stopped")
	return nil
}

func logStats(logger *slog.Logger, st app.Stats) {
	pods := make([]any, 0, len(st.Pods)*2)
	for id, s := range st.Pods {
		pods = append(pods, id, string(s))
	}
	logger.Info("stats",
		slog.Group("pods", pods...),
		"received", st.Router.Received,
		"routed", st.Router.Routed,
		"parse_errors", st.Router.ParseErrors,
		"unknown", st.Router.Unknown,
		"archive_dropped", st.Router.Archive.Dropped,
		"sweeps", st.Sweep.Sweeps,
		"archived", st.Writer.Upserts+st.Writer.Deletes,
	)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	var configPath string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load, default and validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: %d pod(s), archive=%t\n", len(cfg.Pods), cfg.Archive.Enabled)
			return nil
		},
	}
	validate.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")

	cmd.AddCommand(validate)
	return cmd
}
