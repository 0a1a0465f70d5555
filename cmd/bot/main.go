// Package main contains the entrypoint for the MisakiCat chat bot and its
// command line tools.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
	"github.com/Yunkai-Xiao/MisakiCat/internal/gemini"
	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
	"github.com/Yunkai-Xiao/MisakiCat/internal/logger"
	"github.com/Yunkai-Xiao/MisakiCat/internal/ollama"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		return 1
	}
	return 0
}

// app holds what every subcommand needs after config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "misakicat",
		Short:         "Chat bot bridging Discord and Telegram to a local LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "./config.yaml", "Path to configuration file")

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newModelsCmd(a),
		newEmbedCmd(a),
	)
	return root
}

// load reads the config and sets up logging. The bot logs to stdout like any
// service; the one-shot tools log to stderr so their output stays clean.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", a.configPath, err)
	}
	a.cfg = cfg

	if cmd.Name() == "serve" || !cmd.HasParent() {
		a.log = logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	} else {
		a.log = logger.New(cmd.ErrOrStderr(), cfg.Logger.Level, cfg.Logger.JSON)
	}
	a.log.Debug("Configuration loaded", "path", a.configPath, "provider", cfg.Backend.Provider)
	return nil
}

// newInferenceClient builds the backend selected by backend.provider.
func newInferenceClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (inference.Client, error) {
	switch cfg.Backend.Provider {
	case "gemini":
		return gemini.NewClient(ctx, cfg.Backend, log)
	case "ollama", "":
		return ollama.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Backend.Provider)
	}
}

func writeLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
