// Package cli implements the taskmaster commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/config"
	"github.com/taskmaster-ai/taskmaster/internal/core"
	"github.com/taskmaster-ai/taskmaster/internal/logging"
)

// app holds what PersistentPreRunE loads for every subcommand.
type app struct {
	envFile  string
	logLevel string
	format   string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "taskmaster",
		Short:         "Turn notes and messages into tracked action items",
		Long:          "Task Master extracts action items from free text with an LLM agent, stores them in SQLite and keeps past notes searchable for goal breakdowns.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Load environment from this file instead of .env")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "json", "Output format: json or text")

	root.AddCommand(
		newServeCmd(a),
		newExtractCmd(a),
		newBreakdownCmd(a),
		newContextCmd(a),
		newTasksCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) load() error {
	var files []string
	if a.envFile != "" {
		files = append(files, a.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	if cfg.EnvFileLoaded {
		logger.Debug("loaded environment file")
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func (a *app) services(ctx context.Context) (*core.Services, error) {
	svc, err := core.NewServices(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return svc, nil
}

func (a *app) text() bool {
	return a.format == "text"
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
