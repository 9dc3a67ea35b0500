// Command voicebox runs the feedback pipeline server and its batch operations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/voicebox/internal/config"
	"github.com/okian/voicebox/pkg/logger"
)

// Exit codes.
const (
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if config.IsConfigError(err) {
			os.Exit(exitConfig)
		}
		os.Exit(exitFailure)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "voicebox",
		Short: "Voice feedback to a ranked product roadmap",
		Long: `voicebox ingests recorded user feedback, transcribes and analyzes it,
consolidates it into tickets and ranks those tickets under several
prioritization frameworks.

Configuration is read from defaults, the YAML file named by VOICEBOX_CONFIG
and VOICEBOX_* environment variables, in that order.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCommand(),
		newScoreAllCommand(),
		newSynthesizeCommand(),
		newConsolidateCommand(),
		newRecountCommand(),
		newReprocessCommand(),
		newLoadgenCommand(),
	)
	return root
}

// bootstrap loads configuration and initializes logging from it.
func bootstrap(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(os.Stderr)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel),
			logger.Error(err),
		)
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}
