package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/voicebox/internal/loadgen"
	"github.com/okian/voicebox/pkg/logger"
)

const loadgenRunTimeout = 10 * time.Minute

func newLoadgenCommand() *cobra.Command {
	cfg := &loadgen.Config{}
	var format string
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Upload synthetic recordings to a running server and verify its ranking",
		Example: `  voicebox loadgen --url http://localhost:8080 --client acme --submissions 200
  voicebox loadgen --consolidate --framework quick_win --top 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(format), logger.WithWriter(os.Stderr)); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, loadgenRunTimeout)
			defer cancel()

			stats, err := loadgen.Run(ctx, cfg)
			if stats != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(stats)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the server")
	f.StringVar(&cfg.ClientID, "client", "loadgen", "client the recordings are filed under")
	f.IntVar(&cfg.Submissions, "submissions", 100, "number of recordings to upload")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "concurrent uploads")
	f.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "per-request timeout")
	f.DurationVar(&cfg.WaitTimeout, "wait", 2*time.Minute, "how long to wait for one recording to be processed")
	f.DurationVar(&cfg.PollInterval, "poll", 500*time.Millisecond, "status poll interval")
	f.BoolVar(&cfg.Consolidate, "consolidate", false, "consolidate completed recordings into tickets")
	f.StringVar(&cfg.Framework, "framework", "traditional", "ranking framework to verify")
	f.IntVar(&cfg.TopN, "top", 50, "ranking entries to fetch")
	f.StringVar(&format, "log-format", "text", "log format: text, json or pretty")
	return cmd
}
