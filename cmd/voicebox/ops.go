package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	service "github.com/okian/voicebox/internal/app"
	"github.com/okian/voicebox/internal/config"
	"github.com/okian/voicebox/internal/domain/types"
	"github.com/okian/voicebox/internal/pipeline"
	"github.com/okian/voicebox/pkg/logger"
)

// operation runs against a started pipeline and returns the value printed as JSON.
type operation func(ctx context.Context, p *pipeline.Service) (any, error)

// runOperation starts the service, runs op and stops the service. With the
// in-memory queue Stop first handles every task op queued; with Redis the
// tasks stay queued for the server's workers.
func runOperation(cmd *cobra.Command, op operation) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	return execute(ctx, cfg, cmd.OutOrStdout(), op)
}

func execute(ctx context.Context, cfg *config.Config, out io.Writer, op operation, opts ...service.Option) (err error) {
	svc := service.New(cfg, append([]service.Option{service.WithLogger(logger.Get())}, opts...)...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := svc.Stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	result, err := op(ctx, svc.Pipeline())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newScoreAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "score-all <client>",
		Short: "Rescore every ticket of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, scoreAll(args[0]))
		},
	}
}

func scoreAll(clientID string) operation {
	return func(ctx context.Context, p *pipeline.Service) (any, error) {
		n, err := p.ScoreAll(ctx, clientID)
		if err != nil {
			return nil, err
		}
		p.Wait()
		return map[string]any{"client_id": clientID, "attempted": n}, nil
	}
}

func newSynthesizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "synthesize <client>",
		Short: "Generate gray-area tickets from a client's recent feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, synthesize(args[0]))
		},
	}
}

func synthesize(clientID string) operation {
	return func(ctx context.Context, p *pipeline.Service) (any, error) {
		res, err := p.Synthesize(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"generated": res.Generated, "tickets": types.FromTickets(res.Tickets)}, nil
	}
}

func newConsolidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate <feedback>",
		Short: "Attach analyzed feedback to a matching ticket or create one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, consolidate(args[0]))
		},
	}
}

func consolidate(feedbackID string) operation {
	return func(ctx context.Context, p *pipeline.Service) (any, error) {
		d, err := p.Consolidate(ctx, feedbackID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"action":    d.Action,
			"ticket":    types.FromTicket(d.Ticket),
			"reasoning": d.Reasoning,
		}, nil
	}
}

func newRecountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recount <ticket>",
		Short: "Repair a ticket's feedback counter from its links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, recount(args[0]))
		},
	}
}

func recount(ticketID string) operation {
	return func(ctx context.Context, p *pipeline.Service) (any, error) {
		n, err := p.RecountFeedback(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ticket_id": ticketID, "feedback_count": n}, nil
	}
}

func newReprocessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <feedback>",
		Short: "Run transcription and analysis again for a feedback item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, reprocess(args[0]))
		},
	}
}

func reprocess(feedbackID string) operation {
	return func(ctx context.Context, p *pipeline.Service) (any, error) {
		if err := p.Reprocess(ctx, feedbackID); err != nil {
			return nil, err
		}
		return map[string]any{"feedback_id": feedbackID, "status": "pending"}, nil
	}
}
