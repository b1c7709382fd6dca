package root

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docflowhq/docflow/pkg/config"
	"github.com/docflowhq/docflow/pkg/ingest"
)

func newReplayCmd(flags *rootFlags) *cobra.Command {
	var (
		peek     bool
		limit    int
		throttle time.Duration
		source   string
		target   string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Inspect or drain the dead-letter queue",
		Long:  "Move dead-letter messages back to the ingestion queue, or peek at them without consuming",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			dlqURL := source
			if dlqURL == "" {
				dlqURL = cfg.DLQURL
			}
			if dlqURL == "" {
				return fmt.Errorf("no dead-letter queue configured: set DLQ_URL or --source")
			}

			svc, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			replayer := ingest.NewReplayer(svc.sqs, dlqURL)

			if peek {
				n := limit
				if n <= 0 {
					n = 10
				}
				bodies, err := replayer.Peek(ctx, n)
				if err != nil {
					return RuntimeError{Err: err}
				}
				for _, body := range bodies {
					fmt.Fprintln(cmd.OutOrStdout(), body)
				}
				return nil
			}

			targetURL := target
			if targetURL == "" {
				targetURL = cfg.IngestionQueueURL
			}
			if targetURL == "" {
				return fmt.Errorf("no target queue configured: set INGESTION_QUEUE_URL or --target")
			}

			moved, err := replayer.Drain(ctx, targetURL, limit, throttle)
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d messages\n", moved)
			if err != nil && ctx.Err() == nil {
				return RuntimeError{Err: err}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&peek, "peek", false, "Print message bodies without consuming them")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages to move (0 = drain everything)")
	cmd.Flags().DurationVar(&throttle, "throttle", 0, "Pause between replayed messages")
	cmd.Flags().StringVar(&source, "source", "", "Dead-letter queue URL (defaults to DLQ_URL)")
	cmd.Flags().StringVar(&target, "target", "", "Target queue URL (defaults to INGESTION_QUEUE_URL)")

	return cmd
}
