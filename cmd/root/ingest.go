package root

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docflowhq/docflow/pkg/config"
	"github.com/docflowhq/docflow/pkg/ingest"
)

func newIngestCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run the queue ingestion loop",
		Long:  "Poll the ingestion queue, route each document notification, persist metadata, and dispatch processing until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if cfg.IngestionQueueURL == "" {
				return fmt.Errorf("INGESTION_QUEUE_URL is not set")
			}

			svc, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			wf, err := svc.buildWorkflow(ctx)
			if err != nil {
				return err
			}

			loop, err := ingest.New(ingest.Config{
				Client:           svc.sqs,
				Router:           svc.router,
				Overrides:        svc.buildOverrides(),
				Sink:             svc.sink,
				Workflow:         wf,
				Runner:           svc.buildRunner(ctx),
				QueueURL:         cfg.IngestionQueueURL,
				MaxBatchSize:     cfg.MaxBatchSize,
				WaitTimeSeconds:  int32(cfg.WaitTimeSeconds),
				VisibilityBuffer: int32(cfg.VisibilityTimeoutBuffer),
				PollInterval:     cfg.PollInterval(),
				MaxBatches:       cfg.MaxBatches,
				Workers:          cfg.InlineWorkers,
				JobID:            cfg.DispatchJobID,
				TaskParams:       cfg.WorkerTaskParameters,
			})
			if err != nil {
				return err
			}

			slog.Info("starting ingestion loop", "queue", cfg.IngestionQueueURL, "mode", cfg.RoutingMode)
			if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("ingestion loop stopped", "error", err)
				return RuntimeError{Err: err}
			}
			return nil
		},
	}
}
