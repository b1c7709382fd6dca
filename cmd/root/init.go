package root

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

const starterConfig = `# docflow configuration. Environment variables override these values.

# ingestion_queue_url: https://sqs.us-east-1.amazonaws.com/123456789012/docflow-ingest
# dlq_url: https://sqs.us-east-1.amazonaws.com/123456789012/docflow-ingest-dlq
# aws_region: us-east-1

max_batch_size: 10
wait_time_seconds: 20
visibility_timeout_buffer: 300
poll_interval_seconds: 30
inline_workers: 4

routing_mode: hybrid
request_override_flag: parser_override

# metadata_table: ingestion_metadata
# routing_metadata_table: routing_metadata
# metadata_backend: dynamodb

# layout_model_endpoint: https://layout.internal/score
# layout_model_timeout_seconds: 10

category_thresholds:
  short_form_threshold: 15
  long_form_threshold: 100

default_strategy_map:
  short_form: {strategy: general}
  long_form: {strategy: custom_model, model: longform-v1}
  scanned: {strategy: ocr_enhanced, model: ocr-2024}
  table_heavy: {strategy: table_extractor, model: tabular-v2}
  form_heavy: {strategy: forms_extractor, model: forms-v1}
  unknown: {strategy: fallback_non_azure}
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter docflow.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "docflow.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", path)
				}
			}
			if err := atomic.WriteFile(path, bytes.NewReader([]byte(starterConfig))); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
