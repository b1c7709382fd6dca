package root

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/docflowhq/docflow/pkg/config"
	"github.com/docflowhq/docflow/pkg/layout"
	"github.com/docflowhq/docflow/pkg/overrides"
	"github.com/docflowhq/docflow/pkg/payload"
	"github.com/docflowhq/docflow/pkg/resolve"
	"github.com/docflowhq/docflow/pkg/router"
	"github.com/docflowhq/docflow/pkg/secrets"
)

func newRouteCmd(flags *rootFlags) *cobra.Command {
	var (
		bodyPath  string
		objectKey string
		fetch     bool
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route one notification body and print the analysis",
		Long:  "Read a notification JSON body from a file or stdin, run the router locally, and print the resulting analysis as JSON. No AWS access is needed unless --fetch is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			raw, err := readBody(bodyPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			body, err := payload.Parse(raw)
			if err != nil {
				return fmt.Errorf("parsing notification body: %w", err)
			}

			r, err := buildLocalRouter(ctx, cfg, fetch)
			if err != nil {
				return err
			}

			key := objectKey
			if key == "" {
				if k, ok := payload.DigString(body, "s3", "object", "key"); ok {
					key = k
				} else if k, ok := payload.String(body, "object_key", "objectKey", "source_path"); ok {
					key = k
				}
			}

			provider := overrides.NewConfigured(secrets.NewNoFailSource(secrets.NewEnvSource()),
				cfg.StrategySecretsScope, cfg.StrategyOverrideSecret, nil)

			analysis, err := r.Route(ctx, body, key, provider.Overrides(ctx))
			if err != nil {
				return RuntimeError{Err: err}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		},
	}

	cmd.Flags().StringVar(&bodyPath, "body", "-", "Notification JSON file, or - for stdin")
	cmd.Flags().StringVar(&objectKey, "key", "", "Object key override (defaults to the key in the body)")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Fetch object content from S3 when the body references it")

	return cmd
}

// buildLocalRouter wires a router that works without AWS. With --fetch the
// full service resolver chain is used instead.
func buildLocalRouter(ctx context.Context, cfg *config.Config, fetch bool) (*router.Router, error) {
	if fetch {
		svc, err := buildServices(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return svc.router, nil
	}

	heuristic := layout.NewHeuristic()
	selector := layout.NewSelector(
		layout.NewStructuralPDF(nil, heuristic),
		layout.NewEmail(),
		heuristic,
	)
	resolver := resolve.NewChain(resolve.NewInlineResolver())
	return router.New(cfg.RouterConfig(), resolver, selector, heuristic)
}

func readBody(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading body file: %w", err)
	}
	return raw, nil
}
