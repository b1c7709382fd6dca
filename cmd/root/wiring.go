package root

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/docflowhq/docflow/pkg/adapter"
	"github.com/docflowhq/docflow/pkg/analyze"
	"github.com/docflowhq/docflow/pkg/awsconn"
	"github.com/docflowhq/docflow/pkg/config"
	"github.com/docflowhq/docflow/pkg/httpclient"
	"github.com/docflowhq/docflow/pkg/jobs"
	"github.com/docflowhq/docflow/pkg/layout"
	"github.com/docflowhq/docflow/pkg/layout/layoutmodel"
	"github.com/docflowhq/docflow/pkg/metadata"
	"github.com/docflowhq/docflow/pkg/overrides"
	"github.com/docflowhq/docflow/pkg/paths"
	"github.com/docflowhq/docflow/pkg/resolve"
	"github.com/docflowhq/docflow/pkg/router"
	"github.com/docflowhq/docflow/pkg/secrets"
	"github.com/docflowhq/docflow/pkg/store"
	"github.com/docflowhq/docflow/pkg/summary"
	"github.com/docflowhq/docflow/pkg/workflow"
)

// services is the wired object graph behind the ingest and replay commands.
type services struct {
	cfg     *config.Config
	awsCfg  aws.Config
	sqs     *sqs.Client
	router  *router.Router
	secrets secrets.Source
	sink    metadata.Sink
	closers []func() error
}

func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	awsCfg, err := awsconn.Load(ctx, awsconn.Options{
		Region:      cfg.AWSRegion,
		EndpointURL: cfg.AWSEndpointURL,
		RoleARN:     cfg.AWSRoleARN,
	})
	if err != nil {
		return nil, err
	}

	svc := &services{cfg: cfg, awsCfg: awsCfg}
	svc.sqs = sqs.NewFromConfig(awsCfg)
	svc.secrets = secrets.NewCachedSource(secrets.NewMultiSource(
		secrets.NewManagerSource(secretsmanager.NewFromConfig(awsCfg)),
		secrets.NewEnvSource(),
	), 0)

	svc.router, err = buildRouter(ctx, cfg, awsCfg, svc.secrets)
	if err != nil {
		return nil, err
	}

	svc.sink, err = svc.buildSink()
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *services) Close() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			slog.Warn("closing service", "error", err)
		}
	}
}

// buildRouter assembles the resolver chain, the layout analyser stack, and
// the router itself.
func buildRouter(ctx context.Context, cfg *config.Config, awsCfg aws.Config, source secrets.Source) (*router.Router, error) {
	resolver := resolve.NewChain(
		resolve.NewInlineResolver(),
		resolve.NewS3Resolver(s3.NewFromConfig(awsCfg), cfg.S3MaxFetchBytes),
	)

	heuristic := layout.NewHeuristic()
	var pdf router.Analyzer = layout.NewStructuralPDF(nil, heuristic)
	email := layout.NewEmail()
	var generic router.Analyzer = heuristic

	if cfg.LayoutModelEndpoint != "" {
		token := layoutModelToken(ctx, cfg, source)
		client := layoutmodel.New(cfg.LayoutModelEndpoint, token, cfg.LayoutModelTimeout(), httpclient.New(0))
		generic = layout.NewModelBacked(client, "", heuristic)
		pdf = layout.NewModelBacked(client, "pdf", layout.NewStructuralPDF(nil, heuristic))
	}

	selector := layout.NewSelector(pdf, email, generic)
	return router.New(cfg.RouterConfig(), resolver, selector, heuristic)
}

func layoutModelToken(ctx context.Context, cfg *config.Config, source secrets.Source) string {
	if cfg.LayoutModelSecretScope == "" || cfg.LayoutModelSecretKey == "" {
		return ""
	}
	token, err := source.Get(ctx, cfg.LayoutModelSecretScope, cfg.LayoutModelSecretKey)
	if err != nil {
		slog.Warn("layout model token unavailable, calling without auth", "error", err)
		return ""
	}
	return token
}

// buildOverrides wires the configured override sources: secret, table, env.
func (s *services) buildOverrides() overrides.Provider {
	var table overrides.Table
	if s.cfg.DeltaOverrideTable != "" {
		table = overrides.NewDynamoTable(dynamodb.NewFromConfig(s.awsCfg), s.cfg.DeltaOverrideTable)
	}
	return overrides.NewConfigured(
		secrets.NewNoFailSource(s.secrets),
		s.cfg.StrategySecretsScope,
		s.cfg.StrategyOverrideSecret,
		table,
	)
}

// buildSink picks the metadata backend: DynamoDB when tables are
// configured, SQLite for local runs, stdout otherwise.
func (s *services) buildSink() (metadata.Sink, error) {
	backend := s.cfg.MetadataBackend
	if backend == "" {
		if s.cfg.MetadataTable != "" || s.cfg.RoutingMetadataTable != "" {
			backend = "dynamodb"
		} else {
			backend = "stdout"
		}
	}
	switch backend {
	case "dynamodb":
		return metadata.NewDynamo(dynamodb.NewFromConfig(s.awsCfg), s.cfg.MetadataTable, s.cfg.RoutingMetadataTable), nil
	case "sqlite":
		sink, err := metadata.OpenSQLite(sqlitePath("metadata.db"), "ingestion_metadata", "routing_metadata")
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sink.Close)
		return sink, nil
	case "stdout":
		return metadata.NewWriter(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", backend)
	}
}

// buildWorkflow assembles the inline processing pipeline. It returns nil
// when no analyse endpoint is configured; the loop then only routes and
// records.
func (s *services) buildWorkflow(ctx context.Context) (*workflow.Workflow, error) {
	if s.cfg.AnalyzeEndpoint == "" {
		return nil, nil
	}
	var token string
	if s.cfg.AnalyzeTokenSecret != "" {
		var err error
		token, err = s.secrets.Get(ctx, "analyze", s.cfg.AnalyzeTokenSecret)
		if err != nil {
			slog.Warn("analyse endpoint token unavailable", "error", err)
		}
	}

	resultStore, err := s.buildStore()
	if err != nil {
		return nil, err
	}

	return workflow.New(workflow.Config{
		Analyzer:   analyze.NewClient(s.cfg.AnalyzeEndpoint, token, 0, httpclient.New(0)),
		Registry:   adapter.NewRegistry(),
		Store:      resultStore,
		Summarizer: summary.Heuristic{},
	})
}

func (s *services) buildStore() (store.Store, error) {
	if s.cfg.ResultStorePath == "" {
		return store.NewMemory(), nil
	}
	sqlStore, err := store.OpenSQLite(s.cfg.ResultStorePath)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, sqlStore.Close)
	return sqlStore, nil
}

// buildRunner wires the external job runner when dispatch is configured.
func (s *services) buildRunner(ctx context.Context) jobs.Runner {
	if s.cfg.DispatchJobID == 0 || s.cfg.JobsAPIURL == "" {
		return nil
	}
	var token string
	if s.cfg.JobsAPITokenSecret != "" {
		var err error
		token, err = s.secrets.Get(ctx, "jobs", s.cfg.JobsAPITokenSecret)
		if err != nil {
			slog.Warn("jobs API token unavailable", "error", err)
		}
	}
	return jobs.NewClient(s.cfg.JobsAPIURL, token, 0, httpclient.New(0))
}

func sqlitePath(name string) string {
	return filepath.Join(paths.GetDataDir(), name)
}
