package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/router"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxBatchSize)
	assert.Equal(t, 300, cfg.VisibilityTimeoutBuffer)
	assert.Equal(t, 20, cfg.WaitTimeSeconds)
	assert.Equal(t, 30, cfg.PollIntervalSeconds)
	assert.Equal(t, 4, cfg.InlineWorkers)
	assert.Equal(t, "parser_override", cfg.RequestOverrideFlag)
	assert.Equal(t, "hybrid", cfg.RoutingMode)
	assert.Equal(t, int64(20<<20), cfg.S3MaxFetchBytes)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INGESTION_QUEUE_URL", "https://sqs/q")
	t.Setenv("MAX_BATCH_SIZE", "5")
	t.Setenv("ROUTING_MODE", "static")
	t.Setenv("STATIC_ROUTING_STRATEGY", "general")
	t.Setenv("WORKER_TASK_PARAMETERS", `{"env": "prod"}`)
	t.Setenv("CATEGORY_THRESHOLDS", `{"short_form_threshold": 8, "table_heavy_max_pages": 40}`)
	t.Setenv("DEFAULT_STRATEGY_MAP", `{"unknown": {"strategy": "fallback_non_azure"}, "scanned": {"strategy": "ocr_enhanced", "model": "ocr-x"}}`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://sqs/q", cfg.IngestionQueueURL)
	assert.Equal(t, 5, cfg.MaxBatchSize)
	assert.Equal(t, map[string]string{"env": "prod"}, cfg.WorkerTaskParameters)

	rc := cfg.RouterConfig()
	assert.Equal(t, router.ModeStatic, rc.Mode)
	require.NotNil(t, rc.StaticStrategy)
	assert.Equal(t, "general", rc.StaticStrategy.Name)
	assert.Equal(t, 8, rc.Thresholds.ShortFormThreshold)
	assert.Equal(t, 40, rc.Thresholds.TableHeavyMaxPages)
	assert.Equal(t, "ocr-x", rc.DefaultStrategies[router.CategoryScanned].Model)
	assert.Equal(t, "fallback_non_azure", rc.DefaultStrategies[router.CategoryUnknown].Name)
}

func TestLoadYAMLFileEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"ingestion_queue_url: https://sqs/from-file\n"+
			"max_batch_size: 3\n"+
			"metadata_table: ingestion_metadata\n"), 0o644))
	t.Setenv("MAX_BATCH_SIZE", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sqs/from-file", cfg.IngestionQueueURL)
	assert.Equal(t, 7, cfg.MaxBatchSize, "environment wins over file")
	assert.Equal(t, "ingestion_metadata", cfg.MetadataTable)
}

func TestLoadYAMLPartialThresholdsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"category_thresholds:\n"+
			"  table_heavy_max_pages: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	rc := cfg.RouterConfig()
	assert.Equal(t, 15, rc.Thresholds.ShortFormThreshold)
	assert.Equal(t, 100, rc.Thresholds.LongFormThreshold)
	assert.Equal(t, 3, rc.Thresholds.TableHeavyMaxPages)

	r, err := router.New(rc, nil, passthroughAnalyzer{}, nil)
	require.NoError(t, err)
	category := r.Categorize(&router.Profile{
		PageCount:          3,
		AverageTextDensity: 0.2,
	})
	assert.Equal(t, router.CategoryUnknown, category, "a short low-density document must not fall into long_form")
}

type passthroughAnalyzer struct{}

func (passthroughAnalyzer) Analyze(context.Context, *router.Descriptor, []byte) (*router.Profile, error) {
	return &router.Profile{}, nil
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MAX_BATCH_SIZE", "-1")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("MAX_BATCH_SIZE", "5")
	t.Setenv("WAIT_TIME_SECONDS", "45")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoadRejectsDispatchWithoutJobsAPI(t *testing.T) {
	t.Setenv("DISPATCH_JOB_ID", "42")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs_api_url")
}

func TestDefaultStrategyMapMustCoverUnknown(t *testing.T) {
	t.Setenv("DEFAULT_STRATEGY_MAP", `{"scanned": {"strategy": "ocr_enhanced"}}`)
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}
