// Package config loads the service configuration from the environment and
// an optional YAML file. Environment values win over file values.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/docflowhq/docflow/pkg/router"
)

// Config is the full service configuration. YAML keys mirror the
// lower-cased environment variable names.
type Config struct {
	IngestionQueueURL       string `yaml:"ingestion_queue_url"`
	AWSRegion               string `yaml:"aws_region"`
	AWSEndpointURL          string `yaml:"aws_endpoint_url"`
	AWSRoleARN              string `yaml:"aws_role_arn"`
	MaxBatchSize            int    `yaml:"max_batch_size"`
	VisibilityTimeoutBuffer int    `yaml:"visibility_timeout_buffer"`
	WaitTimeSeconds         int    `yaml:"wait_time_seconds"`
	PollIntervalSeconds     int    `yaml:"poll_interval_seconds"`
	MaxBatches              int    `yaml:"max_batches"`
	InlineWorkers           int    `yaml:"inline_workers"`

	DispatchJobID        int64             `yaml:"dispatch_job_id"`
	WorkerTaskParameters map[string]string `yaml:"worker_task_parameters"`
	JobsAPIURL           string            `yaml:"jobs_api_url"`
	JobsAPITokenSecret   string            `yaml:"jobs_api_token_secret"`

	MetadataTable        string `yaml:"metadata_table"`
	RoutingMetadataTable string `yaml:"routing_metadata_table"`
	MetadataBackend      string `yaml:"metadata_backend"`
	ResultStorePath      string `yaml:"result_store_path"`

	CategoryThresholds *router.CategoryThresholds       `yaml:"category_thresholds"`
	DefaultStrategyMap map[string]router.StrategyConfig `yaml:"default_strategy_map"`

	DeltaOverrideTable      string `yaml:"delta_override_table"`
	StrategySecretsScope    string `yaml:"strategy_secrets_scope"`
	StrategyOverrideSecret  string `yaml:"strategy_override_secret"`
	RequestOverrideFlag     string `yaml:"request_override_flag"`
	RoutingMode             string `yaml:"routing_mode"`
	StaticRoutingStrategy   string `yaml:"static_routing_strategy"`
	ParserStrategyOverrides string `yaml:"parser_strategy_overrides"`

	LayoutModelEndpoint       string `yaml:"layout_model_endpoint"`
	LayoutModelSecretScope    string `yaml:"layout_model_secret_scope"`
	LayoutModelSecretKey      string `yaml:"layout_model_secret_key"`
	LayoutModelTimeoutSeconds int    `yaml:"layout_model_timeout_seconds"`

	AnalyzeEndpoint    string `yaml:"analyze_endpoint"`
	AnalyzeTokenSecret string `yaml:"analyze_token_secret"`

	DLQURL          string `yaml:"dlq_url"`
	S3MaxFetchBytes int64  `yaml:"s3_max_fetch_bytes"`
}

// Defaults returns a configuration with every tunable at its stock value.
func Defaults() *Config {
	return &Config{
		MaxBatchSize:              10,
		VisibilityTimeoutBuffer:   300,
		WaitTimeSeconds:           20,
		PollIntervalSeconds:       30,
		InlineWorkers:             4,
		RequestOverrideFlag:       "parser_override",
		RoutingMode:               string(router.ModeHybrid),
		LayoutModelTimeoutSeconds: 10,
		S3MaxFetchBytes:           20 << 20,
	}
}

// Load builds the configuration: defaults, then the YAML file when path is
// non-empty, then the environment on top.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		// Seed thresholds so a file that sets only some of them merges over
		// the stock values instead of zeroing the rest.
		thresholds := router.DefaultCategoryThresholds()
		cfg.CategoryThresholds = &thresholds
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.IngestionQueueURL, "INGESTION_QUEUE_URL")
	setString(&c.AWSRegion, "AWS_REGION")
	setString(&c.AWSEndpointURL, "AWS_ENDPOINT_URL")
	setString(&c.AWSRoleARN, "AWS_ROLE_ARN")
	setInt(&c.MaxBatchSize, "MAX_BATCH_SIZE")
	setInt(&c.VisibilityTimeoutBuffer, "VISIBILITY_TIMEOUT_BUFFER")
	setInt(&c.WaitTimeSeconds, "WAIT_TIME_SECONDS")
	setInt(&c.PollIntervalSeconds, "POLL_INTERVAL_SECONDS")
	setInt(&c.MaxBatches, "MAX_BATCHES")
	setInt(&c.InlineWorkers, "INLINE_WORKERS")

	setInt64(&c.DispatchJobID, "DISPATCH_JOB_ID")
	setString(&c.JobsAPIURL, "JOBS_API_URL")
	setString(&c.JobsAPITokenSecret, "JOBS_API_TOKEN_SECRET")
	if raw := os.Getenv("WORKER_TASK_PARAMETERS"); raw != "" {
		params := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			slog.Warn("ignoring malformed WORKER_TASK_PARAMETERS", "error", err)
		} else {
			c.WorkerTaskParameters = params
		}
	}

	setString(&c.MetadataTable, "METADATA_TABLE")
	setString(&c.RoutingMetadataTable, "ROUTING_METADATA_TABLE")
	setString(&c.MetadataBackend, "METADATA_BACKEND")
	setString(&c.ResultStorePath, "RESULT_STORE_PATH")

	if raw := os.Getenv("CATEGORY_THRESHOLDS"); raw != "" {
		thresholds := router.DefaultCategoryThresholds()
		if c.CategoryThresholds != nil {
			thresholds = *c.CategoryThresholds
		}
		if err := json.Unmarshal([]byte(raw), &thresholds); err != nil {
			slog.Warn("ignoring malformed CATEGORY_THRESHOLDS", "error", err)
		} else {
			c.CategoryThresholds = &thresholds
		}
	}
	if raw := os.Getenv("DEFAULT_STRATEGY_MAP"); raw != "" {
		strategies := map[string]router.StrategyConfig{}
		if err := json.Unmarshal([]byte(raw), &strategies); err != nil {
			slog.Warn("ignoring malformed DEFAULT_STRATEGY_MAP", "error", err)
		} else {
			c.DefaultStrategyMap = strategies
		}
	}

	setString(&c.DeltaOverrideTable, "DELTA_OVERRIDE_TABLE")
	setString(&c.StrategySecretsScope, "STRATEGY_SECRETS_SCOPE")
	setString(&c.StrategyOverrideSecret, "STRATEGY_OVERRIDE_SECRET")
	setString(&c.RequestOverrideFlag, "REQUEST_OVERRIDE_FLAG")
	setString(&c.RoutingMode, "ROUTING_MODE")
	setString(&c.StaticRoutingStrategy, "STATIC_ROUTING_STRATEGY")
	setString(&c.ParserStrategyOverrides, "PARSER_STRATEGY_OVERRIDES")

	setString(&c.LayoutModelEndpoint, "LAYOUT_MODEL_ENDPOINT")
	setString(&c.LayoutModelSecretScope, "LAYOUT_MODEL_SECRET_SCOPE")
	setString(&c.LayoutModelSecretKey, "LAYOUT_MODEL_SECRET_KEY")
	setInt(&c.LayoutModelTimeoutSeconds, "LAYOUT_MODEL_TIMEOUT_SECONDS")

	setString(&c.AnalyzeEndpoint, "ANALYZE_ENDPOINT")
	setString(&c.AnalyzeTokenSecret, "ANALYZE_TOKEN_SECRET")

	setString(&c.DLQURL, "DLQ_URL")
	setInt64(&c.S3MaxFetchBytes, "S3_MAX_FETCH_BYTES")
}

// Validate rejects combinations the service cannot run with. The one-shot
// route command tolerates a missing queue URL, so that check lives with the
// ingest command.
func (c *Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("config: max_batch_size must be positive")
	}
	if c.WaitTimeSeconds < 0 || c.WaitTimeSeconds > 20 {
		return fmt.Errorf("config: wait_time_seconds must be between 0 and 20")
	}
	if c.DispatchJobID != 0 && c.JobsAPIURL == "" {
		return fmt.Errorf("config: dispatch_job_id is set but jobs_api_url is empty")
	}
	rc := c.RouterConfig()
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RouterConfig projects the service configuration onto the router's.
func (c *Config) RouterConfig() router.Config {
	rc := router.DefaultConfig()
	rc.Mode = router.ParseMode(c.RoutingMode)
	if c.RequestOverrideFlag != "" {
		rc.RequestOverrideFlag = c.RequestOverrideFlag
	}
	if c.CategoryThresholds != nil {
		rc.Thresholds = *c.CategoryThresholds
	}
	if len(c.DefaultStrategyMap) > 0 {
		strategies := make(map[router.Category]router.StrategyConfig, len(c.DefaultStrategyMap))
		for category, strategy := range c.DefaultStrategyMap {
			strategies[router.Category(category)] = strategy
		}
		rc.DefaultStrategies = strategies
	}
	if c.StaticRoutingStrategy != "" {
		rc.StaticStrategy = &router.StrategyConfig{Name: c.StaticRoutingStrategy}
	}
	return rc
}

// PollInterval returns the inter-cycle sleep as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// LayoutModelTimeout returns the per-call model deadline as a duration.
func (c *Config) LayoutModelTimeout() time.Duration {
	return time.Duration(c.LayoutModelTimeoutSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-numeric environment value", "name", key, "value", v)
		return
	}
	*dst = n
}

func setInt64(dst *int64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("ignoring non-numeric environment value", "name", key, "value", v)
		return
	}
	*dst = n
}
