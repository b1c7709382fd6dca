package router

import (
	"fmt"
	"log/slog"
	"regexp"
)

// Mode selects how strategies are resolved. Static mode pins every document
// to one configured strategy; hybrid mode derives the strategy from the
// layout category unless an override applies.
type Mode string

const (
	ModeStatic Mode = "static"
	ModeHybrid Mode = "hybrid"
)

// ParseMode maps a configuration string onto a Mode, defaulting to hybrid
// for anything unrecognised.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeStatic, ModeHybrid:
		return Mode(s)
	case "":
		return ModeHybrid
	default:
		slog.Warn("Unknown routing mode, falling back to hybrid", "mode", s)
		return ModeHybrid
	}
}

// Category is the semantic class inferred from a document's layout profile.
type Category string

const (
	CategoryShortForm  Category = "short_form"
	CategoryLongForm   Category = "long_form"
	CategoryScanned    Category = "scanned"
	CategoryTableHeavy Category = "table_heavy"
	CategoryFormHeavy  Category = "form_heavy"
	CategoryUnknown    Category = "unknown"
)

// StrategyConfig names a downstream parser, with an optional model hint and
// page cap. Values are immutable once built.
type StrategyConfig struct {
	Name     string `json:"strategy" yaml:"strategy"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	MaxPages int    `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
}

// Strategy is a resolved routing decision: the chosen parser plus the rule
// that selected it.
type Strategy struct {
	Name     string `json:"name"`
	Model    string `json:"model,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
	Reason   string `json:"reason"`
}

// Strategy selection reasons, in precedence order.
const (
	ReasonRequestOverride       = "request_override"
	ReasonConfigPatternOverride = "config_pattern_override"
	ReasonConfigStatic          = "config_static"
	ReasonPageThresholdExceeded = "page_threshold_exceeded"
	ReasonCategoryDefault       = "category_default"
)

// PatternOverride redirects documents whose object key matches Pattern to a
// fixed strategy.
type PatternOverride struct {
	Pattern  *regexp.Regexp
	Strategy StrategyConfig
}

// OverrideSet is an ordered list of pattern overrides; the first match wins.
type OverrideSet struct {
	Overrides []PatternOverride
}

// Match returns the first override whose pattern matches objectKey, or nil.
func (s *OverrideSet) Match(objectKey string) *PatternOverride {
	if s == nil {
		return nil
	}
	for i := range s.Overrides {
		if s.Overrides[i].Pattern.MatchString(objectKey) {
			return &s.Overrides[i]
		}
	}
	return nil
}

// CategoryThresholds holds the page-count boundaries used during
// categorisation plus the optional per-category page caps (0 disables a cap).
type CategoryThresholds struct {
	ShortFormThreshold int `json:"short_form_threshold" yaml:"short_form_threshold"`
	LongFormThreshold  int `json:"long_form_threshold" yaml:"long_form_threshold"`
	ShortFormMaxPages  int `json:"short_form_max_pages,omitempty" yaml:"short_form_max_pages,omitempty"`
	LongFormMaxPages   int `json:"long_form_max_pages,omitempty" yaml:"long_form_max_pages,omitempty"`
	TableHeavyMaxPages int `json:"table_heavy_max_pages,omitempty" yaml:"table_heavy_max_pages,omitempty"`
	FormMaxPages       int `json:"form_max_pages,omitempty" yaml:"form_max_pages,omitempty"`
}

// DefaultCategoryThresholds returns the stock page-count boundaries.
func DefaultCategoryThresholds() CategoryThresholds {
	return CategoryThresholds{
		ShortFormThreshold: 15,
		LongFormThreshold:  100,
	}
}

// maxPagesFor returns the cap configured for a category, 0 when none. Only
// the four layout-derived categories carry caps.
func (t CategoryThresholds) maxPagesFor(category Category) int {
	switch category {
	case CategoryShortForm:
		return t.ShortFormMaxPages
	case CategoryLongForm:
		return t.LongFormMaxPages
	case CategoryTableHeavy:
		return t.TableHeavyMaxPages
	case CategoryFormHeavy:
		return t.FormMaxPages
	default:
		return 0
	}
}

// Config drives a Router. It is read-only after construction.
type Config struct {
	Mode                Mode
	RequestOverrideFlag string
	Thresholds          CategoryThresholds
	DefaultStrategies   map[Category]StrategyConfig
	FallbackStrategy    *StrategyConfig
	StaticStrategy      *StrategyConfig

	ScannedPageRatioThreshold float64
	TablePageRatioThreshold   float64
	FormPageRatioThreshold    float64
	ShortFormMinTextDensity   float64
}

// DefaultStrategies is the stock category-to-parser mapping used when no
// DEFAULT_STRATEGY_MAP is configured.
func DefaultStrategies() map[Category]StrategyConfig {
	return map[Category]StrategyConfig{
		CategoryShortForm:  {Name: "general"},
		CategoryLongForm:   {Name: "custom_model", Model: "longform-v1"},
		CategoryScanned:    {Name: "ocr_enhanced", Model: "ocr-2024"},
		CategoryTableHeavy: {Name: "table_extractor", Model: "tabular-v2"},
		CategoryFormHeavy:  {Name: "forms_extractor", Model: "forms-v1"},
		CategoryUnknown:    {Name: "fallback_non_azure"},
	}
}

// DefaultConfig returns the stock router configuration in hybrid mode.
func DefaultConfig() Config {
	return Config{
		Mode:                      ModeHybrid,
		RequestOverrideFlag:       "parser_override",
		Thresholds:                DefaultCategoryThresholds(),
		DefaultStrategies:         DefaultStrategies(),
		ScannedPageRatioThreshold: 0.5,
		TablePageRatioThreshold:   0.3,
		FormPageRatioThreshold:    0.25,
		ShortFormMinTextDensity:   0.55,
	}
}

// Validate checks that the configuration can route every document: the
// strategy map must carry an unknown entry, which doubles as the fallback
// when FallbackStrategy is unset.
func (c *Config) Validate() error {
	if len(c.DefaultStrategies) == 0 {
		return fmt.Errorf("router config: default strategy map is empty")
	}
	if _, ok := c.DefaultStrategies[CategoryUnknown]; !ok {
		return fmt.Errorf("router config: default strategy map is missing the %q entry", CategoryUnknown)
	}
	for category, strategy := range c.DefaultStrategies {
		if strategy.Name == "" {
			return fmt.Errorf("router config: strategy for category %q has no parser name", category)
		}
	}
	return nil
}

// fallback returns the strategy used for threshold redirects.
func (c *Config) fallback() StrategyConfig {
	if c.FallbackStrategy != nil {
		return *c.FallbackStrategy
	}
	return c.DefaultStrategies[CategoryUnknown]
}
