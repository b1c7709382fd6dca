package router

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/payload"
)

type stubAnalyzer struct {
	profile *Profile
	err     error
}

func (a *stubAnalyzer) Analyze(_ context.Context, desc *Descriptor, _ []byte) (*Profile, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.profile != nil {
		return a.profile, nil
	}
	return BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, []PageMetrics{{TextDensity: 0.6, ImageDensity: 0.4}}), nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DefaultStrategies = map[Category]StrategyConfig{
		CategoryShortForm:  {Name: "short_form_parser"},
		CategoryLongForm:   {Name: "long_form_parser"},
		CategoryScanned:    {Name: "scanned_parser"},
		CategoryTableHeavy: {Name: "table_heavy_parser"},
		CategoryFormHeavy:  {Name: "form_heavy_parser"},
		CategoryUnknown:    {Name: "unknown_parser"},
	}
	return cfg
}

func newTestRouter(t *testing.T, cfg Config, analyzer Analyzer) *Router {
	t.Helper()
	if analyzer == nil {
		analyzer = &stubAnalyzer{}
	}
	r, err := New(cfg, nil, analyzer, &stubAnalyzer{})
	require.NoError(t, err)
	return r
}

func pagesWith(n int, metrics PageMetrics) []PageMetrics {
	pages := make([]PageMetrics, n)
	for i := range pages {
		pages[i] = metrics
		pages[i].PageIndex = i
	}
	return pages
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, testConfig(), nil)

	tests := []struct {
		name  string
		pages []PageMetrics
		want  Category
	}{
		{"empty page list", nil, CategoryUnknown},
		{"scanned beats table heavy", pagesWith(4, PageMetrics{ImageDensity: 0.9, TableDensity: 0.9, ImageCount: 5, TableCount: 2}), CategoryScanned},
		{"table heavy", append(pagesWith(8, PageMetrics{TableDensity: 0.9, TableCount: 1, TextDensity: 0.3}), pagesWith(12, PageMetrics{TextDensity: 0.3})...), CategoryTableHeavy},
		{"long form", pagesWith(150, PageMetrics{TextDensity: 0.9}), CategoryLongForm},
		{"short form", pagesWith(3, PageMetrics{TextDensity: 0.7}), CategoryShortForm},
		{"sparse short doc is unknown", pagesWith(3, PageMetrics{TextDensity: 0.2}), CategoryUnknown},
		{"form heavy", pagesWith(4, PageMetrics{TextDensity: 0.4, CheckboxCount: 2}), CategoryFormHeavy},
		{"mid-length dense doc is unknown", pagesWith(40, PageMetrics{TextDensity: 0.9}), CategoryUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			profile := BuildProfile("doc.pdf", "", "application/pdf", tc.pages)
			assert.Equal(t, tc.want, r.Categorize(profile))
		})
	}
}

func TestRouteCategoryDefault(t *testing.T) {
	t.Parallel()

	body, err := payload.Parse([]byte(`{
		"s3": {"bucket": {"name": "b"}, "object": {"key": "memo.pdf"}},
		"documentMetadata": {"contentType": "application/pdf", "pageCount": 2,
			"layout": {"textDensity": 0.6, "imageDensity": 0.4}}
	}`))
	require.NoError(t, err)

	r := newTestRouter(t, testConfig(), &stubAnalyzer{
		profile: BuildProfile("memo.pdf", "b", "application/pdf", pagesWith(2, PageMetrics{TextDensity: 0.6, ImageDensity: 0.4})),
	})

	analysis, err := r.Route(t.Context(), body, "memo.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, CategoryShortForm, analysis.Category)
	assert.Equal(t, "short_form_parser", analysis.Strategy.Name)
	assert.Equal(t, ReasonCategoryDefault, analysis.Strategy.Reason)
	assert.Equal(t, []string{"category_default"}, analysis.OverridesApplied)
	assert.Equal(t, "b", analysis.Profile.Bucket)
	assert.Equal(t, 2, analysis.Profile.PageCount)
}

func TestRouteTableThresholdRedirect(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Thresholds.TableHeavyMaxPages = 3
	cfg.FallbackStrategy = &StrategyConfig{Name: "fallback_strategy"}

	pages := pagesWith(5, PageMetrics{TableDensity: 0.9, TableCount: 1, TextDensity: 0.3})
	r := newTestRouter(t, cfg, &stubAnalyzer{profile: BuildProfile("tables.pdf", "", "application/pdf", pages)})

	analysis, err := r.Route(t.Context(), payload.Body{}, "tables.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, CategoryTableHeavy, analysis.Category)
	assert.Equal(t, "fallback_strategy", analysis.Strategy.Name)
	assert.Equal(t, ReasonPageThresholdExceeded, analysis.Strategy.Reason)
	assert.Equal(t, 3, analysis.Strategy.MaxPages)
	assert.Equal(t, []string{"threshold_redirect"}, analysis.OverridesApplied)
	assert.Equal(t, 5, analysis.Profile.TotalTables)
	assert.InDelta(t, 1.0, analysis.Profile.TablePageRatio, 1e-9)
}

func TestRouteRequestOverrideWins(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.StaticStrategy = &StrategyConfig{Name: "static_parser"}

	overrides := &OverrideSet{Overrides: []PatternOverride{
		{Pattern: regexp.MustCompile("contract"), Strategy: StrategyConfig{Name: "pattern_parser"}},
	}}

	r := newTestRouter(t, cfg, nil)
	body := payload.Body{"parser_override": "force_parser"}

	analysis, err := r.Route(t.Context(), body, "contract.pdf", overrides)
	require.NoError(t, err)

	assert.Equal(t, "force_parser", analysis.Strategy.Name)
	assert.Equal(t, ReasonRequestOverride, analysis.Strategy.Reason)
	assert.Equal(t, []string{"request"}, analysis.OverridesApplied)
	assert.Equal(t, "force_parser", analysis.RequestOverride)
}

func TestRouteRequestOverrideNestedKeys(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, testConfig(), nil)

	for _, body := range []payload.Body{
		{"routing": map[string]any{"parser_override": "nested"}},
		{"overrides": map[string]any{"parser_override": "nested"}},
	} {
		analysis, err := r.Route(t.Context(), body, "doc.pdf", nil)
		require.NoError(t, err)
		assert.Equal(t, "nested", analysis.Strategy.Name)
		assert.Equal(t, ReasonRequestOverride, analysis.Strategy.Reason)
	}
}

func TestRoutePatternOverride(t *testing.T) {
	t.Parallel()

	overrides := &OverrideSet{Overrides: []PatternOverride{
		{Pattern: regexp.MustCompile(`\.csv$`), Strategy: StrategyConfig{Name: "never"}},
		{Pattern: regexp.MustCompile("invoice"), Strategy: StrategyConfig{Name: "invoice_parser", Model: "inv-1", MaxPages: 10}},
	}}

	r := newTestRouter(t, testConfig(), nil)

	analysis, err := r.Route(t.Context(), payload.Body{}, "2024/invoice-99.pdf", overrides)
	require.NoError(t, err)

	assert.Equal(t, "invoice_parser", analysis.Strategy.Name)
	assert.Equal(t, "inv-1", analysis.Strategy.Model)
	assert.Equal(t, 10, analysis.Strategy.MaxPages)
	assert.Equal(t, ReasonConfigPatternOverride, analysis.Strategy.Reason)
	assert.Equal(t, []string{"pattern:invoice"}, analysis.OverridesApplied)
}

func TestRouteStaticModeAfterPatterns(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Mode = ModeStatic
	cfg.StaticStrategy = &StrategyConfig{Name: "static_parser"}

	r := newTestRouter(t, cfg, nil)

	analysis, err := r.Route(t.Context(), payload.Body{}, "doc.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "static_parser", analysis.Strategy.Name)
	assert.Equal(t, ReasonConfigStatic, analysis.Strategy.Reason)
	assert.Equal(t, []string{"static_config"}, analysis.OverridesApplied)

	// Pattern overrides outrank static mode.
	overrides := &OverrideSet{Overrides: []PatternOverride{
		{Pattern: regexp.MustCompile("doc"), Strategy: StrategyConfig{Name: "pattern_parser"}},
	}}
	analysis, err = r.Route(t.Context(), payload.Body{}, "doc.pdf", overrides)
	require.NoError(t, err)
	assert.Equal(t, "pattern_parser", analysis.Strategy.Name)
	assert.Equal(t, ReasonConfigPatternOverride, analysis.Strategy.Reason)
}

func TestRouteFallbackDefaultsToUnknownStrategy(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Thresholds.ShortFormMaxPages = 1

	pages := pagesWith(3, PageMetrics{TextDensity: 0.8})
	r := newTestRouter(t, cfg, &stubAnalyzer{profile: BuildProfile("a.pdf", "", "application/pdf", pages)})

	analysis, err := r.Route(t.Context(), payload.Body{}, "a.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown_parser", analysis.Strategy.Name)
	assert.Equal(t, ReasonPageThresholdExceeded, analysis.Strategy.Reason)
	assert.Equal(t, 1, analysis.Strategy.MaxPages)
}

func TestRouteAnalyzerFailureFallsBack(t *testing.T) {
	t.Parallel()

	r, err := New(testConfig(), nil, &stubAnalyzer{err: errors.New("engine exploded")}, &stubAnalyzer{
		profile: BuildProfile("x.pdf", "", "application/pdf", pagesWith(1, PageMetrics{TextDensity: 0.7})),
	})
	require.NoError(t, err)

	analysis, err := r.Route(t.Context(), payload.Body{}, "x.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, CategoryShortForm, analysis.Category)
}

func TestNewRejectsConfigWithoutUnknownEntry(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	delete(cfg.DefaultStrategies, CategoryUnknown)

	_, err := New(cfg, nil, &stubAnalyzer{}, nil)
	require.ErrorContains(t, err, "unknown")
}
