// Package router turns queue notifications about arrived documents into
// routing decisions. It resolves content, profiles the layout, classifies
// the profile into a category, and selects a parser strategy through a
// layered override system.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docflowhq/docflow/pkg/payload"
)

// ContentResolver produces document bytes for a descriptor. A nil result
// with a nil error means the resolver has nothing for this document.
type ContentResolver interface {
	Fetch(ctx context.Context, desc *Descriptor) ([]byte, error)
}

// Analyzer builds a layout profile for a descriptor. Content may be nil
// when no resolver produced bytes.
type Analyzer interface {
	Analyze(ctx context.Context, desc *Descriptor, content []byte) (*Profile, error)
}

// Analysis is the routing decision for one document. It carries the full
// profile so downstream persistence never re-runs analysis.
type Analysis struct {
	Strategy         Strategy     `json:"strategy"`
	Category         Category     `json:"category"`
	OverridesApplied []string     `json:"overrides_applied"`
	Profile          *Profile     `json:"profile"`
	Body             payload.Body `json:"body,omitempty"`
	RequestOverride  string       `json:"request_override,omitempty"`
}

// Router composes content resolution, layout analysis, categorisation and
// strategy selection. Read-only after construction.
type Router struct {
	config   Config
	resolver ContentResolver
	analyzer Analyzer
	fallback Analyzer
}

// New builds a Router. The fallback analyser handles documents whose
// primary analysis fails; it must never return an error itself.
func New(config Config, resolver ContentResolver, analyzer, fallback Analyzer) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if analyzer == nil {
		return nil, fmt.Errorf("router: analyzer is required")
	}
	if fallback == nil {
		fallback = analyzer
	}
	return &Router{
		config:   config,
		resolver: resolver,
		analyzer: analyzer,
		fallback: fallback,
	}, nil
}

// Route produces the routing decision for one message. Content resolution
// and layout analysis failures degrade to the heuristic fallback; Route
// itself fails only on broken configuration.
func (r *Router) Route(ctx context.Context, body payload.Body, objectKey string, overrides *OverrideSet) (*Analysis, error) {
	desc := NewDescriptor(body, objectKey, r.config.RequestOverrideFlag)

	var content []byte
	if r.resolver != nil {
		var err error
		content, err = r.resolver.Fetch(ctx, desc)
		if err != nil {
			slog.Debug("Content resolution failed, routing without content", "object_key", objectKey, "error", err)
			content = nil
		}
	}

	profile, err := r.analyzer.Analyze(ctx, desc, content)
	if err != nil || profile == nil {
		slog.Warn("Layout analysis failed, using heuristic fallback", "object_key", objectKey, "error", err)
		profile, err = r.fallback.Analyze(ctx, desc, content)
		if err != nil || profile == nil {
			profile = BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, []PageMetrics{{TextDensity: 0.5, ImageDensity: 0.5}})
		}
	}

	category := r.Categorize(profile)
	strategy, applied := r.resolveStrategy(desc, profile, category, overrides)

	slog.Debug("Routed document",
		"object_key", objectKey,
		"category", category,
		"strategy", strategy.Name,
		"reason", strategy.Reason,
	)

	return &Analysis{
		Strategy:         strategy,
		Category:         category,
		OverridesApplied: applied,
		Profile:          profile,
		Body:             body,
		RequestOverride:  desc.RequestOverride,
	}, nil
}

// Categorize classifies a profile. Evaluation order is fixed; the first
// matching rule wins.
func (r *Router) Categorize(profile *Profile) Category {
	c := r.config
	switch {
	case profile.PageCount == 0:
		return CategoryUnknown
	case profile.ScannedPageRatio >= c.ScannedPageRatioThreshold:
		return CategoryScanned
	case profile.TablePageRatio >= c.TablePageRatioThreshold:
		return CategoryTableHeavy
	case profile.FormPageRatio >= c.FormPageRatioThreshold:
		return CategoryFormHeavy
	case profile.PageCount >= c.Thresholds.LongFormThreshold:
		return CategoryLongForm
	case profile.PageCount <= c.Thresholds.ShortFormThreshold && profile.AverageTextDensity >= c.ShortFormMinTextDensity:
		return CategoryShortForm
	default:
		return CategoryUnknown
	}
}

// resolveStrategy applies the override layers in precedence order: request
// override, pattern override, static mode, page-cap redirect, category
// default.
func (r *Router) resolveStrategy(desc *Descriptor, profile *Profile, category Category, overrides *OverrideSet) (Strategy, []string) {
	c := r.config

	if desc.RequestOverride != "" {
		return Strategy{
			Name:   desc.RequestOverride,
			Reason: ReasonRequestOverride,
		}, []string{"request"}
	}

	if match := overrides.Match(desc.ObjectKey); match != nil {
		return Strategy{
			Name:     match.Strategy.Name,
			Model:    match.Strategy.Model,
			MaxPages: match.Strategy.MaxPages,
			Reason:   ReasonConfigPatternOverride,
		}, []string{"pattern:" + match.Pattern.String()}
	}

	if c.Mode == ModeStatic && c.StaticStrategy != nil && c.StaticStrategy.Name != "" {
		return Strategy{
			Name:     c.StaticStrategy.Name,
			Model:    c.StaticStrategy.Model,
			MaxPages: c.StaticStrategy.MaxPages,
			Reason:   ReasonConfigStatic,
		}, []string{"static_config"}
	}

	if pageCap := c.Thresholds.maxPagesFor(category); pageCap > 0 && profile.PageCount > pageCap {
		fallback := c.fallback()
		return Strategy{
			Name:     fallback.Name,
			Model:    fallback.Model,
			MaxPages: pageCap,
			Reason:   ReasonPageThresholdExceeded,
		}, []string{"threshold_redirect"}
	}

	chosen, ok := c.DefaultStrategies[category]
	if !ok {
		chosen = c.DefaultStrategies[CategoryUnknown]
	}
	return Strategy{
		Name:     chosen.Name,
		Model:    chosen.Model,
		MaxPages: chosen.MaxPages,
		Reason:   ReasonCategoryDefault,
	}, []string{"category_default"}
}
