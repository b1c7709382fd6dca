// Package overrides loads parser-strategy pattern overrides from layered
// sources: a secret payload, a configured override table, and an
// environment variable. Loading is best-effort; malformed entries are
// dropped with a warning and the provider never fails an ingestion cycle.
package overrides

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"regexp"

	"github.com/docflowhq/docflow/pkg/router"
	"github.com/docflowhq/docflow/pkg/secrets"
)

// EnvVar is the environment variable holding the lowest-priority override
// payload.
const EnvVar = "PARSER_STRATEGY_OVERRIDES"

// Entry is one override rule as configured, before regex compilation.
type Entry struct {
	Pattern  string `json:"pattern"`
	Strategy string `json:"strategy"`
	Model    string `json:"model,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
}

// Table is a queryable store of override entries, e.g. the DynamoDB
// override table.
type Table interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// Provider yields a fresh override set. Implementations never return an
// error; a source that cannot be read contributes nothing.
type Provider interface {
	Overrides(ctx context.Context) *router.OverrideSet
}

// Static always returns the same set. Useful for tests and the one-shot
// route command.
type Static struct {
	Set *router.OverrideSet
}

func (s *Static) Overrides(context.Context) *router.OverrideSet {
	return s.Set
}

// Configured concatenates overrides from the secret store, the override
// table, and the environment, in that order.
type Configured struct {
	source      secrets.Source
	secretScope string
	secretKey   string
	table       Table
	envVar      string
}

func NewConfigured(source secrets.Source, secretScope, secretKey string, table Table) *Configured {
	return &Configured{
		source:      source,
		secretScope: secretScope,
		secretKey:   secretKey,
		table:       table,
		envVar:      EnvVar,
	}
}

func (p *Configured) Overrides(ctx context.Context) *router.OverrideSet {
	var entries []Entry

	if p.source != nil && p.secretKey != "" {
		value, err := p.source.Get(ctx, p.secretScope, p.secretKey)
		switch {
		case err != nil:
			slog.Warn("Could not read strategy override secret", "scope", p.secretScope, "key", p.secretKey, "error", err)
		case value != "":
			entries = append(entries, ParsePayload([]byte(value))...)
		}
	}

	if p.table != nil {
		tableEntries, err := p.table.Entries(ctx)
		if err != nil {
			slog.Warn("Could not read override table", "error", err)
		} else {
			entries = append(entries, tableEntries...)
		}
	}

	if raw := os.Getenv(p.envVar); raw != "" {
		entries = append(entries, ParsePayload([]byte(raw))...)
	}

	return Compile(entries)
}

// ParsePayload decodes an override payload, which may be a JSON array of
// entries, a single entry object, or {"pattern_overrides": [...]}.
// Malformed payloads yield nothing.
func ParsePayload(raw []byte) []Entry {
	var list []Entry
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var wrapped struct {
		PatternOverrides []Entry `json:"pattern_overrides"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.PatternOverrides) > 0 {
		return wrapped.PatternOverrides
	}

	var single Entry
	if err := json.Unmarshal(raw, &single); err == nil && (single.Pattern != "" || single.Strategy != "") {
		return []Entry{single}
	}

	slog.Warn("Dropping unparseable override payload", "payload_bytes", len(raw))
	return nil
}

// Compile builds an ordered override set, dropping entries with a missing
// pattern or strategy or an invalid regex.
func Compile(entries []Entry) *router.OverrideSet {
	set := &router.OverrideSet{}
	for _, entry := range entries {
		if entry.Pattern == "" || entry.Strategy == "" {
			slog.Warn("Dropping override entry missing pattern or strategy", "pattern", entry.Pattern, "strategy", entry.Strategy)
			continue
		}
		re, err := regexp.Compile(entry.Pattern)
		if err != nil {
			slog.Warn("Dropping override entry with invalid regex", "pattern", entry.Pattern, "error", err)
			continue
		}
		set.Overrides = append(set.Overrides, router.PatternOverride{
			Pattern: re,
			Strategy: router.StrategyConfig{
				Name:     entry.Strategy,
				Model:    entry.Model,
				MaxPages: entry.MaxPages,
			},
		})
	}
	return set
}
