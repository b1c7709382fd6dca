// Package metadata persists per-message ingestion records: a flat base row
// projecting the routing analysis, and a routing row carrying the full
// analysis as a JSON blob.
package metadata

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/docflowhq/docflow/pkg/router"
)

// Row is one record, keyed by column name.
type Row map[string]any

// Sink appends ingestion records. Implementations are append-only.
type Sink interface {
	AppendBase(ctx context.Context, rows []Row) error
	AppendRouting(ctx context.Context, rows []Row) error
}

// MessageInfo is the queue-level context recorded with every row.
type MessageInfo struct {
	SourcePath string
	MessageID  string
	SNSTopic   string
	QueueURL   string
}

// BaseRow projects a routing analysis onto the flat metadata schema.
func BaseRow(info MessageInfo, analysis *router.Analysis) Row {
	row := Row{
		"source_path": info.SourcePath,
		"file_type":   fileType(info.SourcePath),
		"message_id":  info.MessageID,
		"sns_topic":   info.SNSTopic,
		"queue_url":   info.QueueURL,
	}
	if analysis == nil {
		return row
	}

	profile := analysis.Profile
	row["mime_type"] = profile.MimeType
	row["page_count"] = profile.PageCount
	row["average_text_density"] = profile.AverageTextDensity
	row["average_image_density"] = profile.AverageImageDensity
	row["average_table_density"] = profile.AverageTableDensity
	row["table_page_ratio"] = profile.TablePageRatio
	row["scanned_page_ratio"] = profile.ScannedPageRatio
	row["form_page_ratio"] = profile.FormPageRatio
	row["checkbox_page_ratio"] = profile.CheckboxPageRatio
	row["radio_page_ratio"] = profile.RadioPageRatio
	row["total_tables"] = profile.TotalTables
	row["total_images"] = profile.TotalImages
	row["total_characters"] = profile.TotalCharacters
	row["category"] = string(analysis.Category)
	row["strategy_name"] = analysis.Strategy.Name
	row["strategy_model"] = analysis.Strategy.Model
	row["strategy_max_pages"] = analysis.Strategy.MaxPages
	row["strategy_reason"] = analysis.Strategy.Reason
	row["overrides_applied"] = strings.Join(analysis.OverridesApplied, ",")
	row["request_override"] = analysis.RequestOverride
	if raw, err := json.Marshal(profile.Pages); err == nil {
		row["page_metrics"] = string(raw)
	}
	return row
}

// RoutingRow carries the full analysis as a JSON blob.
func RoutingRow(info MessageInfo, analysis *router.Analysis) Row {
	row := Row{
		"source_path": info.SourcePath,
	}
	if raw, err := json.Marshal(analysis); err == nil {
		row["routing"] = string(raw)
	}
	return row
}

func fileType(sourcePath string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(sourcePath), "."))
}
