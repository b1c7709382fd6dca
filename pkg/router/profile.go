package router

import "github.com/docflowhq/docflow/pkg/canonical"

// PageMetrics is the layout measurement for a single page. Indices are
// 0-based; densities are clamped to [0,1] when a profile is built.
type PageMetrics struct {
	PageIndex        int     `json:"page_index"`
	TextDensity      float64 `json:"text_density"`
	ImageDensity     float64 `json:"image_density"`
	TableDensity     float64 `json:"table_density"`
	CharCount        int     `json:"char_count"`
	TableCount       int     `json:"table_count"`
	ImageCount       int     `json:"image_count"`
	CheckboxCount    int     `json:"checkbox_count"`
	RadioButtonCount int     `json:"radio_button_count"`
}

// Profile aggregates per-page layout metrics for one document. It lives for
// a single route call; the emitted Analysis carries a copy.
type Profile struct {
	ObjectKey string        `json:"object_key"`
	Bucket    string        `json:"bucket,omitempty"`
	MimeType  string        `json:"mime_type"`
	PageCount int           `json:"page_count"`
	Pages     []PageMetrics `json:"pages"`

	AverageTextDensity  float64 `json:"average_text_density"`
	AverageImageDensity float64 `json:"average_image_density"`
	AverageTableDensity float64 `json:"average_table_density"`

	TablePageRatio    float64 `json:"table_page_ratio"`
	ScannedPageRatio  float64 `json:"scanned_page_ratio"`
	CheckboxPageRatio float64 `json:"checkbox_page_ratio"`
	RadioPageRatio    float64 `json:"radio_page_ratio"`
	FormPageRatio     float64 `json:"form_page_ratio"`

	TotalTables     int `json:"total_tables"`
	TotalImages     int `json:"total_images"`
	TotalCharacters int `json:"total_characters"`
}

// Page classification boundaries used during aggregation. A page counts as
// a table page on density or on any detected table region, as scanned on
// image dominance, and as a form page on any widget.
const (
	tablePageDensity   = 0.5
	scannedPageDensity = 0.6
	scannedPageImages  = 2
)

// BuildProfile aggregates page metrics into a Profile, clamping every
// density and computing the ratio and total fields. An empty page list
// yields a zero-valued profile with PageCount 0.
func BuildProfile(objectKey, bucket, mimeType string, pages []PageMetrics) *Profile {
	profile := &Profile{
		ObjectKey: objectKey,
		Bucket:    bucket,
		MimeType:  mimeType,
		PageCount: len(pages),
		Pages:     make([]PageMetrics, 0, len(pages)),
	}
	if len(pages) == 0 {
		return profile
	}

	var tablePages, scannedPages, checkboxPages, radioPages, formPages int
	for i, page := range pages {
		page.TextDensity = canonical.Clamp01(page.TextDensity)
		page.ImageDensity = canonical.Clamp01(page.ImageDensity)
		page.TableDensity = canonical.Clamp01(page.TableDensity)
		if page.PageIndex == 0 && i > 0 {
			page.PageIndex = i
		}
		profile.Pages = append(profile.Pages, page)

		profile.AverageTextDensity += page.TextDensity
		profile.AverageImageDensity += page.ImageDensity
		profile.AverageTableDensity += page.TableDensity
		profile.TotalTables += page.TableCount
		profile.TotalImages += page.ImageCount
		profile.TotalCharacters += page.CharCount

		if page.TableDensity >= tablePageDensity || page.TableCount > 0 {
			tablePages++
		}
		if page.ImageDensity >= scannedPageDensity || page.ImageCount > scannedPageImages {
			scannedPages++
		}
		if page.CheckboxCount > 0 {
			checkboxPages++
		}
		if page.RadioButtonCount > 0 {
			radioPages++
		}
		if page.CheckboxCount > 0 || page.RadioButtonCount > 0 {
			formPages++
		}
	}

	n := float64(len(pages))
	profile.AverageTextDensity /= n
	profile.AverageImageDensity /= n
	profile.AverageTableDensity /= n
	profile.TablePageRatio = float64(tablePages) / n
	profile.ScannedPageRatio = float64(scannedPages) / n
	profile.CheckboxPageRatio = float64(checkboxPages) / n
	profile.RadioPageRatio = float64(radioPages) / n
	profile.FormPageRatio = float64(formPages) / n
	return profile
}
