package router

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/docflowhq/docflow/pkg/payload"
)

// Descriptor identifies a document to route: where it lives, what the queue
// message said about it, and what it looks like. Lifetime is a single route
// call.
type Descriptor struct {
	Bucket          string
	ObjectKey       string
	Body            payload.Body
	MimeType        string
	RequestOverride string
}

// NewDescriptor builds a descriptor from a decoded message body. The bucket
// comes from the S3 notification shape when present; the MIME type is
// sniffed per SniffMimeType; the request override is read from the
// configured flag at the top level or under routing/overrides sub-objects.
func NewDescriptor(body payload.Body, objectKey, overrideFlag string) *Descriptor {
	desc := &Descriptor{
		ObjectKey: objectKey,
		Body:      body,
	}
	if bucket, ok := payload.DigString(body, "s3", "bucket", "name"); ok {
		desc.Bucket = bucket
	}
	desc.MimeType = SniffMimeType(body, objectKey)
	if overrideFlag != "" {
		if v, ok := payload.String(body, overrideFlag); ok && v != "" {
			desc.RequestOverride = v
		} else if v, ok := payload.DigString(body, "routing", overrideFlag); ok && v != "" {
			desc.RequestOverride = v
		} else if v, ok := payload.DigString(body, "overrides", overrideFlag); ok && v != "" {
			desc.RequestOverride = v
		}
	}
	return desc
}

// SniffMimeType determines a document's MIME type. Precedence: explicit
// documentMetadata.contentType, magic bytes of any inline payload, file
// extension, application/octet-stream. Deterministic for identical inputs.
func SniffMimeType(body payload.Body, objectKey string) string {
	if meta, ok := payload.Map(body, "documentMetadata"); ok {
		if ct, ok := payload.String(meta, "contentType", "mimeType"); ok && ct != "" {
			return ct
		}
	}
	if mime := sniffMagic(payload.InlineContent(body)); mime != "" {
		return mime
	}
	if mime := mimeFromExtension(objectKey); mime != "" {
		return mime
	}
	return "application/octet-stream"
}

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0}

func sniffMagic(content []byte) string {
	if len(content) < 4 {
		return ""
	}
	switch {
	case bytes.HasPrefix(content, []byte("%PDF-")):
		return "application/pdf"
	case bytes.HasPrefix(content, oleSignature):
		return "application/msword"
	case bytes.HasPrefix(content, []byte("PK\x03\x04")):
		return sniffZip(content)
	}

	head := strings.ToLower(string(content[:min(len(content), 256)]))
	trimmed := strings.TrimLeft(head, " \t\r\n")
	switch {
	case strings.HasPrefix(trimmed, "<!doctype html"), strings.HasPrefix(trimmed, "<html"):
		return "text/html"
	case strings.HasPrefix(trimmed, "<?xml"):
		return "application/xml"
	case strings.HasPrefix(trimmed, "from:"), strings.HasPrefix(trimmed, "received:"):
		return "message/rfc822"
	}

	if asciiHeavy(content) {
		return "text/plain"
	}
	return ""
}

// sniffZip distinguishes the OOXML family by the package directory names
// embedded in the archive. The entry names sit in the local file headers, so
// a substring scan over the prefix is enough.
func sniffZip(content []byte) string {
	window := content[:min(len(content), 4096)]
	switch {
	case bytes.Contains(window, []byte("word/")):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case bytes.Contains(window, []byte("ppt/")):
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case bytes.Contains(window, []byte("xl/")):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/zip"
}

// asciiHeavy reports whether more than 90% of the first 128 bytes are
// printable ASCII or common whitespace.
func asciiHeavy(content []byte) bool {
	sample := content[:min(len(content), 128)]
	if len(sample) == 0 {
		return false
	}
	printable := 0
	for _, b := range sample {
		if b >= 0x20 && b < 0x7F || b == '\n' || b == '\r' || b == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) > 0.9
}

var extensionMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".html": "text/html",
	".htm":  "text/html",
	".xml":  "application/xml",
	".eml":  "message/rfc822",
	".msg":  "application/vnd.ms-outlook",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

func mimeFromExtension(objectKey string) string {
	return extensionMimeTypes[strings.ToLower(filepath.Ext(objectKey))]
}
