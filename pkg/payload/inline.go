package payload

import "encoding/base64"

// inlineKeys are the body keys producers use for embedded document content.
var inlineKeys = []string{"documentBytes", "document_bytes", "documentContent", "document_content", "payload"}

// InlineContent extracts document bytes embedded in a message body. It checks
// the well-known top-level keys first, then documentMetadata.inlineContent.
// String values are base64-decoded when they decode cleanly; otherwise the
// string's UTF-8 bytes are the content.
func InlineContent(body Body) []byte {
	if v, ok := Lookup(body, inlineKeys...); ok {
		if content := decodeInline(v); len(content) > 0 {
			return content
		}
	}
	if meta, ok := Map(body, "documentMetadata"); ok {
		if v, ok := Lookup(meta, "inlineContent", "inline_content"); ok {
			return decodeInline(v)
		}
	}
	return nil
}

func decodeInline(v any) []byte {
	switch content := v.(type) {
	case []byte:
		return content
	case string:
		if content == "" {
			return nil
		}
		if decoded, err := base64.StdEncoding.DecodeString(content); err == nil {
			return decoded
		}
		if decoded, err := base64.RawStdEncoding.DecodeString(content); err == nil {
			return decoded
		}
		return []byte(content)
	}
	return nil
}
