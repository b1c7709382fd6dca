package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/payload"
)

const emailParser = "email"

// Email normalises parsed email payloads: the body becomes a text span,
// headers and extracted entities become fields, and attachments become
// canonical attachments, optionally carrying an already-transformed child
// document payload.
type Email struct{}

func NewEmail() *Email {
	return &Email{}
}

func (a *Email) Name() string {
	return emailParser
}

func (a *Email) Transform(p payload.Body, meta Meta) (*canonical.Document, error) {
	doc := newDocument(meta, metaMimeType(meta))
	if doc.MimeType == "" {
		doc.MimeType = "message/rfc822"
	}

	if body, ok := payload.String(p, "body", "body_text"); ok && body != "" {
		doc.TextSpans = append(doc.TextSpans, canonical.TextSpan{
			Content:           body,
			Confidence:        1.0,
			Provenance:        &canonical.Provenance{Parser: emailParser, Method: "body_text"},
			ConfidenceSignals: signal(emailParser, "body_text", 1.0),
		})
	}

	if headers, ok := payload.Map(p, "headers"); ok {
		for name, raw := range headers {
			value, ok := payload.String(headers, name)
			if !ok {
				value = fmt.Sprint(raw)
			}
			doc.Fields = append(doc.Fields, canonical.Field{
				Name:              name,
				Value:             &value,
				Confidence:        1.0,
				ValueType:         "header",
				Provenance:        &canonical.Provenance{Parser: emailParser, Method: "header"},
				ConfidenceSignals: signal(emailParser, "header", 1.0),
			})
		}
	}

	for _, entity := range payload.MapList(p, "entities") {
		name, _ := payload.String(entity, "name", "type")
		confidence := confidenceOr(entity, 1.0)
		field := canonical.Field{
			Name:              name,
			Confidence:        confidence,
			ValueType:         "entity",
			Provenance:        &canonical.Provenance{Parser: emailParser, Method: "entity"},
			ConfidenceSignals: signal(emailParser, "entity", confidence),
		}
		if value, ok := payload.String(entity, "value", "content"); ok {
			field.Value = &value
		}
		doc.Fields = append(doc.Fields, field)
	}

	for i, attachment := range payload.MapList(p, "attachments") {
		doc.Attachments = append(doc.Attachments, emailAttachment(attachment, meta, i))
	}

	doc.PageSegments = []canonical.PageSegment{{PageNumber: 1, Parser: emailParser, Method: "body_text"}}
	return doc, nil
}

func emailAttachment(row payload.Body, meta Meta, index int) canonical.Attachment {
	fileName, _ := payload.String(row, "file_name", "filename", "name")
	attachmentID, ok := payload.String(row, "attachment_id", "id")
	if !ok || attachmentID == "" {
		attachmentID = fmt.Sprintf("%s::attachment-%d", meta.DocumentID, index+1)
	}
	attachment := canonical.Attachment{
		AttachmentID: attachmentID,
		FileName:     fileName,
		SourceURI:    fmt.Sprintf("%s#attachment/%s", meta.SourceURI, fileName),
	}
	if mimeType, ok := payload.String(row, "mime_type", "content_type"); ok {
		attachment.MimeType = mimeType
	}
	if checksum, ok := payload.String(row, "checksum"); ok {
		attachment.Checksum = checksum
	}
	if child, ok := payload.Map(row, "document"); ok {
		if raw, err := remarshalDocument(child); err == nil {
			attachment.Document = raw
		}
	}
	return attachment
}

// remarshalDocument converts an embedded canonical-document payload back
// into the typed schema.
func remarshalDocument(child payload.Body) (*canonical.Document, error) {
	raw, err := json.Marshal(child)
	if err != nil {
		return nil, err
	}
	return canonical.Decode(raw)
}
