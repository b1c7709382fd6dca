// Package mimetree parses RFC 822 messages into a flat list of decoded
// parts. The layout analyser consumes the text and HTML bodies; the
// workflow consumes the attachments.
package mimetree

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Part is one leaf of a message's MIME tree, with its transfer encoding
// already undone.
type Part struct {
	MediaType  string
	FileName   string
	Content    []byte
	Attachment bool
}

// Message is a parsed email: its headers and the decoded leaf parts in
// document order.
type Message struct {
	Headers map[string]string
	Parts   []Part
}

// Bodies returns the non-attachment parts matching any of the given media
// types (e.g. "text/plain"). Empty filter returns all bodies.
func (m *Message) Bodies(mediaTypes ...string) []Part {
	var out []Part
	for _, part := range m.Parts {
		if part.Attachment {
			continue
		}
		if len(mediaTypes) == 0 {
			out = append(out, part)
			continue
		}
		for _, mt := range mediaTypes {
			if part.MediaType == mt {
				out = append(out, part)
				break
			}
		}
	}
	return out
}

// Attachments returns the parts flagged as attachments.
func (m *Message) Attachments() []Part {
	var out []Part
	for _, part := range m.Parts {
		if part.Attachment {
			out = append(out, part)
		}
	}
	return out
}

// Parse decodes a raw RFC 822 message. Multipart trees are walked
// recursively; unparseable sub-parts are skipped rather than failing the
// whole message.
func Parse(raw []byte) (*Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	headers := make(map[string]string, len(msg.Header))
	for name := range msg.Header {
		headers[name] = msg.Header.Get(name)
	}

	tree := &Message{Headers: headers}
	contentType := msg.Header.Get("Content-Type")
	encoding := msg.Header.Get("Content-Transfer-Encoding")
	disposition := msg.Header.Get("Content-Disposition")
	collectParts(tree, contentType, encoding, disposition, msg.Body, 0)
	return tree, nil
}

// maxNesting bounds multipart recursion; real mail rarely nests past 3.
const maxNesting = 10

func collectParts(tree *Message, contentType, encoding, disposition string, body io.Reader, depth int) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") && depth < maxNesting {
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		reader := multipart.NewReader(body, boundary)
		for {
			part, err := reader.NextPart()
			if err != nil {
				return
			}
			collectParts(tree,
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part.Header.Get("Content-Disposition"),
				part, depth+1)
		}
	}

	content, err := io.ReadAll(decodeTransfer(body, encoding))
	if err != nil {
		return
	}

	fileName, attachment := partDisposition(disposition, contentType)
	tree.Parts = append(tree.Parts, Part{
		MediaType:  mediaType,
		FileName:   fileName,
		Content:    content,
		Attachment: attachment,
	})
}

func decodeTransfer(body io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newLineStripper(body))
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}

// partDisposition decides whether a part is an attachment and extracts its
// filename from either the disposition or the content-type name parameter.
func partDisposition(disposition, contentType string) (fileName string, attachment bool) {
	if disposition != "" {
		if kind, params, err := mime.ParseMediaType(disposition); err == nil {
			fileName = params["filename"]
			attachment = kind == "attachment" || (kind == "inline" && fileName != "")
		}
	}
	if fileName == "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if name := params["name"]; name != "" {
				fileName = name
				attachment = true
			}
		}
	}
	return fileName, attachment
}

// lineStripper removes CR/LF so base64 bodies wrapped at 76 columns decode
// cleanly.
type lineStripper struct {
	r io.Reader
}

func newLineStripper(r io.Reader) io.Reader {
	return &lineStripper{r: r}
}

func (s *lineStripper) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	kept := 0
	for _, b := range p[:n] {
		if b == '\r' || b == '\n' {
			continue
		}
		p[kept] = b
		kept++
	}
	return kept, err
}
