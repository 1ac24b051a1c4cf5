// Package formdata builds multipart/form-data bodies with mixed text and file parts.
package formdata

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Builder accumulates parts in order. It is not safe for concurrent use.
type Builder struct {
	buf    bytes.Buffer
	w      *multipart.Writer
	closed bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.w = multipart.NewWriter(&b.buf)
	return b
}

// AddText appends a plain form field.
func (b *Builder) AddText(name, value string) error {
	if b.closed {
		return fmt.Errorf("formdata: add %q after close", name)
	}
	if err := b.w.WriteField(name, value); err != nil {
		return fmt.Errorf("formdata: write field %q: %w", name, err)
	}
	return nil
}

// AddFile appends a file part carrying the given filename and content type.
func (b *Builder) AddFile(name, filename, mimeType string, data []byte) error {
	if b.closed {
		return fmt.Errorf("formdata: add %q after close", name)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(filename)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)

	part, err := b.w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("formdata: create part %q: %w", name, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("formdata: write part %q: %w", name, err)
	}
	return nil
}

// Finish closes the body and returns it with its Content-Type header value.
func (b *Builder) Finish() (*bytes.Buffer, string, error) {
	if !b.closed {
		if err := b.w.Close(); err != nil {
			return nil, "", fmt.Errorf("formdata: close: %w", err)
		}
		b.closed = true
	}
	return &b.buf, b.w.FormDataContentType(), nil
}
