package documents

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// RenderHTML converts stored markdown to HTML. Raw HTML in the source is dropped.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
