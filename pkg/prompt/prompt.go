// Package prompt renders the illustration prompt for one planned scene.
package prompt

import (
	"strings"

	"storywoven/pkg/inference"
)

// Section is one ordered block of the rendered prompt.
type Section struct {
	Title string
	Body  string
}

// Prompt is an assembled illustration request: ordered text sections plus
// image attachments, protagonist reference first.
type Prompt struct {
	Sections    []Section
	Attachments []inference.Attachment
}

// Render flattens the sections into the single text block sent to the image
// model. Untitled sections render bare; titled ones get a header line.
func (p *Prompt) Render() string {
	var b strings.Builder
	for i, s := range p.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Title != "" {
			b.WriteString(s.Title)
			b.WriteString(":\n")
		}
		b.WriteString(s.Body)
	}
	return b.String()
}
