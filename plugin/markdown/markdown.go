// Package markdown renders assistant replies into the limited HTML dialect
// chat surfaces accept (b/i/a/code tags, no block elements).
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

// annotationPattern matches the source-annotation markers the assistant
// service embeds into replies, e.g. 【12:3†source】.
var annotationPattern = regexp.MustCompile(`【.*?】`)

// Service renders assistant reply text.
type Service interface {
	// RenderChatHTML converts the assistant's markdown reply into
	// chat-safe HTML.
	RenderChatHTML(text string) (string, error)
}

type service struct {
	md               goldmark.Markdown
	stripAnnotations bool
}

// Option configures the markdown service.
type Option func(*service)

// WithAnnotationStripping removes the assistant's source-annotation
// markers before rendering.
func WithAnnotationStripping() Option {
	return func(s *service) {
		s.stripAnnotations = true
	}
}

// NewService creates a markdown rendering service.
func NewService(opts ...Option) Service {
	s := &service{
		md: goldmark.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) RenderChatHTML(text string) (string, error) {
	if s.stripAnnotations {
		text = annotationPattern.ReplaceAllString(text, "")
	}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return toChatHTML(buf.String()), nil
}

// toChatHTML rewrites goldmark's block-level HTML into the inline tags
// chat transports accept.
func toChatHTML(html string) string {
	replacer := strings.NewReplacer(
		"<strong>", "<b>",
		"</strong>", "</b>",
		"<em>", "<i>",
		"</em>", "</i>",
		"<p>", "",
		"</p>", "\n",
		"<ul>", "",
		"</ul>", "",
		"<ol>", "",
		"</ol>", "",
		"<li>", "• ",
		"</li>", "",
	)
	out := replacer.Replace(html)

	// Headings carry no meaning in a chat bubble; keep their text bold.
	for level := 1; level <= 6; level++ {
		out = strings.ReplaceAll(out, fmt.Sprintf("<h%d>", level), "<b>")
		out = strings.ReplaceAll(out, fmt.Sprintf("</h%d>", level), "</b>")
	}

	return strings.TrimSpace(out)
}
