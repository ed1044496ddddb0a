package extract

import (
	"regexp"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// urlPattern is left-anchored on the scheme and stops at whitespace,
// quotes, angle brackets, braces and CJK list separators.
var urlPattern = regexp.MustCompile(`https?://[^\s"'<>{}` + "，、" + `]+`)

// URLExtractor finds URLs in plain text and emits one URL data node per
// distinct match, in first-seen order.
type URLExtractor struct{}

func (URLExtractor) Name() string { return "url" }

func (URLExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	text := payloadText(node)
	var children []*whisper.Node
	for _, url := range FindURLs(text) {
		children = append(children, node.NewChild(&whisper.Data{
			Type:    whisper.DataURL,
			Content: []byte(url),
		}))
	}
	return children, nil
}

// FindURLs returns the distinct URLs in text, preserving the order of
// first occurrence.
func FindURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
	}
	return urls
}

// payloadText decodes either payload variant's bytes as UTF-8,
// best-effort.
func payloadText(node *whisper.Node) string {
	switch c := node.Content.(type) {
	case *whisper.File:
		return string(c.Content)
	case *whisper.Data:
		return string(c.Content)
	}
	return ""
}
