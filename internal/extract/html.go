package extract

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// Attributes that carry URLs, per tag.
var htmlURLAttrs = map[string][]string{
	"a":      {"href"},
	"img":    {"src", "srcset"},
	"script": {"src", "data-main"},
	"link":   {"href"},
	"iframe": {"src"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
	"track":  {"src"},
	"form":   {"action"},
	"input":  {"src"},
	"object": {"data"},
	"embed":  {"src"},
}

var (
	cssURLPattern     = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)
	metaRefreshTarget = regexp.MustCompile(`(?i)url=([^;]+)`)
)

// HTMLExtractor parses a document and emits its visible text, every URL
// it references, and a file node per base64 inline image.
type HTMLExtractor struct{}

func (HTMLExtractor) Name() string { return "html" }

func (HTMLExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	doc, err := html.Parse(strings.NewReader(payloadText(node)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	text, urls, images := walkHTML(doc)

	children := []*whisper.Node{
		node.NewChild(&whisper.Data{Type: whisper.DataText, Content: []byte(text)}),
	}
	for _, url := range urls {
		children = append(children, node.NewChild(&whisper.Data{
			Type:    whisper.DataURL,
			Content: []byte(url),
		}))
	}
	for _, img := range images {
		children = append(children, node.NewChild(&whisper.File{Content: img}))
	}
	return children, nil
}

// walkHTML gathers visible text, referenced URLs (deduplicated, in
// document order) and decoded base64 inline images in a single pass.
func walkHTML(doc *html.Node) (string, []string, [][]byte) {
	var words []string
	var urls []string
	var images [][]byte
	seen := make(map[string]bool)

	addURL := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") || seen[raw] {
			return
		}
		seen[raw] = true
		urls = append(urls, raw)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			words = append(words, strings.Fields(n.Data)...)
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				if n.Data == "style" {
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						for _, m := range cssURLPattern.FindAllStringSubmatch(c.Data, -1) {
							addURL(m[1])
						}
					}
				}
				collectElementURLs(n, addURL)
				return
			case "meta":
				collectMetaURLs(n, addURL)
			case "image":
				// SVG <image> references.
				addURL(attrValue(n, "xlink:href"))
				addURL(attrValue(n, "href"))
			case "img":
				if img := decodeInlineImage(attrValue(n, "src")); img != nil {
					images = append(images, img)
				}
			}
			collectElementURLs(n, addURL)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(words, " "), urls, images
}

func collectElementURLs(n *html.Node, addURL func(string)) {
	for _, attr := range htmlURLAttrs[n.Data] {
		value := attrValue(n, attr)
		if value == "" {
			continue
		}
		if attr == "srcset" {
			for _, part := range strings.Split(value, ",") {
				fields := strings.Fields(part)
				if len(fields) > 0 {
					addURL(fields[0])
				}
			}
			continue
		}
		addURL(value)
	}

	// Lazy-loaded sources on any tag.
	addURL(attrValue(n, "data-src"))

	// url(...) inside inline styles.
	if style := attrValue(n, "style"); style != "" {
		for _, m := range cssURLPattern.FindAllStringSubmatch(style, -1) {
			addURL(m[1])
		}
	}
}

func collectMetaURLs(n *html.Node, addURL func(string)) {
	if strings.EqualFold(attrValue(n, "property"), "og:image") {
		addURL(attrValue(n, "content"))
	}
	if strings.EqualFold(attrValue(n, "http-equiv"), "refresh") {
		if m := metaRefreshTarget.FindStringSubmatch(attrValue(n, "content")); m != nil {
			addURL(m[1])
		}
	}
}

// decodeInlineImage decodes an <img src="data:*;base64,..."> source,
// or returns nil when src is not an inline image.
func decodeInlineImage(src string) []byte {
	if !strings.HasPrefix(src, "data:") {
		return nil
	}
	_, rest, ok := strings.Cut(src, ";")
	if !ok {
		return nil
	}
	encoding, payload, ok := strings.Cut(rest, ",")
	if !ok || encoding != "base64" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}
	return decoded
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}
