package extract

import (
	"bytes"
	"testing"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

func htmlNode(markup string) *whisper.Node {
	return whisper.NewRoot(&whisper.File{
		Name:    "page.html",
		Content: []byte(markup),
	}, nil)
}

func extractHTML(t *testing.T, markup string) []*whisper.Node {
	t.Helper()
	children, err := HTMLExtractor{}.Extract(htmlNode(markup))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return children
}

func childURLs(children []*whisper.Node) []string {
	var urls []string
	for _, c := range children {
		if d := c.DataPayload(); d != nil && d.Type == whisper.DataURL {
			urls = append(urls, string(d.Content))
		}
	}
	return urls
}

func TestHTMLExtractor_TextLinkAndInlineImage(t *testing.T) {
	children := extractHTML(t,
		`<p>hi <a href='https://x'>x</a></p><img src='data:image/png;base64,AAAA'>`)

	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}

	text := children[0].DataPayload()
	if text == nil || text.Type != whisper.DataText {
		t.Fatal("first child must be the visible text")
	}
	if string(text.Content) != "hi x" {
		t.Errorf("visible text %q, want %q", text.Content, "hi x")
	}

	url := children[1].DataPayload()
	if url == nil || url.Type != whisper.DataURL || string(url.Content) != "https://x" {
		t.Errorf("second child should be URL https://x, got %+v", url)
	}

	img := children[2].FilePayload()
	if img == nil {
		t.Fatal("third child must be the decoded inline image")
	}
	if !bytes.Equal(img.Content, []byte{0, 0, 0}) {
		t.Errorf("decoded image bytes %v", img.Content)
	}
}

func TestHTMLExtractor_URLSources(t *testing.T) {
	markup := `<html><head>
<meta http-equiv="refresh" content="5;url=https://redirect.test/page">
<meta property="og:image" content="https://og.test/img.png">
<style>body { background: url('https://css.test/bg.png'); }</style>
</head><body>
<img srcset="https://srcset.test/1.png 1x, https://srcset.test/2.png 2x">
<div data-src="https://lazy.test/load.js"></div>
<span style="background-image: url(https://inline.test/i.png)">x</span>
<svg><image xlink:href="https://svg.test/pic.svg"/></svg>
<script src="https://script.test/app.js"></script>
<form action="https://form.test/submit"></form>
</body></html>`

	urls := childURLs(extractHTML(t, markup))
	want := []string{
		"https://redirect.test/page",
		"https://og.test/img.png",
		"https://css.test/bg.png",
		"https://srcset.test/1.png",
		"https://srcset.test/2.png",
		"https://lazy.test/load.js",
		"https://inline.test/i.png",
		"https://svg.test/pic.svg",
		"https://script.test/app.js",
		"https://form.test/submit",
	}
	seen := make(map[string]bool)
	for _, u := range urls {
		seen[u] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("url %s not discovered (got %v)", w, urls)
		}
	}
}

func TestHTMLExtractor_DeduplicatesURLs(t *testing.T) {
	urls := childURLs(extractHTML(t,
		`<a href="https://x.test">1</a><a href="https://x.test">2</a>`))
	if len(urls) != 1 {
		t.Errorf("expected 1 distinct url, got %v", urls)
	}
}

func TestHTMLExtractor_SkipsScriptAndStyleText(t *testing.T) {
	children := extractHTML(t,
		`<p>visible</p><script>var hidden = 1;</script><style>.x{}</style>`)
	text := children[0].DataPayload()
	if string(text.Content) != "visible" {
		t.Errorf("visible text %q", text.Content)
	}
}

func TestDecodeInlineImage(t *testing.T) {
	if got := decodeInlineImage("https://not.inline/img.png"); got != nil {
		t.Error("remote src must not decode")
	}
	if got := decodeInlineImage("data:image/png;base64,////"); !bytes.Equal(got, []byte{0xff, 0xff, 0xff}) {
		t.Errorf("unexpected decode: %v", got)
	}
	if got := decodeInlineImage("data:image/png;base64,%%%"); got != nil {
		t.Error("invalid base64 must be skipped")
	}
}
