package whisper

import "testing"

func TestClassifyFile_ExtensionWinsOverMime(t *testing.T) {
	// A docx is a zip container; the extension must route it to the
	// word pipeline anyway.
	if got := ClassifyFile("application/zip", "docx"); got != FlavorDocx {
		t.Errorf("expected DOCX, got %s", got)
	}
	if got := ClassifyFile("application/zip", ""); got != FlavorCompressed {
		t.Errorf("expected COMPRESSED_FILE, got %s", got)
	}
}

func TestClassifyFile_MimeFallback(t *testing.T) {
	cases := []struct {
		mime string
		ext  string
		want Flavor
	}{
		{"text/plain", "", FlavorTextPlain},
		{"text/html", "", FlavorTextHTML},
		{"image/png", "", FlavorImage},
		{"image/x-obscure-format", "", FlavorImage},
		{"application/pdf", "", FlavorPDF},
		{"message/rfc822", "", FlavorEmail},
		{"application/x-rar-compressed", "", FlavorCompressed},
		{"application/octet-stream", "", FlavorOther},
		{"application/octet-stream", "bin", FlavorOther},
	}
	for _, c := range cases {
		if got := ClassifyFile(c.mime, c.ext); got != c.want {
			t.Errorf("ClassifyFile(%q, %q) = %s, want %s", c.mime, c.ext, got, c.want)
		}
	}
}

func TestClassifyData(t *testing.T) {
	for _, dt := range []string{DataText, DataOCR, DataQRCode} {
		if got := ClassifyData(dt); got != FlavorTextPlain {
			t.Errorf("ClassifyData(%q) = %s, want TEXT_PLAIN", dt, got)
		}
	}
	// URL fragments are leaves; feeding them back into the text
	// pipeline would re-extract themselves forever.
	if got := ClassifyData(DataURL); got != FlavorOther {
		t.Errorf("ClassifyData(URL) = %s, want OTHER", got)
	}
	if got := ClassifyData(DataEmailHeader); got != FlavorOther {
		t.Errorf("ClassifyData(EMAIL_HEADER) = %s, want OTHER", got)
	}
}

func TestDetectMIME(t *testing.T) {
	if got := DetectMIME([]byte("plain text here")); got != "text/plain" {
		t.Errorf("expected text/plain, got %q", got)
	}
}

func TestFileExtension(t *testing.T) {
	cases := []struct{ name, want string }{
		{"report.PDF", "pdf"},
		{"archive.tar.gz", "gz"},
		{"noext", ""},
		{"trailing.", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := FileExtension(c.name); got != c.want {
			t.Errorf("FileExtension(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}
