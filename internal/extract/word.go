package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fumiama/go-docx"
	"github.com/richardlehane/mscfb"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

const (
	// Paragraph cap per estimated page.
	paragraphsPerPage = 20

	docConvertTimeout = 30 * time.Second
)

// OLE ObjectType prefixes mapped to the extension of the embedded
// native payload. Unknown prefixes are skipped.
var oleObjectExtensions = []struct {
	prefix string
	ext    string
}{
	{"AcroExch.Document", ".pdf"},
	{"Excel.Sheet", ".xlsx"},
	{"PowerPoint.Show", ".pptx"},
	{"Word.Document.12", ".docx"},
	{"Word.Document.8", ".doc"},
	{"Package", ""},
}

// WordExtractor handles DOC and DOCX payloads: paragraph text up to the
// inherited page limit, media members, and embedded OLE objects. Legacy
// DOC input is converted through LibreOffice first.
type WordExtractor struct{}

func (WordExtractor) Name() string { return "word" }

func (WordExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	file := node.FilePayload()
	if file == nil {
		return nil, nil
	}
	node.Meta.Bools["is_encrypted"] = false

	data := file.Content
	if node.Flavor == whisper.FlavorDoc {
		converted, err := convertDocToDocx(data)
		if err != nil {
			return docFallback(node, data, err)
		}
		data = converted
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Not a readable ZIP: treat as an encrypted OOXML container.
		node.Meta.Bools["is_encrypted"] = true
		decrypted, password, derr := decryptOffice(data, node.Passwords)
		if derr != nil {
			return nil, fmt.Errorf("encrypted document: %w", derr)
		}
		node.Meta.Strings["correct_password"] = password
		data = decrypted
		zr, err = zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("reopen decrypted document: %w", err)
		}
	}

	var children []*whisper.Node

	text, err := docxText(data, node.WordMaxPages*paragraphsPerPage)
	if err != nil {
		node.Meta.AppendError("word", err)
	} else if strings.TrimSpace(text) != "" {
		children = append(children, node.NewChild(&whisper.Data{
			Type:    whisper.DataText,
			Content: []byte(text),
		}))
	}

	children = append(children, mediaChildren(node, zr)...)
	children = append(children, embeddingChildren(node, zr)...)
	return children, nil
}

// docFallback probes an unconvertible DOC for an OLE container and
// emits a placeholder text node when it is one.
func docFallback(node *whisper.Node, data []byte, convertErr error) ([]*whisper.Node, error) {
	if _, err := mscfb.New(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("convert doc: %w", convertErr)
	}
	child := node.NewChild(&whisper.Data{
		Type:    whisper.DataText,
		Content: []byte("[DOC file detected - content extraction requires conversion]"),
	})
	return []*whisper.Node{child}, nil
}

// docxText reads paragraph runs up to the paragraph cap and joins them
// with newlines.
func docxText(data []byte, maxParagraphs int) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if len(paragraphs) >= maxParagraphs {
			break
		}
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		paragraphs = append(paragraphs, paragraphText(para))
	}
	return strings.Join(paragraphs, "\n"), nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return buf.String()
}

func mediaChildren(node *whisper.Node, zr *zip.Reader) []*whisper.Node {
	var children []*whisper.Node
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "word/media/") || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			node.Meta.AppendError("word", fmt.Errorf("media %s: %w", f.Name, err))
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			node.Meta.AppendError("word", fmt.Errorf("media %s: %w", f.Name, err))
			continue
		}
		name := path.Base(f.Name)
		children = append(children, node.NewChild(&whisper.File{
			Path:    name,
			Name:    name,
			Content: content,
		}))
	}
	return children
}

func embeddingChildren(node *whisper.Node, zr *zip.Reader) []*whisper.Node {
	var children []*whisper.Node
	index := 0
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "word/embeddings/") || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			node.Meta.AppendError("word", fmt.Errorf("embedding %s: %w", f.Name, err))
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			node.Meta.AppendError("word", fmt.Errorf("embedding %s: %w", f.Name, err))
			continue
		}

		objectType, native := readOLEObject(raw)
		ext, known := oleExtension(objectType)
		if !known {
			continue
		}
		index++
		name := fmt.Sprintf("Output/OLE%d%s", index, ext)
		children = append(children, node.NewChild(&whisper.File{
			Path:    name,
			Name:    path.Base(name),
			Content: native,
		}))
	}
	return children
}

func oleExtension(objectType string) (string, bool) {
	for _, m := range oleObjectExtensions {
		if strings.HasPrefix(objectType, m.prefix) {
			return m.ext, true
		}
	}
	return "", false
}

// readOLEObject opens an embedded OLE compound file and returns its
// ObjectType tag plus the native payload bytes. Falls back to the raw
// stream when the container cannot be walked.
func readOLEObject(raw []byte) (string, []byte) {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return "", raw
	}

	var objectType string
	native := raw
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		content := make([]byte, entry.Size)
		n, _ := doc.Read(content)
		content = content[:n]

		switch entry.Name {
		case "\x01CompObj":
			objectType = scanObjectType(content)
		case "\x01Ole10Native":
			// Payload is prefixed with a 4-byte length.
			if len(content) > 4 {
				native = content[4:]
			}
		case "CONTENTS":
			native = content
		}
	}
	return objectType, native
}

// scanObjectType digs the first known ProgID out of a CompObj stream.
func scanObjectType(content []byte) string {
	text := string(content)
	for _, m := range oleObjectExtensions {
		if i := strings.Index(text, m.prefix); i >= 0 {
			end := i
			for end < len(text) && text[end] >= 0x20 && text[end] < 0x7f {
				end++
			}
			return text[i:end]
		}
	}
	return ""
}

// convertDocToDocx shells out to LibreOffice in headless mode, bounded
// by docConvertTimeout.
func convertDocToDocx(data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "whisperd-doc-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "input.doc")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp doc: %w", err)
	}

	bin, err := lookupOfficeBinary()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), docConvertTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, "--headless", "--convert-to", "docx", "--outdir", dir, src)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("libreoffice conversion: %v: %s", err, bytes.TrimSpace(out))
	}

	converted, err := os.ReadFile(filepath.Join(dir, "input.docx"))
	if err != nil {
		return nil, fmt.Errorf("read converted docx: %w", err)
	}
	return converted, nil
}

func lookupOfficeBinary() (string, error) {
	for _, candidate := range []string{"libreoffice", "soffice"} {
		if bin, err := exec.LookPath(candidate); err == nil {
			return bin, nil
		}
	}
	return "", fmt.Errorf("libreoffice not available for doc conversion")
}
