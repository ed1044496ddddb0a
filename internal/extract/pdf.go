package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// PDFExtractor pulls page text and embedded images out of a PDF,
// honoring the inherited page cap. Password exhaustion on an encrypted
// document is fatal for the request.
type PDFExtractor struct{}

func (PDFExtractor) Name() string { return "pdf" }

func (PDFExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	file := node.FilePayload()
	if file == nil {
		return nil, nil
	}

	reader, err := openPDF(node, file.Content)
	if err != nil {
		return nil, err
	}

	var children []*whisper.Node
	var allText strings.Builder

	maxPages := min(node.PDFMaxPages, reader.NumPage())
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		if text, err := page.GetPlainText(nil); err == nil {
			allText.WriteString(text)
		}

		for i, img := range pageImages(page) {
			name := fmt.Sprintf("page_%d_image_%d.png", pageNum, i+1)
			children = append(children, node.NewChild(&whisper.File{
				Path:    name,
				Name:    name,
				Content: img,
			}))
		}
	}

	children = append(children, node.NewChild(&whisper.Data{
		Type:    whisper.DataText,
		Content: []byte(allText.String()),
	}))
	return children, nil
}

// openPDF opens the document, walking the password candidates when it
// is encrypted and recording the outcome on the node's meta.
func openPDF(node *whisper.Node, data []byte) (*pdflib.Reader, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err == nil {
		node.Meta.Bools["is_encrypted"] = false
		return reader, nil
	}
	if !errors.Is(err, pdflib.ErrInvalidPassword) {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	node.Meta.Bools["is_encrypted"] = true
	for _, password := range node.Passwords {
		attempted := false
		reader, err = pdflib.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
			if attempted {
				return ""
			}
			attempted = true
			return password
		})
		if err == nil {
			node.Meta.Strings["correct_password"] = password
			return reader, nil
		}
		if !errors.Is(err, pdflib.ErrInvalidPassword) {
			return nil, fmt.Errorf("open encrypted pdf: %w", err)
		}
	}
	return nil, whisper.Fatalf("pdf: all %d passwords are invalid", len(node.Passwords))
}

// pageImages returns the raw streams of the page's image XObjects.
func pageImages(page pdflib.Page) [][]byte {
	xobjects := page.V.Key("Resources").Key("XObject")
	if xobjects.IsNull() {
		return nil
	}

	var images [][]byte
	for _, key := range xobjects.Keys() {
		obj := xobjects.Key(key)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		r := obj.Reader()
		content, err := io.ReadAll(r)
		r.Close()
		if err != nil || len(content) == 0 {
			continue
		}
		images = append(images, content)
	}
	return images
}

// pdfText is the batch-pool entry point: text only, no child nodes, no
// password handling.
func pdfText(data []byte, maxPages int) (string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	limit := min(maxPages, reader.NumPage())
	for pageNum := 1; pageNum <= limit; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		if t, err := page.GetPlainText(nil); err == nil {
			text.WriteString(t)
		}
	}
	return text.String(), nil
}
