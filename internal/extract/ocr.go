package extract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// OCREngine owns a bounded set of tesseract clients. Clients are
// created lazily, at most one per worker slot, and never shared
// concurrently; tesseract handles are not reentrant.
type OCREngine struct {
	clients   chan *gosseract.Client
	languages []string

	mu      sync.Mutex
	created int
	size    int
}

// NewOCREngine sizes the engine for the given worker count. Languages
// default to traditional Chinese plus English.
func NewOCREngine(workers int, languages ...string) *OCREngine {
	if workers < 1 {
		workers = 1
	}
	if len(languages) == 0 {
		languages = []string{"chi_tra", "eng"}
	}
	return &OCREngine{
		clients:   make(chan *gosseract.Client, workers),
		languages: languages,
		size:      workers,
	}
}

// Recognize runs text recognition over image bytes and returns the
// recognized text.
func (e *OCREngine) Recognize(image []byte) (string, error) {
	client, err := e.acquire()
	if err != nil {
		return "", err
	}
	defer func() { e.clients <- client }()

	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}

func (e *OCREngine) acquire() (*gosseract.Client, error) {
	select {
	case client := <-e.clients:
		return client, nil
	default:
	}

	e.mu.Lock()
	if e.created < e.size {
		e.created++
		e.mu.Unlock()
		client := gosseract.NewClient()
		if err := client.SetLanguage(e.languages...); err != nil {
			client.Close()
			e.mu.Lock()
			e.created--
			e.mu.Unlock()
			return nil, fmt.Errorf("set ocr languages: %w", err)
		}
		return client, nil
	}
	e.mu.Unlock()

	return <-e.clients, nil
}

// Close releases every created tesseract handle.
func (e *OCREngine) Close() {
	e.mu.Lock()
	created := e.created
	e.created = 0
	e.mu.Unlock()

	for range created {
		client := <-e.clients
		client.Close()
	}
}

// OCRExtractor emits one OCR data node when recognition yields any
// text. The heavy lifting sits in the shared engine so the batch pool
// and the inline path reuse the same initialized workers.
type OCRExtractor struct {
	Engine *OCREngine
}

func (OCRExtractor) Name() string { return "ocr" }

func (x OCRExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	file := node.FilePayload()
	if file == nil {
		return nil, nil
	}

	text, err := x.Engine.Recognize(file.Content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	child := node.NewChild(&whisper.Data{
		Type:    whisper.DataOCR,
		Content: []byte(text),
	})
	return []*whisper.Node{child}, nil
}
