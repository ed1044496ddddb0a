package whisper

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Batch deadlines per heavy flavor. The pool returns whatever finished
// in time; late children fall through to the regular per-child digest.
const (
	ocrBatchDeadline = 120 * time.Second
	docBatchDeadline = 300 * time.Second
)

// PoolConfig enables one heavy-flavor worker pool.
type PoolConfig struct {
	Enabled bool
	Workers int
}

// BatchConfig carries the per-flavor pool toggles from the environment.
type BatchConfig struct {
	OCR     PoolConfig
	Word    PoolConfig
	PDF     PoolConfig
	HTML    PoolConfig
	Archive PoolConfig
}

// BatchWorkers are the heavy task entry points, injected so the batch
// processor stays decoupled from the extractor implementations. Each
// receives only payload bytes plus the inherited page limit.
type BatchWorkers struct {
	OCR  func(image []byte) (string, error)
	Word func(doc []byte, maxPages int) (string, error)
	PDF  func(doc []byte, maxPages int) (string, error)
}

// BatchProcessor groups same-flavor siblings and runs them on bounded
// process-level worker pools. The mapping of result to owning child is
// by node id, never by completion order.
type BatchProcessor struct {
	cfg     BatchConfig
	workers BatchWorkers
	sems    map[Flavor]*semaphore.Weighted
	log     *slog.Logger
}

func NewBatchProcessor(cfg BatchConfig, workers BatchWorkers, log *slog.Logger) *BatchProcessor {
	b := &BatchProcessor{
		cfg:     cfg,
		workers: workers,
		sems:    make(map[Flavor]*semaphore.Weighted),
		log:     log,
	}
	if cfg.OCR.Enabled && workers.OCR != nil {
		sem := semaphore.NewWeighted(int64(max(1, cfg.OCR.Workers)))
		b.sems[FlavorImage] = sem
	}
	if cfg.Word.Enabled && workers.Word != nil {
		sem := semaphore.NewWeighted(int64(max(1, cfg.Word.Workers)))
		b.sems[FlavorDoc] = sem
		b.sems[FlavorDocx] = sem
	}
	if cfg.PDF.Enabled && workers.PDF != nil {
		b.sems[FlavorPDF] = semaphore.NewWeighted(int64(max(1, cfg.PDF.Workers)))
	}
	return b
}

// Eligible reports whether a pool is enabled for the flavor.
func (b *BatchProcessor) Eligible(flavor Flavor) bool {
	_, ok := b.sems[flavor]
	return ok
}

// Status describes the configured pools, for the health surface.
func (b *BatchProcessor) Status() map[string]any {
	status := make(map[string]any)
	for name, pc := range map[string]PoolConfig{
		"ocr": b.cfg.OCR, "word": b.cfg.Word, "pdf": b.cfg.PDF,
		"html": b.cfg.HTML, "archive": b.cfg.Archive,
	} {
		status[name] = map[string]any{"enabled": pc.Enabled, "workers": pc.Workers}
	}
	return status
}

// Process submits one task per child and joins with the flavor's
// deadline. Children whose task failed or timed out are absent from the
// returned map and fall through to the regular digest. Result nodes are
// fabricated with id 0; the dissector assigns ids when it recurses.
func (b *BatchProcessor) Process(ctx context.Context, flavor Flavor, nodes []*Node) map[int64][]*Node {
	sem, ok := b.sems[flavor]
	if !ok {
		return nil
	}

	deadline := docBatchDeadline
	if flavor == FlavorImage {
		deadline = ocrBatchDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make(map[int64][]*Node)
	var mu sync.Mutex
	var wg sync.WaitGroup

	start := time.Now()
	for _, node := range nodes {
		file := node.FilePayload()
		if file == nil {
			continue
		}
		wg.Add(1)
		go func(node *Node, file *File) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				b.log.Warn("batch task not scheduled", "node_id", node.ID, "error", err)
				return
			}
			defer sem.Release(1)

			text, err := b.run(flavor, node, file)
			if err != nil {
				b.log.Error("batch task failed", "node_id", node.ID, "flavor", flavor.String(), "error", err)
				return
			}
			mu.Lock()
			if results != nil {
				results[node.ID] = b.resultNodes(flavor, node, text)
			}
			mu.Unlock()
		}(node, file)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	// Tasks still running past the deadline drop their results.
	mu.Lock()
	collected := results
	results = nil
	mu.Unlock()

	b.log.Info("batch completed",
		"flavor", flavor.String(),
		"submitted", len(nodes),
		"succeeded", len(collected),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return collected
}

func (b *BatchProcessor) run(flavor Flavor, node *Node, file *File) (string, error) {
	switch flavor {
	case FlavorImage:
		return b.workers.OCR(file.Content)
	case FlavorDoc, FlavorDocx:
		return b.workers.Word(file.Content, node.WordMaxPages)
	default:
		return b.workers.PDF(file.Content, node.PDFMaxPages)
	}
}

func (b *BatchProcessor) resultNodes(flavor Flavor, parent *Node, text string) []*Node {
	if strings.TrimSpace(text) == "" {
		return []*Node{}
	}
	dataType := DataText
	if flavor == FlavorImage {
		dataType = DataOCR
	}
	child := parent.NewChild(&Data{Type: dataType, Content: []byte(text)})
	return []*Node{child}
}
