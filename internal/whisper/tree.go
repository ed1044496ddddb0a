package whisper

import (
	"context"
	"log/slog"
)

// Tree digests a node recursively: identity, classification, analyzers,
// extractors, then children. Instances carry no cross-request state
// beyond the root pointer, which the pool clears on release; they are
// never shared concurrently.
type Tree struct {
	root     *Node
	registry *Registry
	batch    *BatchProcessor
	log      *slog.Logger
}

func NewTree(registry *Registry, batch *BatchProcessor, log *slog.Logger) *Tree {
	return &Tree{registry: registry, batch: batch, log: log}
}

// Root returns the root of the current dissection, nil between requests.
func (t *Tree) Root() *Node {
	return t.root
}

// Reset drops the per-request state. Called by the pool on release.
func (t *Tree) Reset() {
	t.root = nil
}

// Digest populates the subtree rooted at node in place. It returns an
// error only for fatal extractor failures, which abort the request.
func (t *Tree) Digest(ctx context.Context, node *Node) error {
	if t.root == nil {
		t.root = node
	}

	t.identify(node)

	children, err := t.registry.Extract(node)
	if err != nil {
		return err
	}
	node.Children = children

	// Children are identified and classified up front so sibling
	// batching can group them by flavor before any recursion.
	for _, child := range children {
		t.identify(child)
	}

	expanded := t.processBatches(ctx, node)

	for _, child := range children {
		if expanded[child] {
			continue
		}
		if err := t.Digest(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// identify assigns ids, hashes and flavor exactly once per node, then
// runs the flavor's analyzers.
func (t *Tree) identify(node *Node) {
	if node.classified {
		return
	}
	node.classified = true

	node.UUID = NewUUID()
	if node.ID == 0 {
		node.ID = NextID()
	}
	if node.Meta.Strings == nil {
		node.Meta = NewMeta()
	}

	switch c := node.Content.(type) {
	case *File:
		hashFile(c)
		c.MimeType = DetectMIME(c.Content)
		c.Extension = FileExtension(c.Name)
		node.Flavor = ClassifyFile(c.MimeType, c.Extension)
	case *Data:
		detectEncoding(&node.Meta, c.Content)
		node.Flavor = ClassifyData(c.Type)
	}

	node.Meta.Strings["error_message"] = ""
	t.registry.Analyze(node)
}

// processBatches groups the freshly produced children by batch-eligible
// flavor and hands groups of two or more to the batch processor. A child
// that received a batch result is considered already expanded: its
// result nodes replace the per-child digest, and only the appended
// grandchildren recurse.
func (t *Tree) processBatches(ctx context.Context, parent *Node) map[*Node]bool {
	expanded := make(map[*Node]bool)
	if t.batch == nil || len(parent.Children) == 0 {
		return expanded
	}

	groups := make(map[Flavor][]*Node)
	for _, child := range parent.Children {
		if t.batch.Eligible(child.Flavor) {
			groups[child.Flavor] = append(groups[child.Flavor], child)
		}
	}

	for flavor, group := range groups {
		if len(group) < 2 {
			continue
		}
		t.log.Info("batch processing siblings", "flavor", flavor.String(), "count", len(group))
		results := t.batch.Process(ctx, flavor, group)

		for _, child := range group {
			nodes, ok := results[child.ID]
			if !ok {
				continue // fell through; regular digest will handle it
			}
			expanded[child] = true
			child.Children = append(child.Children, nodes...)
			for _, grandchild := range nodes {
				if err := t.Digest(ctx, grandchild); err != nil {
					// Batch result nodes are data fragments; their
					// digest has no fatal path today. Record and go on.
					child.Meta.AppendError("batch", err)
				}
			}
		}
	}
	return expanded
}
