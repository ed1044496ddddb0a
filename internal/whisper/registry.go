package whisper

import (
	"fmt"
	"time"
)

// Extractor reads one node and produces zero or more children. It may
// mutate the input node's meta but nothing else. A returned FatalError
// aborts the request; any other error is recorded and skipped.
type Extractor interface {
	Name() string
	Extract(node *Node) ([]*Node, error)
}

// Analyzer mutates a node's meta and never produces children.
type Analyzer interface {
	Name() string
	Analyze(node *Node) error
}

// Registry is the immutable flavor dispatch table, built once at engine
// construction. Extractors run in registration order; their outputs are
// concatenated.
type Registry struct {
	extractors map[Flavor][]Extractor
	analyzers  map[Flavor][]Analyzer
}

func NewRegistry(extractors map[Flavor][]Extractor, analyzers map[Flavor][]Analyzer) *Registry {
	return &Registry{extractors: extractors, analyzers: analyzers}
}

// Analyze runs every analyzer registered for the node's flavor.
// Failures never abort: they land in error_message. Each run is timed
// into microsecond_<name>.
func (r *Registry) Analyze(node *Node) {
	for _, a := range r.analyzers[node.Flavor] {
		start := time.Now()
		if err := a.Analyze(node); err != nil {
			node.Meta.AppendError(a.Name(), err)
		}
		node.Meta.Numbers["microsecond_"+a.Name()] = time.Since(start).Microseconds()
	}
}

// Extract runs every extractor registered for the node's flavor and
// concatenates their children. A fatal extractor error propagates; the
// timing entry is still written for the failed run.
func (r *Registry) Extract(node *Node) ([]*Node, error) {
	var children []*Node
	for _, e := range r.extractors[node.Flavor] {
		start := time.Now()
		nodes, err := e.Extract(node)
		node.Meta.Numbers["microsecond_"+e.Name()] = time.Since(start).Microseconds()
		if err != nil {
			if IsFatal(err) {
				return nil, fmt.Errorf("%s: %w", e.Name(), err)
			}
			node.Meta.AppendError(e.Name(), err)
			continue
		}
		children = append(children, nodes...)
	}
	return children, nil
}
