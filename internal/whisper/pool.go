package whisper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPoolExhausted is returned when no engine frees up within the
// acquire timeout.
var ErrPoolExhausted = errors.New("no available engine instances")

// EnginePool is a fixed-size pool of reusable Tree instances. Each
// request acquires one, digests under it, and releases it; release
// resets the instance so no per-request state survives.
type EnginePool struct {
	engines chan *Tree
	timeout time.Duration
	size    int
}

func NewEnginePool(size int, timeout time.Duration, build func() *Tree) *EnginePool {
	if size < 1 {
		size = 1
	}
	p := &EnginePool{
		engines: make(chan *Tree, size),
		timeout: timeout,
		size:    size,
	}
	for range size {
		p.engines <- build()
	}
	return p
}

// Acquire blocks up to the pool timeout for a free engine.
func (p *EnginePool) Acquire(ctx context.Context) (*Tree, error) {
	select {
	case t := <-p.engines:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.timeout):
		return nil, fmt.Errorf("%w (pool_size=%d, timeout=%s)", ErrPoolExhausted, p.size, p.timeout)
	}
}

// Release resets the engine and returns it to the pool.
func (p *EnginePool) Release(t *Tree) {
	t.Reset()
	p.engines <- t
}

// Size returns the configured pool size.
func (p *EnginePool) Size() int {
	return p.size
}
