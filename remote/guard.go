package remote

import (
	"context"
	"log/slog"
	"sync"
)

// outcome carries the single logical result of a guarded call.
type outcome[T any] struct {
	value T
	err   error
}

// Guard delivers the result of one callback-driven operation exactly once.
//
// The transport's raw completion callback can fire more than once for the
// same logical request. Every invocation funnels through Complete, which
// performs an atomic check-and-set on the completed flag: the first caller
// wins and resolves the result channel, later callers are logged and
// discarded without touching it.
type Guard[T any] struct {
	mu     sync.Mutex
	done   bool
	ch     chan outcome[T]
	op     string
	logger *slog.Logger
}

// NewGuard creates a guard for a single operation. The op string labels
// duplicate-completion log records. A nil logger disables logging.
func NewGuard[T any](op string, logger *slog.Logger) *Guard[T] {
	return &Guard[T]{
		ch:     make(chan outcome[T], 1),
		op:     op,
		logger: logger,
	}
}

func (g *Guard[T]) log() *slog.Logger {
	if g.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.logger
}

// Complete records the operation's result. It returns true if this call
// resolved the guard, false if the result had already been delivered and
// this invocation was discarded as a duplicate.
//
// Safe for concurrent use from any number of callback threads.
func (g *Guard[T]) Complete(value T, err error) bool {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		g.log().Warn("duplicate completion discarded", "op", g.op, "err", err)
		return false
	}
	g.done = true
	g.mu.Unlock()

	// Buffered channel: the single send never blocks.
	g.ch <- outcome[T]{value: value, err: err}
	return true
}

// Wait blocks until the guarded operation completes or ctx is done.
// It returns the operation's single result, or the context error mapped
// to the transient class (absence of a response is treated as a timeout).
func (g *Guard[T]) Wait(ctx context.Context) (T, error) {
	select {
	case out := <-g.ch:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, Classify(ctx.Err())
	}
}
