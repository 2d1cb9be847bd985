package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const defaultCallTimeout = 30 * time.Second

// clientConfig holds Client configuration.
type clientConfig struct {
	timeout time.Duration
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// WithCallTimeout bounds each remote call. If the transport never fires
// its callback within the window, the call fails as transient.
// Use 0 to disable the bound.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithClientLogger sets the logger for transport-level events.
// If not set, logging is disabled.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// Client adapts a callback-based Transport to the synchronous Store
// interface. Every call is wrapped in a fresh Guard so the transport's
// duplicate-callback defect can never resolve a call twice, and carries a
// timeout so an unanswered call eventually fails as transient.
type Client struct {
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger
}

var _ Store = (*Client)(nil)

// NewClient wraps a transport.
func NewClient(transport Transport, opts ...ClientOption) (*Client, error) {
	if transport == nil {
		return nil, errors.New("transport is nil")
	}
	cfg := clientConfig{timeout: defaultCallTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.timeout < 0 {
		return nil, errors.New("call timeout must be >= 0")
	}
	return &Client{
		transport: transport,
		timeout:   cfg.timeout,
		logger:    cfg.logger,
	}, nil
}

// Get implements Store.
func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	g := NewGuard[*Record]("get", c.logger)
	c.transport.Fetch(id, func(rec *Record, err error) {
		g.Complete(rec, err)
	})
	rec, err := g.Wait(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	return rec, nil
}

// Put implements Store.
func (c *Client) Put(ctx context.Context, rec *Record) (*Record, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	g := NewGuard[*Record]("put", c.logger)
	c.transport.Save(rec, func(stored *Record, err error) {
		g.Complete(stored, err)
	})
	stored, err := g.Wait(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	return stored, nil
}

// listPage pairs the two results of a query callback for the guard.
type listPage struct {
	ids  []string
	next Cursor
}

// ListIDs implements Store.
func (c *Client) ListIDs(ctx context.Context, cursor Cursor) ([]string, Cursor, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	g := NewGuard[listPage]("query", c.logger)
	c.transport.Query(cursor, func(ids []string, next Cursor, err error) {
		g.Complete(listPage{ids: ids, next: next}, err)
	})
	page, err := g.Wait(ctx)
	if err != nil {
		return nil, Cursor{}, Classify(err)
	}
	return page.ids, page.next, nil
}

// GetAssets implements Store.
func (c *Client) GetAssets(ctx context.Context, id string) (map[string][]byte, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	g := NewGuard[map[string][]byte]("assets", c.logger)
	c.transport.FetchAssets(id, func(assets map[string][]byte, err error) {
		g.Complete(assets, err)
	})
	assets, err := g.Wait(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	return assets, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
