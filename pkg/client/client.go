package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jdziat/durajobs/pkg/core"
	"github.com/jdziat/durajobs/pkg/event"
	"github.com/jdziat/durajobs/pkg/internal/handler"
	"github.com/jdziat/durajobs/pkg/security"
)

// Client manages handler registration, job insertion, and cancellation.
type Client struct {
	storage  core.Storage
	handlers map[string]*handler.Handler
	mu       sync.RWMutex
	emitter  *event.Emitter
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a new Client with the given storage backend.
func New(s core.Storage, opts ...ClientOption) *Client {
	c := &Client{
		storage:  s,
		handlers: make(map[string]*handler.Handler),
		emitter:  event.NewEmitter(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register registers a job handler function for a kind.
// The function must have signature: func(ctx context.Context, args T) error.
// Kinds must be alphanumeric (starting with a letter), max 255 chars.
func (c *Client) Register(kind string, fn any, opts ...Option) {
	if err := security.ValidateKind(kind); err != nil {
		panic(fmt.Sprintf("jobs: invalid handler kind %q: %v", kind, err))
	}

	h, err := handler.NewHandler(fn)
	if err != nil {
		panic(fmt.Sprintf("jobs: handler for %q: %v", kind, err))
	}

	if len(opts) > 0 {
		o := NewOptions()
		for _, opt := range opts {
			opt.Apply(o)
		}
		h.Timeout = o.Timeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = h
}

// HasHandler checks if a handler is registered for a kind.
func (c *Client) HasHandler(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[kind]
	return ok
}

// Handler returns a handler by kind.
func (c *Client) Handler(kind string) (*handler.Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[kind]
	return h, ok
}

// Insert adds a job. When the Unique option is set, the returned job may be
// a pre-existing one whose key matched inside the window; compare IDs if
// the distinction matters.
func (c *Client) Insert(ctx context.Context, kind string, args any, opts ...Option) (*core.Job, error) {
	c.mu.RLock()
	_, ok := c.handlers[kind]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("jobs: no handler registered for %q", kind)
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	if err := security.ValidateQueueName(options.Queue); err != nil {
		return nil, err
	}

	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("jobs: failed to marshal args: %w", err)
	}
	if len(argsBytes) > security.MaxArgsSize {
		return nil, core.ErrArgsTooLarge
	}

	job := &core.Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Args:        argsBytes,
		Queue:       options.Queue,
		Priority:    options.Priority,
		MaxAttempts: security.ClampMaxAttempts(options.MaxAttempts),
	}

	if options.Delay > 0 {
		job.ScheduledAt = time.Now().Add(options.Delay)
	}
	if options.RunAt != nil {
		job.ScheduledAt = *options.RunAt
	}

	if options.Unique != nil {
		if err := security.ValidateUniqueKey(options.Unique.Key); err != nil {
			return nil, err
		}
		winner, inserted, err := c.storage.InsertUnique(ctx, job, *options.Unique)
		if err != nil {
			return nil, fmt.Errorf("jobs: failed to insert: %w", err)
		}
		if !inserted {
			c.logger.Debug("duplicate suppressed",
				zap.String("kind", kind),
				zap.String("unique_key", options.Unique.Key),
				zap.String("existing_id", winner.ID))
		}
		return winner, nil
	}

	if err := c.storage.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("jobs: failed to insert: %w", err)
	}
	return job, nil
}

// Cancel requests cancellation of a job. Idempotent: cancelling a job that
// already reached a terminal state is a no-op, not an error. A job currently
// executing keeps running; its outcome transition then loses the
// compare-and-update and is dropped.
func (c *Client) Cancel(ctx context.Context, jobID string) (*core.Job, error) {
	job, cancelled, err := c.storage.Cancel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if cancelled {
		c.emitter.Emit(&event.JobCancelled{Job: job, Timestamp: time.Now()})
	}
	return job, nil
}

// Storage returns the underlying storage.
func (c *Client) Storage() core.Storage {
	return c.storage
}

// Emitter returns the client's event emitter, shared with the engine and
// maintenance plugins.
func (c *Client) Emitter() *event.Emitter {
	return c.emitter
}

// Events returns a channel for receiving lifecycle events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (c *Client) Events() <-chan event.Event {
	return c.emitter.Subscribe()
}

// Unsubscribe removes a subscriber channel created by Events.
func (c *Client) Unsubscribe(ch <-chan event.Event) {
	c.emitter.Unsubscribe(ch)
}
