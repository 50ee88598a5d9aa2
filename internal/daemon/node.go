// Package daemon wires the event buffer, its control dispatcher and the
// optional input device ingestor into one lifecycle-managed node.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/rmacdonaldsmith/inputlog/internal/control"
	"github.com/rmacdonaldsmith/inputlog/internal/eventbuf"
	"github.com/rmacdonaldsmith/inputlog/internal/inputevent"
	eventbufpkg "github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// Health reports the state of a Node.
type Health struct {
	Healthy   bool              `json:"healthy"`
	NodeID    string            `json:"nodeId"`
	Buffer    eventbufpkg.Stats `json:"buffer"`
	Ingesting bool              `json:"ingesting"`
	Ingested  uint64            `json:"ingested"`
	Ignored   uint64            `json:"ignored"`
	Message   string            `json:"message"`
}

// Node owns one event buffer and everything that feeds or administers it.
type Node struct {
	mu     sync.RWMutex
	config *Config
	logger *slog.Logger

	store      *eventbuf.Store
	dispatcher *control.Dispatcher

	ingestor   *inputevent.Ingestor
	device     io.Closer
	ingestDone bool
	ingestErr  error
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	started bool
	closed  bool
}

// NewNode creates a Node with the given configuration. Call Start to begin
// ingesting from the configured device or source.
func NewNode(config *Config) (*Node, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := eventbuf.NewStore(&config.Buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create event buffer: %w", err)
	}

	logger := config.Logger.With("node", config.NodeID)
	return &Node{
		config:     config,
		logger:     logger,
		store:      store,
		dispatcher: control.NewDispatcher(store, logger),
	}, nil
}

// Start begins ingesting events. Without a device or source it only marks
// the node as running. Start is idempotent.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return fmt.Errorf("cannot start closed node")
	}
	if n.started {
		return nil
	}

	source := n.config.Source
	if source == nil && n.config.Device != "" {
		f, err := os.Open(n.config.Device)
		if err != nil {
			return fmt.Errorf("failed to open input device: %w", err)
		}
		n.device = f
		source = inputevent.NewDecoder(f)
	}

	if source != nil {
		runCtx, cancel := context.WithCancel(ctx)
		n.cancel = cancel
		n.ingestor = inputevent.NewIngestor(source, n.store, n.logger)
		n.ingestErr = nil
		n.ingestDone = false

		n.wg.Add(1)
		go n.runIngestor(runCtx, n.ingestor)
	}

	n.started = true
	n.logger.Info("node started", "capacity", n.store.Capacity(), "device", n.config.Device)
	return nil
}

// runIngestor runs the ingestor until it stops and records why it stopped
func (n *Node) runIngestor(ctx context.Context, ingestor *inputevent.Ingestor) {
	defer n.wg.Done()

	err := ingestor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		n.logger.Error("ingestor failed", "error", err)
	}

	n.mu.Lock()
	n.ingestDone = true
	n.ingestErr = err
	n.mu.Unlock()
}

// Stop halts ingestion and waits for the ingestor to exit or ctx to expire.
// The buffer stays usable.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = false
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	// Closing the device unblocks a read in progress
	var closeErr error
	if n.device != nil {
		closeErr = n.device.Close()
		n.device = nil
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for ingestor: %w", ctx.Err())
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close input device: %w", closeErr)
	}
	n.logger.Info("node stopped")
	return nil
}

// Close stops the node and destroys its buffer, releasing blocked consumers.
// Close is idempotent.
func (n *Node) Close() error {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return nil
	}

	if err := n.Stop(context.Background()); err != nil {
		n.logger.Warn("error stopping node", "error", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	if err := n.store.Close(); err != nil {
		return fmt.Errorf("failed to close event buffer: %w", err)
	}
	return nil
}

// Store returns the node's event buffer.
func (n *Node) Store() *eventbuf.Store {
	return n.store
}

// Dispatcher returns the node's control command dispatcher.
func (n *Node) Dispatcher() *control.Dispatcher {
	return n.dispatcher
}

// NodeID returns the node's identifier.
func (n *Node) NodeID() string {
	return n.config.NodeID
}

// Logger returns the node's logger.
func (n *Node) Logger() *slog.Logger {
	return n.logger
}

// GetHealth returns the health of the node and a snapshot of its buffer.
func (n *Node) GetHealth(ctx context.Context) (Health, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	health := Health{
		Healthy: !n.closed,
		NodeID:  n.config.NodeID,
		Buffer:  n.store.Stats(),
		Message: "ok",
	}

	if n.ingestor != nil {
		health.Ingesting = n.started && !n.ingestDone
		health.Ingested = n.ingestor.Ingested()
		health.Ignored = n.ingestor.Ignored()
	}

	switch {
	case n.closed:
		health.Message = "node closed"
	case n.ingestErr != nil:
		health.Healthy = false
		health.Message = fmt.Sprintf("ingestor failed: %v", n.ingestErr)
	}

	return health, nil
}
