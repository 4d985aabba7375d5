package subsystems

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/fcmodel"
)

// UpdateSink receives batches of changed families. The client core implements it to
// apply updates to the local replica and notify listeners; bootstrap results and polling
// results both flow through the same sink.
type UpdateSink interface {
	OnUpdate(families []fcmodel.FigFamily)
}

// BootstrapResult is the outcome of a successful bootstrap: the full set of families to
// seed the replica with, and the starting cursor for each namespace that can be
// incrementally polled afterward.
type BootstrapResult struct {
	FigFamilies []fcmodel.FigFamily
	Cursors     map[string]string
}

// BootstrapStrategy acquires the first full snapshot. It is invoked exactly once per
// client lifetime, before polling begins.
type BootstrapStrategy interface {
	Bootstrap(ctx context.Context, namespaces []string) (BootstrapResult, error)
}

// PollingStrategy keeps the replica current after bootstrap. Start begins background
// work; Close signals it to stop and waits, bounded, for quiescence. A strategy is
// started at most once.
type PollingStrategy interface {
	Start()
	Close() error
}

// ClientContext carries the pieces of client configuration that strategy factories need
// to construct their components.
type ClientContext struct {
	Namespaces    []string
	EnvironmentID string
	AsOfTimestamp string
	Transport     Transport
	ShutdownGrace time.Duration
	Loggers       ldlog.Loggers
}

// BootstrapStrategyFactory creates a BootstrapStrategy; implemented by the builders in
// fccomponents.
type BootstrapStrategyFactory interface {
	CreateBootstrapStrategy(context ClientContext) (BootstrapStrategy, error)
}

// PollingStrategyFactory creates a PollingStrategy wired to the given sink and cursor
// map; implemented by the builders in fccomponents.
type PollingStrategyFactory interface {
	CreatePollingStrategy(context ClientContext, sink UpdateSink, cursors *CursorMap) (PollingStrategy, error)
}

// CursorMap is the namespace-to-cursor bookkeeping shared between the coordinator and
// whichever polling strategy is active. It is safe for concurrent use; all mutation goes
// through its methods, and callers must not add their own locking.
type CursorMap struct {
	lock    sync.RWMutex
	cursors map[string]string
}

// NewCursorMap creates an empty CursorMap.
func NewCursorMap() *CursorMap {
	return &CursorMap{cursors: make(map[string]string)}
}

// Get returns the cursor for a namespace. A namespace with no cursor cannot be
// incrementally polled.
func (c *CursorMap) Get(namespace string) (string, bool) {
	c.lock.RLock()
	cursor, ok := c.cursors[namespace]
	c.lock.RUnlock()
	return cursor, ok
}

// Set advances the cursor for a namespace.
func (c *CursorMap) Set(namespace, cursor string) {
	c.lock.Lock()
	c.cursors[namespace] = cursor
	c.lock.Unlock()
}

// SetAll merges a batch of cursors, such as a bootstrap result's starting cursors.
func (c *CursorMap) SetAll(cursors map[string]string) {
	c.lock.Lock()
	for ns, cursor := range cursors {
		c.cursors[ns] = cursor
	}
	c.lock.Unlock()
}

// Snapshot returns a point-in-time copy of all cursors.
func (c *CursorMap) Snapshot() map[string]string {
	c.lock.RLock()
	out := make(map[string]string, len(c.cursors))
	for ns, cursor := range c.cursors {
		out[ns] = cursor
	}
	c.lock.RUnlock()
	return out
}

// Clear removes all cursors.
func (c *CursorMap) Clear() {
	c.lock.Lock()
	c.cursors = make(map[string]string)
	c.lock.Unlock()
}
