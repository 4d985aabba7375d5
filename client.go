// Package fcclient is the FigChain client SDK for Go.
//
// The client keeps a local replica of namespaced configuration data fresh through a
// cursor-based synchronization protocol, and deterministically resolves which version of
// a configuration a given caller should see. Construct a client with MakeCustomClient,
// call Start, and read configuration with GetFig:
//
//	client, err := fcclient.MakeCustomClient(fcclient.Config{
//	    Namespaces: []string{"billing"},
//	    Transport:  transport,
//	})
//	client.Start()
//	if err := client.AwaitReady(10 * time.Second); err != nil { ... }
//	fig, ok := client.GetFig("billing", "rate-limits", ctx)
package fcclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"golang.org/x/exp/slices"

	"github.com/figchain/go-client-sdk/fccomponents"
	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/internal"
	"github.com/figchain/go-client-sdk/internal/rollout"
	"github.com/figchain/go-client-sdk/internal/store"
	"github.com/figchain/go-client-sdk/subsystems"
)

// ErrInitializationTimeout is returned by AwaitReady when the timeout elapses before
// bootstrap has finished.
var ErrInitializationTimeout = errors.New("timeout waiting for client initialization")

// FCClient is the main entry point for the FigChain service. It owns the sync
// lifecycle: it runs one bootstrap strategy to acquire the first full snapshot, then
// hands off to one polling strategy to keep the snapshot current, applies every update
// to the local replica, and fans updates out to registered listeners.
//
// All methods are safe for concurrent use.
type FCClient struct {
	loggers        ldlog.Loggers
	namespaces     []string
	environmentID  string
	figStore       *store.MemoryStore
	evaluator      rollout.Evaluator
	transport      subsystems.Transport
	defaultContext fcmodel.EvaluationContext
	decrypter      subsystems.PayloadDecrypter
	cursors        *subsystems.CursorMap
	bootstrap      subsystems.BootstrapStrategy
	polling        subsystems.PollingStrategy

	broadcaster *internal.UpdateBroadcaster

	started      atomic.Bool
	readyCh      chan struct{}
	readyOnce    sync.Once
	bootstrapErr error // written before the ready gate is released, read only after

	listenersLock sync.RWMutex
	listeners     map[string][]*listenerRegistration
}

type listenerRegistration struct {
	context  fcmodel.EvaluationContext
	callback func(fcmodel.Fig)
}

// MakeCustomClient creates an FCClient from a Config. The client does no network
// activity until Start is called.
func MakeCustomClient(config Config) (*FCClient, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Bootstrap == nil {
		config.Bootstrap = fccomponents.ServerBootstrap()
	}
	if config.Polling == nil {
		config.Polling = fccomponents.PollingDataSource()
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}

	client := &FCClient{
		loggers:        config.Loggers,
		namespaces:     slices.Clone(config.Namespaces),
		environmentID:  config.EnvironmentID,
		figStore:       store.NewMemoryStore(config.Loggers),
		evaluator:      rollout.NewEvaluator(config.Loggers),
		transport:      config.Transport,
		defaultContext: config.DefaultContext,
		decrypter:      config.Decrypter,
		cursors:        subsystems.NewCursorMap(),
		broadcaster:    internal.NewUpdateBroadcaster(),
		readyCh:        make(chan struct{}),
		listeners:      make(map[string][]*listenerRegistration),
	}

	clientContext := config.clientContext()
	bootstrapStrategy, err := config.Bootstrap.CreateBootstrapStrategy(clientContext)
	if err != nil {
		return nil, fmt.Errorf("configuring bootstrap strategy: %w", err)
	}
	client.bootstrap = bootstrapStrategy

	pollingStrategy, err := config.Polling.CreatePollingStrategy(clientContext, client, client.cursors)
	if err != nil {
		return nil, fmt.Errorf("configuring polling strategy: %w", err)
	}
	client.polling = pollingStrategy

	client.loggers.Infof("FCClient initialized with namespaces: %v", config.Namespaces)
	return client, nil
}

// Start begins synchronization asynchronously: bootstrap runs off the caller's
// goroutine, its result is merged into the replica and published like any other update,
// the ready gate is released, and only then does polling begin. Start is idempotent; a
// second call is a no-op.
//
// If bootstrap fails, the ready gate is still released so that readers are never hung,
// polling is not started, and the failure is reported by AwaitReady.
func (c *FCClient) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.loggers.Info("Starting FCClient")
	go c.run()
}

func (c *FCClient) run() {
	err := c.runBootstrap()
	if err != nil {
		c.loggers.Errorf("Bootstrap failed: %s", err)
		c.bootstrapErr = err
	}
	c.releaseReadyGate()
	if err != nil {
		return
	}
	c.polling.Start()
	c.loggers.Info("FCClient started")
}

func (c *FCClient) runBootstrap() error {
	c.loggers.Debugf("Bootstrapping data for namespaces: %v", c.namespaces)
	result, err := c.bootstrap.Bootstrap(context.Background(), c.namespaces)
	if err != nil {
		return err
	}
	c.OnUpdate(result.FigFamilies)
	c.cursors.SetAll(result.Cursors)
	c.loggers.Info("Bootstrap complete")
	return nil
}

func (c *FCClient) releaseReadyGate() {
	c.readyOnce.Do(func() {
		close(c.readyCh)
	})
}

// AwaitReady blocks until bootstrap has finished (successfully or not) or the timeout
// elapses. It returns nil once the client is ready, the bootstrap error if bootstrap
// failed, or ErrInitializationTimeout.
func (c *FCClient) AwaitReady(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.readyCh:
		return c.bootstrapErr
	case <-timer.C:
		return ErrInitializationTimeout
	}
}

// Initialized reports whether bootstrap has completed successfully.
func (c *FCClient) Initialized() bool {
	select {
	case <-c.readyCh:
		return c.bootstrapErr == nil
	default:
		return false
	}
}

// Close shuts the client down: polling stops, the transport's resources are released,
// and update listener channels are closed. Background work is given a bounded grace
// period to wind down. The ready gate is released if it was not already, so no reader
// is left blocked.
func (c *FCClient) Close() error {
	c.loggers.Info("Shutting down FCClient")
	if c.polling != nil {
		_ = c.polling.Close()
	}
	err := c.transport.Close()
	c.broadcaster.Close()
	c.releaseReadyGate()
	c.loggers.Info("FCClient shut down complete")
	return err
}

// OnUpdate applies a batch of changed families to the replica and notifies listeners.
// It implements subsystems.UpdateSink; both the bootstrap result and every polling
// result flow through here, so ordering within a namespace follows arrival order.
func (c *FCClient) OnUpdate(families []fcmodel.FigFamily) {
	if len(families) == 0 {
		c.loggers.Debug("No fig families to update in the store")
		return
	}
	c.loggers.Debugf("Updating fig store with %d new/updated fig families", len(families))
	for _, family := range families {
		c.figStore.Upsert(family)
		c.notifyListeners(family)
	}
	c.broadcaster.Broadcast(families)
}

// GetFig returns the fig version selected for (namespace, key) under the given context,
// blocking first until the ready gate has been released. The client's default context,
// if any, is merged under the per-call context (the per-call attributes win). The second
// return value is false if the family is unknown or evaluation produced no result.
//
// GetFig never blocks once the gate is open, even if bootstrap failed; in that case it
// evaluates against whatever the replica holds, which may be nothing.
func (c *FCClient) GetFig(namespace, key string, evalContext fcmodel.EvaluationContext) (fcmodel.Fig, bool) {
	<-c.readyCh
	family, ok := c.figStore.Get(namespace, key)
	if !ok {
		return fcmodel.Fig{}, false
	}
	return c.evaluator.Evaluate(family, c.defaultContext.Merge(evalContext))
}

// GetFigDefault is a convenience for clients configured with exactly one namespace and
// a default context; it evaluates key with the default context alone.
func (c *FCClient) GetFigDefault(key string) (fcmodel.Fig, bool, error) {
	if len(c.namespaces) != 1 {
		return fcmodel.Fig{}, false, errors.New("multiple namespaces configured; use GetFig")
	}
	fig, ok := c.GetFig(c.namespaces[0], key, fcmodel.EvaluationContext{})
	return fig, ok, nil
}

// PayloadFor evaluates (namespace, key) and returns the selected fig's payload,
// decrypting it first if the fig is envelope-encrypted. Decryption requires a
// Decrypter in the configuration.
func (c *FCClient) PayloadFor(namespace, key string, evalContext fcmodel.EvaluationContext) ([]byte, error) {
	fig, ok := c.GetFig(namespace, key, evalContext)
	if !ok {
		return nil, fmt.Errorf("no fig resolved for %s:%s", namespace, key)
	}
	if !fig.Encrypted {
		return fig.Payload, nil
	}
	if c.decrypter == nil {
		return nil, fmt.Errorf("fig %s:%s is encrypted and no decrypter is configured", namespace, key)
	}
	return c.decrypter.Decrypt(fig, namespace)
}

// RegisterListener registers a callback invoked with the evaluated fig whenever an
// update touches exactly (namespace, key). The context bound here is fixed for the life
// of the registration, so this is suitable only for configuration that does not depend
// on per-request targeting attributes; for request-scoped rules, call GetFig with the
// appropriate context instead.
func (c *FCClient) RegisterListener(
	namespace, key string,
	evalContext fcmodel.EvaluationContext,
	callback func(fcmodel.Fig),
) {
	lookupKey := namespace + ":" + key
	c.listenersLock.Lock()
	c.listeners[lookupKey] = append(c.listeners[lookupKey], &listenerRegistration{
		context:  evalContext,
		callback: callback,
	})
	c.listenersLock.Unlock()
}

func (c *FCClient) notifyListeners(family fcmodel.FigFamily) {
	lookupKey := family.Namespace + ":" + family.Key
	c.listenersLock.RLock()
	registrations := slices.Clone(c.listeners[lookupKey])
	c.listenersLock.RUnlock()

	for _, reg := range registrations {
		fig, ok := c.evaluator.Evaluate(family, c.defaultContext.Merge(reg.context))
		if ok {
			reg.callback(fig)
		}
	}
}

// AddUpdateListener subscribes to raw update batches, regardless of evaluation. The
// returned channel receives every batch that flows through the update path.
func (c *FCClient) AddUpdateListener() <-chan []fcmodel.FigFamily {
	return c.broadcaster.AddListener()
}

// RemoveUpdateListener unsubscribes a channel returned by AddUpdateListener.
func (c *FCClient) RemoveUpdateListener(ch <-chan []fcmodel.FigFamily) {
	c.broadcaster.RemoveListener(ch)
}

// Namespaces returns the namespaces this client replicates.
func (c *FCClient) Namespaces() []string {
	return slices.Clone(c.namespaces)
}

// EnvironmentID returns the configured environment ID.
func (c *FCClient) EnvironmentID() string {
	return c.environmentID
}

// Cursors returns a point-in-time copy of the per-namespace cursors, mainly for
// diagnostics.
func (c *FCClient) Cursors() map[string]string {
	return c.cursors.Snapshot()
}
