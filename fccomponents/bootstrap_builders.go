// Package fccomponents provides the configurable factories for the FigChain client's
// pluggable components: the bootstrap strategies that acquire the first full snapshot,
// and the polling strategies that keep it current.
//
// Create a builder, set its properties, and store it in the matching field of the
// client configuration:
//
//	config := fcclient.Config{
//	    Bootstrap: fccomponents.ServerBootstrap().MaxRetries(5),
//	    Polling:   fccomponents.LongPollingDataSource(),
//	}
package fccomponents

import (
	"errors"
	"time"

	"github.com/figchain/go-client-sdk/internal/bootstrap"
	"github.com/figchain/go-client-sdk/subsystems"
)

const (
	// DefaultMaxRetries is the default number of retries after a bootstrap fetch attempt
	// fails, so the default total is DefaultMaxRetries+1 attempts.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the default fixed delay between bootstrap fetch attempts.
	DefaultRetryDelay = 2 * time.Second
)

// ServerBootstrapBuilder configures bootstrap by full initial fetch from the server.
//
// See ServerBootstrap for usage.
type ServerBootstrapBuilder struct {
	maxRetries int
	retryDelay time.Duration
}

// ServerBootstrap returns a configurable factory for bootstrapping from the server.
// This is the default bootstrap behavior.
func ServerBootstrap() *ServerBootstrapBuilder {
	return &ServerBootstrapBuilder{
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
}

// MaxRetries sets how many times a failed initial fetch is retried. Authentication and
// authorization failures are never retried regardless of this setting.
func (b *ServerBootstrapBuilder) MaxRetries(maxRetries int) *ServerBootstrapBuilder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	b.maxRetries = maxRetries
	return b
}

// RetryDelay sets the fixed delay between attempts.
func (b *ServerBootstrapBuilder) RetryDelay(retryDelay time.Duration) *ServerBootstrapBuilder {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	b.retryDelay = retryDelay
	return b
}

// CreateBootstrapStrategy is called by the client to create the strategy instance.
func (b *ServerBootstrapBuilder) CreateBootstrapStrategy(
	context subsystems.ClientContext,
) (subsystems.BootstrapStrategy, error) {
	return bootstrap.NewServerStrategy(
		context.Transport,
		context.EnvironmentID,
		context.AsOfTimestamp,
		b.maxRetries,
		b.retryDelay,
		context.Loggers,
	), nil
}

// VaultBootstrapBuilder configures bootstrap from a vault snapshot only, with no server
// involvement. Useful when the server is known to be unreachable at startup.
type VaultBootstrapBuilder struct {
	keeper subsystems.VaultKeeper
}

// VaultBootstrap returns a configurable factory for bootstrapping from a vault snapshot.
func VaultBootstrap(keeper subsystems.VaultKeeper) *VaultBootstrapBuilder {
	return &VaultBootstrapBuilder{keeper: keeper}
}

// CreateBootstrapStrategy is called by the client to create the strategy instance.
func (b *VaultBootstrapBuilder) CreateBootstrapStrategy(
	context subsystems.ClientContext,
) (subsystems.BootstrapStrategy, error) {
	if b.keeper == nil {
		return nil, errors.New("vault bootstrap requires a VaultKeeper")
	}
	return bootstrap.NewVaultStrategy(b.keeper, context.Loggers), nil
}

// FallbackBootstrapBuilder configures server-first bootstrap with a vault fallback: the
// server is tried first, and on any failure the vault snapshot is restored instead.
type FallbackBootstrapBuilder struct {
	keeper subsystems.VaultKeeper
	server *ServerBootstrapBuilder
}

// FallbackBootstrap returns a configurable factory for server-first bootstrap with
// vault fallback.
func FallbackBootstrap(keeper subsystems.VaultKeeper) *FallbackBootstrapBuilder {
	return &FallbackBootstrapBuilder{keeper: keeper, server: ServerBootstrap()}
}

// MaxRetries configures the inner server bootstrap's retry bound.
func (b *FallbackBootstrapBuilder) MaxRetries(maxRetries int) *FallbackBootstrapBuilder {
	b.server.MaxRetries(maxRetries)
	return b
}

// RetryDelay configures the inner server bootstrap's retry delay.
func (b *FallbackBootstrapBuilder) RetryDelay(retryDelay time.Duration) *FallbackBootstrapBuilder {
	b.server.RetryDelay(retryDelay)
	return b
}

// CreateBootstrapStrategy is called by the client to create the strategy instance.
func (b *FallbackBootstrapBuilder) CreateBootstrapStrategy(
	context subsystems.ClientContext,
) (subsystems.BootstrapStrategy, error) {
	if b.keeper == nil {
		return nil, errors.New("fallback bootstrap requires a VaultKeeper")
	}
	server, err := b.server.CreateBootstrapStrategy(context)
	if err != nil {
		return nil, err
	}
	vault := bootstrap.NewVaultStrategy(b.keeper, context.Loggers)
	return bootstrap.NewServerFirstStrategy(server, vault, context.Loggers), nil
}

// HybridBootstrapBuilder configures vault-first bootstrap with server catch-up: the
// snapshot is restored first, namespaces it did not cover are fully fetched from the
// server, and covered namespaces are caught up with one incremental fetch each.
type HybridBootstrapBuilder struct {
	keeper subsystems.VaultKeeper
	server *ServerBootstrapBuilder
}

// HybridBootstrap returns a configurable factory for vault-first bootstrap with server
// catch-up.
func HybridBootstrap(keeper subsystems.VaultKeeper) *HybridBootstrapBuilder {
	return &HybridBootstrapBuilder{keeper: keeper, server: ServerBootstrap()}
}

// MaxRetries configures the inner server bootstrap's retry bound.
func (b *HybridBootstrapBuilder) MaxRetries(maxRetries int) *HybridBootstrapBuilder {
	b.server.MaxRetries(maxRetries)
	return b
}

// RetryDelay configures the inner server bootstrap's retry delay.
func (b *HybridBootstrapBuilder) RetryDelay(retryDelay time.Duration) *HybridBootstrapBuilder {
	b.server.RetryDelay(retryDelay)
	return b
}

// CreateBootstrapStrategy is called by the client to create the strategy instance.
func (b *HybridBootstrapBuilder) CreateBootstrapStrategy(
	context subsystems.ClientContext,
) (subsystems.BootstrapStrategy, error) {
	if b.keeper == nil {
		return nil, errors.New("hybrid bootstrap requires a VaultKeeper")
	}
	server, err := b.server.CreateBootstrapStrategy(context)
	if err != nil {
		return nil, err
	}
	vault := bootstrap.NewVaultStrategy(b.keeper, context.Loggers)
	return bootstrap.NewVaultFirstStrategy(vault, server, context.Transport, context.Loggers), nil
}
