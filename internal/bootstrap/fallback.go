package bootstrap

import (
	"context"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/subsystems"
)

// ServerFirstStrategy attempts a server bootstrap and, if it fails for any reason, falls
// back to the vault. If the vault attempt also fails, the vault's error is surfaced,
// since it was the last resort.
type ServerFirstStrategy struct {
	server  subsystems.BootstrapStrategy
	vault   subsystems.BootstrapStrategy
	loggers ldlog.Loggers
}

// NewServerFirstStrategy creates a ServerFirstStrategy.
func NewServerFirstStrategy(
	server subsystems.BootstrapStrategy,
	vault subsystems.BootstrapStrategy,
	loggers ldlog.Loggers,
) *ServerFirstStrategy {
	return &ServerFirstStrategy{server: server, vault: vault, loggers: loggers}
}

// Bootstrap runs the server strategy, then the vault strategy if the server failed.
func (s *ServerFirstStrategy) Bootstrap(ctx context.Context, namespaces []string) (subsystems.BootstrapResult, error) {
	result, err := s.server.Bootstrap(ctx, namespaces)
	if err == nil {
		return result, nil
	}
	s.loggers.Warnf("Server bootstrap failed, falling back to vault: %s", err)

	result, vaultErr := s.vault.Bootstrap(ctx, namespaces)
	if vaultErr != nil {
		s.loggers.Errorf("Vault fallback also failed: %s", vaultErr)
		return subsystems.BootstrapResult{}, vaultErr
	}
	return result, nil
}
