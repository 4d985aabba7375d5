package bootstrap

import (
	"context"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/subsystems"
)

// VaultFirstStrategy restores from the vault first, then reconciles against the server:
// namespaces the snapshot did not cover (no cursor) get a full server bootstrap, and
// namespaces it did cover get one incremental fetch from the snapshot's cursor to catch
// up to the present.
//
// Unlike the pure server strategy, failures here degrade softly. A failed server
// bootstrap of uncovered namespaces leaves them absent; a failed catch-up leaves that
// namespace on the snapshot's state. Both are logged, neither fails the bootstrap.
type VaultFirstStrategy struct {
	vault     subsystems.BootstrapStrategy
	server    subsystems.BootstrapStrategy
	transport subsystems.Transport
	loggers   ldlog.Loggers
}

// NewVaultFirstStrategy creates a VaultFirstStrategy.
func NewVaultFirstStrategy(
	vault subsystems.BootstrapStrategy,
	server subsystems.BootstrapStrategy,
	transport subsystems.Transport,
	loggers ldlog.Loggers,
) *VaultFirstStrategy {
	return &VaultFirstStrategy{vault: vault, server: server, transport: transport, loggers: loggers}
}

// Bootstrap restores the snapshot, backfills uncovered namespaces, and catches up the
// covered ones.
func (s *VaultFirstStrategy) Bootstrap(ctx context.Context, namespaces []string) (subsystems.BootstrapResult, error) {
	vaultResult, err := s.vault.Bootstrap(ctx, namespaces)
	if err != nil {
		return subsystems.BootstrapResult{}, err
	}

	allFamilies := make([]fcmodel.FigFamily, 0, len(vaultResult.FigFamilies))
	allFamilies = append(allFamilies, vaultResult.FigFamilies...)
	cursors := make(map[string]string, len(vaultResult.Cursors))
	for ns, cursor := range vaultResult.Cursors {
		cursors[ns] = cursor
	}

	var missing []string
	for _, ns := range namespaces {
		if _, ok := cursors[ns]; !ok {
			missing = append(missing, ns)
		}
	}

	if len(missing) > 0 {
		s.loggers.Warnf("Vault snapshot has no cursor for namespaces %v, performing initial fetch from server", missing)
		serverResult, serverErr := s.server.Bootstrap(ctx, missing)
		if serverErr != nil {
			// Partial success beats total failure; the namespaces restored from the vault
			// are still valid.
			s.loggers.Errorf("Initial fetch for namespaces %v failed: %s", missing, serverErr)
		} else {
			allFamilies = append(allFamilies, serverResult.FigFamilies...)
			for ns, cursor := range serverResult.Cursors {
				cursors[ns] = cursor
			}
		}
	}

	s.loggers.Info("Catching up from server for vault-covered namespaces")
	for _, ns := range namespaces {
		cursor, wasInVault := vaultResult.Cursors[ns]
		if !wasInVault || cursor == "" {
			// Namespaces missing from the vault were just fully fetched; nothing to catch up.
			continue
		}
		s.loggers.Debugf("Fetching updates for namespace %s from cursor %s", ns, cursor)
		resp, fetchErr := s.transport.FetchUpdates(ctx, ns, cursor)
		if fetchErr != nil {
			s.loggers.Warnf("Failed to catch up namespace %s, proceeding with vault data: %s", ns, fetchErr)
			continue
		}
		allFamilies = append(allFamilies, resp.FigFamilies...)
		if resp.Cursor != "" {
			cursors[ns] = resp.Cursor
		}
	}

	return subsystems.BootstrapResult{FigFamilies: allFamilies, Cursors: cursors}, nil
}
