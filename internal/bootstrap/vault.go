package bootstrap

import (
	"context"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/subsystems"
)

// VaultStrategy bootstraps from a previously persisted vault snapshot instead of the
// server. The snapshot carries one global sync token; every requested namespace starts
// with that token as its cursor, including namespaces the snapshot has no items for
// (those simply begin empty). Namespaces discovered in the snapshot items beyond the
// requested set get the token as well.
type VaultStrategy struct {
	keeper  subsystems.VaultKeeper
	loggers ldlog.Loggers
}

// NewVaultStrategy creates a VaultStrategy.
func NewVaultStrategy(keeper subsystems.VaultKeeper, loggers ldlog.Loggers) *VaultStrategy {
	return &VaultStrategy{keeper: keeper, loggers: loggers}
}

// Bootstrap restores the snapshot and assigns cursors.
func (s *VaultStrategy) Bootstrap(ctx context.Context, namespaces []string) (subsystems.BootstrapResult, error) {
	s.loggers.Info("Bootstrapping from vault snapshot")

	snapshot, err := s.keeper.RestoreSnapshot(ctx)
	if err != nil {
		return subsystems.BootstrapResult{}, err
	}

	cursors := make(map[string]string)
	if snapshot.SyncToken != "" {
		for _, ns := range namespaces {
			cursors[ns] = snapshot.SyncToken
		}
		for _, family := range snapshot.Items {
			if _, ok := cursors[family.Namespace]; !ok {
				cursors[family.Namespace] = snapshot.SyncToken
			}
		}
	}

	s.loggers.Infof("Loaded %d items from vault snapshot (sync token %q)", len(snapshot.Items), snapshot.SyncToken)

	return subsystems.BootstrapResult{FigFamilies: snapshot.Items, Cursors: cursors}, nil
}
