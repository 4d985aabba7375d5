// Package subsystems defines the interfaces between the FigChain client core and the
// pluggable components it is composed from: the wire transport, the vault (cold-storage
// backup) keeper, payload decryption, and the bootstrap and polling strategies.
//
// Applications normally do not implement these interfaces themselves; they select
// implementations through the builders in the fccomponents package.
package subsystems

import (
	"context"
	"time"

	"github.com/figchain/go-client-sdk/fcmodel"
)

// Transport is the wire protocol client consumed by the sync engine. Implementations
// must be safe for concurrent use; the client issues fetches for different namespaces
// in parallel.
type Transport interface {
	// FetchInitial performs the full first load for one namespace, returning the complete
	// family list and the starting cursor. asOfTimestamp may be empty.
	FetchInitial(ctx context.Context, namespace, environmentID, asOfTimestamp string) (fcmodel.InitialFetchResponse, error)

	// FetchUpdates returns families changed since cursor, along with the advanced cursor.
	FetchUpdates(ctx context.Context, namespace, cursor string) (fcmodel.UpdateFetchResponse, error)

	// Close releases any underlying connections. The transport is unusable afterward.
	Close() error
}

// LongPollTransport is a Transport whose update fetch can be held open by the server
// until data is available or the hold time elapses. A hold-timeout is not an error: the
// response carries the unchanged cursor and no families.
type LongPollTransport interface {
	Transport

	// FetchUpdatesLongPoll behaves like FetchUpdates but blocks for up to holdTime on the
	// server side waiting for changes.
	FetchUpdatesLongPoll(ctx context.Context, namespace, cursor string, holdTime time.Duration) (fcmodel.UpdateFetchResponse, error)
}

// VaultKeeper restores a previously persisted snapshot of configuration data from cold
// storage, already decrypted.
type VaultKeeper interface {
	RestoreSnapshot(ctx context.Context) (VaultSnapshot, error)
}

// VaultSnapshot is the decrypted content of a vault backup: the families it contained
// and the single sync token that marks the point in time the backup was taken.
type VaultSnapshot struct {
	TenantID    string
	GeneratedAt string
	SyncToken   string
	Items       []fcmodel.FigFamily
}

// PayloadDecrypter decrypts the payload of an envelope-encrypted fig. It is consulted by
// callers after evaluation; the evaluator itself never looks inside payloads.
type PayloadDecrypter interface {
	Decrypt(fig fcmodel.Fig, namespace string) ([]byte, error)
}
