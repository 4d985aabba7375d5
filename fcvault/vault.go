// Package fcvault restores FigChain configuration from cold-storage backups and opens
// envelope-encrypted payloads.
//
// A vault snapshot is a JSON envelope persisted by the backup pipeline. When the
// envelope carries a wrapped data key, the snapshot body is sealed with AES-GCM and the
// data key is unwrapped with a local RSA private key; a plaintext body is also accepted.
// The decrypted body holds the tenant, the sync token marking the backup's point in
// time, and the full family list.
package fcvault

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/subsystems"
)

// Vault implements subsystems.VaultKeeper over a BlobFetcher and a KeyRing.
type Vault struct {
	fetcher BlobFetcher
	keys    *KeyRing
	loggers ldlog.Loggers
}

// NewVault creates a Vault. keys may be nil if snapshots are known to be plaintext.
func NewVault(fetcher BlobFetcher, keys *KeyRing, loggers ldlog.Loggers) *Vault {
	return &Vault{fetcher: fetcher, keys: keys, loggers: loggers}
}

// RestoreSnapshot implements subsystems.VaultKeeper.
func (v *Vault) RestoreSnapshot(ctx context.Context) (subsystems.VaultSnapshot, error) {
	blob, err := v.fetcher.Fetch(ctx)
	if err != nil {
		return subsystems.VaultSnapshot{}, fmt.Errorf("fetching vault snapshot: %w", err)
	}

	envelope, err := parseSnapshotEnvelope(blob)
	if err != nil {
		return subsystems.VaultSnapshot{}, fmt.Errorf("malformed vault envelope: %w", err)
	}

	body := envelope.plaintext
	if len(envelope.wrappedDEK) > 0 {
		if v.keys == nil {
			return subsystems.VaultSnapshot{}, fmt.Errorf("snapshot is encrypted with key %s and no key ring is configured", envelope.keyID)
		}
		priv, ok := v.keys.Get(envelope.keyID)
		if !ok {
			return subsystems.VaultSnapshot{}, fmt.Errorf("no private key for key ID %s", envelope.keyID)
		}
		dek, err := UnwrapDEK(priv, envelope.wrappedDEK)
		if err != nil {
			return subsystems.VaultSnapshot{}, err
		}
		body, err = DecryptPayload(dek, envelope.sealed)
		if err != nil {
			return subsystems.VaultSnapshot{}, err
		}
	}

	snapshot, err := parseSnapshotBody(body)
	if err != nil {
		return subsystems.VaultSnapshot{}, fmt.Errorf("malformed vault snapshot: %w", err)
	}
	v.loggers.Infof("Restored vault snapshot for tenant %s generated at %s with %d families",
		snapshot.TenantID, snapshot.GeneratedAt, len(snapshot.Items))
	return snapshot, nil
}

// snapshotEnvelope is the outer wire shape of a persisted snapshot. Exactly one of
// plaintext or (wrappedDEK, sealed) is populated.
type snapshotEnvelope struct {
	keyID      string
	wrappedDEK []byte
	sealed     []byte
	plaintext  []byte
}

func parseSnapshotEnvelope(data []byte) (snapshotEnvelope, error) {
	var env snapshotEnvelope
	r := jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "keyId":
			env.keyID = r.String()
		case "wrappedDek":
			env.wrappedDEK = readBase64(&r)
		case "sealed":
			env.sealed = readBase64(&r)
		case "snapshot":
			env.plaintext = readBase64(&r)
		default:
			_ = r.SkipValue()
		}
	}
	return env, r.Error()
}

func parseSnapshotBody(data []byte) (subsystems.VaultSnapshot, error) {
	var snapshot subsystems.VaultSnapshot
	r := jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "tenantId":
			snapshot.TenantID = r.String()
		case "generatedAt":
			snapshot.GeneratedAt = r.String()
		case "syncToken":
			snapshot.SyncToken = r.String()
		case "items":
			snapshot.Items = fcmodel.ReadFigFamiliesArray(&r)
		default:
			_ = r.SkipValue()
		}
	}
	return snapshot, r.Error()
}

func readBase64(r *jreader.Reader) []byte {
	s, nonNull := r.StringOrNull()
	if !nonNull || s == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		r.AddError(err)
		return nil
	}
	return data
}
