package fcvault

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/figchain/go-client-sdk/fcmodel"
)

const (
	// DefaultDEKCacheTTL bounds how long an unwrapped data key is kept. Unwrapping is an
	// RSA private-key operation, far more expensive than the AES open it enables, so keys
	// are reused across reads of the same fig.
	DefaultDEKCacheTTL = 15 * time.Minute

	dekCacheCleanupInterval = 5 * time.Minute
)

// EnvelopeDecrypter implements subsystems.PayloadDecrypter for figs whose payloads are
// envelope-encrypted: the payload is sealed with AES-GCM under a per-fig data key, and
// the data key travels with the fig, wrapped with RSA-OAEP for a key in the ring.
//
// Unwrapped data keys are cached with a TTL so repeated evaluations of the same fig do
// not repeat the RSA operation.
type EnvelopeDecrypter struct {
	keys     *KeyRing
	dekCache *gocache.Cache
}

// NewEnvelopeDecrypter creates an EnvelopeDecrypter. ttl <= 0 means DefaultDEKCacheTTL.
func NewEnvelopeDecrypter(keys *KeyRing, ttl time.Duration) *EnvelopeDecrypter {
	if ttl <= 0 {
		ttl = DefaultDEKCacheTTL
	}
	return &EnvelopeDecrypter{
		keys:     keys,
		dekCache: gocache.New(ttl, dekCacheCleanupInterval),
	}
}

// Decrypt implements subsystems.PayloadDecrypter.
func (d *EnvelopeDecrypter) Decrypt(fig fcmodel.Fig, namespace string) ([]byte, error) {
	if !fig.Encrypted {
		return fig.Payload, nil
	}
	if len(fig.WrappedDEK) == 0 {
		return nil, fmt.Errorf("fig %s in namespace %s is marked encrypted but carries no wrapped data key", fig.ID, namespace)
	}

	dek, err := d.dataKey(fig)
	if err != nil {
		return nil, fmt.Errorf("decrypting fig %s in namespace %s: %w", fig.ID, namespace, err)
	}
	plaintext, err := DecryptPayload(dek, fig.Payload)
	if err != nil {
		return nil, fmt.Errorf("decrypting fig %s in namespace %s: %w", fig.ID, namespace, err)
	}
	return plaintext, nil
}

func (d *EnvelopeDecrypter) dataKey(fig fcmodel.Fig) ([]byte, error) {
	cacheKey := dekCacheKey(fig)
	if cached, ok := d.dekCache.Get(cacheKey); ok {
		return cached.([]byte), nil
	}

	priv, ok := d.keys.Get(fig.KeyID)
	if !ok {
		return nil, fmt.Errorf("no private key for key ID %s", fig.KeyID)
	}
	dek, err := UnwrapDEK(priv, fig.WrappedDEK)
	if err != nil {
		return nil, err
	}
	d.dekCache.Set(cacheKey, dek, gocache.DefaultExpiration)
	return dek, nil
}

// dekCacheKey identifies a wrapped data key by content, so a fig republished with a
// rotated data key never hits a stale cache entry.
func dekCacheKey(fig fcmodel.Fig) string {
	sum := sha256.Sum256(fig.WrappedDEK)
	return fig.KeyID + ":" + hex.EncodeToString(sum[:])
}
