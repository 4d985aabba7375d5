package fcvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
)

// LoadPrivateKey parses an RSA private key from PEM data, accepting both PKCS#1
// ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") encodings.
func LoadPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in key data")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// KeyFingerprint derives the key ID for an RSA public key: the hex SHA-256 of its PKIX
// encoding. The server derives key IDs the same way, so a fig's KeyID can be matched to
// a local private key without any registry.
func KeyFingerprint(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:]), nil
}

// UnwrapDEK recovers a data encryption key wrapped with RSA-OAEP (SHA-256).
func UnwrapDEK(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	dek, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrapping data key: %w", err)
	}
	return dek, nil
}

// DecryptPayload opens an AES-GCM sealed payload. The nonce is prefixed to the
// ciphertext.
func DecryptPayload(dek, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed payload shorter than nonce")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	return plaintext, nil
}

// KeyRing holds the private keys available for unwrapping, indexed by fingerprint.
// It is safe for concurrent use.
type KeyRing struct {
	lock sync.RWMutex
	keys map[string]*rsa.PrivateKey
}

// NewKeyRing creates an empty KeyRing.
func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[string]*rsa.PrivateKey)}
}

// Add registers a private key and returns its fingerprint.
func (k *KeyRing) Add(priv *rsa.PrivateKey) (string, error) {
	fingerprint, err := KeyFingerprint(&priv.PublicKey)
	if err != nil {
		return "", err
	}
	k.lock.Lock()
	k.keys[fingerprint] = priv
	k.lock.Unlock()
	return fingerprint, nil
}

// AddPEM parses and registers a private key from PEM data, returning its fingerprint.
func (k *KeyRing) AddPEM(pemData []byte) (string, error) {
	priv, err := LoadPrivateKey(pemData)
	if err != nil {
		return "", err
	}
	return k.Add(priv)
}

// Get returns the private key with the given fingerprint, if present.
func (k *KeyRing) Get(keyID string) (*rsa.PrivateKey, bool) {
	k.lock.RLock()
	priv, ok := k.keys[keyID]
	k.lock.RUnlock()
	return priv, ok
}
