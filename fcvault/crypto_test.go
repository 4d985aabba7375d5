package fcvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figchain/go-client-sdk/fcmodel"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv
}

func wrapDEK(t *testing.T, pub *rsa.PublicKey, dek []byte) []byte {
	t.Helper()
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, dek, nil)
	require.NoError(t, err)
	return wrapped
}

func sealPayload(t *testing.T, dek, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(dek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := make([]byte, gcm.NonceSize())
	_, err = rand.Read(nonce)
	require.NoError(t, err)
	return gcm.Seal(nonce, nonce, plaintext, nil)
}

func newDEK(t *testing.T) []byte {
	t.Helper()
	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)
	return dek
}

func TestLoadPrivateKeyPKCS1AndPKCS8(t *testing.T) {
	priv := generateKey(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	loaded, err := LoadPrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, priv.Equal(loaded))

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	loaded, err = LoadPrivateKey(pkcs8)
	require.NoError(t, err)
	assert.True(t, priv.Equal(loaded))
}

func TestLoadPrivateKeyRejectsGarbage(t *testing.T) {
	_, err := LoadPrivateKey([]byte("not pem at all"))
	assert.Error(t, err)

	_, err = LoadPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	assert.ErrorContains(t, err, "unsupported PEM block type")
}

func TestKeyFingerprintIsStable(t *testing.T) {
	priv := generateKey(t)
	f1, err := KeyFingerprint(&priv.PublicKey)
	require.NoError(t, err)
	f2, err := KeyFingerprint(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64, "hex SHA-256")

	other := generateKey(t)
	f3, err := KeyFingerprint(&other.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, f1, f3)
}

func TestUnwrapAndDecryptRoundTrip(t *testing.T) {
	priv := generateKey(t)
	dek := newDEK(t)
	plaintext := []byte(`{"rps": 100}`)

	wrapped := wrapDEK(t, &priv.PublicKey, dek)
	sealed := sealPayload(t, dek, plaintext)

	unwrapped, err := UnwrapDEK(priv, wrapped)
	require.NoError(t, err)
	assert.Equal(t, dek, unwrapped)

	opened, err := DecryptPayload(unwrapped, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestDecryptPayloadRejectsTamperedCiphertext(t *testing.T) {
	dek := newDEK(t)
	sealed := sealPayload(t, dek, []byte("data"))
	sealed[len(sealed)-1] ^= 0x01

	_, err := DecryptPayload(dek, sealed)
	assert.Error(t, err)
}

func TestDecryptPayloadRejectsTruncatedInput(t *testing.T) {
	dek := newDEK(t)
	_, err := DecryptPayload(dek, []byte{1, 2, 3})
	assert.ErrorContains(t, err, "shorter than nonce")
}

func TestKeyRing(t *testing.T) {
	ring := NewKeyRing()
	priv := generateKey(t)

	fingerprint, err := ring.Add(priv)
	require.NoError(t, err)

	got, ok := ring.Get(fingerprint)
	assert.True(t, ok)
	assert.Same(t, priv, got)

	_, ok = ring.Get("unknown")
	assert.False(t, ok)
}

func TestKeyRingAddPEM(t *testing.T) {
	ring := NewKeyRing()
	priv := generateKey(t)
	pemData := pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	fingerprint, err := ring.AddPEM(pemData)
	require.NoError(t, err)

	want, err := KeyFingerprint(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, want, fingerprint)
}

func TestEnvelopeDecrypter(t *testing.T) {
	priv := generateKey(t)
	ring := NewKeyRing()
	keyID, err := ring.Add(priv)
	require.NoError(t, err)

	dek := newDEK(t)
	plaintext := []byte(`{"secret": true}`)
	fig := fcmodel.Fig{
		ID: "f1", Version: "v1",
		Payload:    sealPayload(t, dek, plaintext),
		Encrypted:  true,
		KeyID:      keyID,
		WrappedDEK: wrapDEK(t, &priv.PublicKey, dek),
	}

	d := NewEnvelopeDecrypter(ring, 0)

	opened, err := d.Decrypt(fig, "secrets")
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	// Second decrypt hits the data key cache; the result must be identical.
	opened, err = d.Decrypt(fig, "secrets")
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestEnvelopeDecrypterPassesThroughUnencryptedFig(t *testing.T) {
	d := NewEnvelopeDecrypter(NewKeyRing(), 0)
	payload, err := d.Decrypt(fcmodel.Fig{Payload: []byte("plain")}, "ns")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), payload)
}

func TestEnvelopeDecrypterErrors(t *testing.T) {
	d := NewEnvelopeDecrypter(NewKeyRing(), 0)

	_, err := d.Decrypt(fcmodel.Fig{ID: "f1", Encrypted: true}, "ns")
	assert.ErrorContains(t, err, "no wrapped data key")

	_, err = d.Decrypt(fcmodel.Fig{
		ID: "f1", Encrypted: true, KeyID: "unknown", WrappedDEK: []byte("x"),
	}, "ns")
	assert.ErrorContains(t, err, "no private key")
}
