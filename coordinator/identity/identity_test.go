package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridllm/gridllm/coordinator/structs"
)

func testKey(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(pub), priv
}

func TestFingerprint(t *testing.T) {
	pubKey, _ := testKey(t)

	fp, err := Fingerprint(pubKey)
	require.NoError(t, err)
	require.Len(t, fp, FingerprintLen)
	require.Regexp(t, "^[0-9a-f]+$", fp)

	// Deterministic.
	again, err := Fingerprint(pubKey)
	require.NoError(t, err)
	require.Equal(t, fp, again)

	_, err = Fingerprint("not!!base64")
	require.Error(t, err)
}

func TestFingerprint_NoCollisions(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		fp, err := Fingerprint(base64.StdEncoding.EncodeToString(pub))
		require.NoError(t, err)
		if _, dup := seen[fp]; dup {
			t.Fatalf("fingerprint collision after %d keys: %s", i, fp)
		}
		seen[fp] = struct{}{}
	}
}

func TestVerifyEnvelope(t *testing.T) {
	pubKey, priv := testKey(t)
	nodeID, err := Fingerprint(pubKey)
	require.NoError(t, err)

	v := NewVerifier(5 * time.Minute)

	env := Sign(nodeID, priv, time.Now())
	verified, err := v.VerifyEnvelope(env)
	require.NoError(t, err)
	require.Equal(t, nodeID, verified.NodeID)
	require.Equal(t, pubKey, verified.PublicKey)
	require.Equal(t, env.Timestamp, verified.Timestamp)
}

func TestVerifyEnvelope_MissingFields(t *testing.T) {
	v := NewVerifier(5 * time.Minute)

	cases := []*structs.SignatureEnvelope{
		nil,
		{},
		{NodeID: "abc", PublicKey: "def", Signature: "ghi"}, // no timestamp
		{NodeID: "abc", PublicKey: "def", Timestamp: 1},     // no signature
	}
	for _, env := range cases {
		_, err := v.VerifyEnvelope(env)
		require.ErrorIs(t, err, structs.ErrMissingSignatureFields)
	}
}

func TestVerifyEnvelope_StaleTimestamp(t *testing.T) {
	pubKey, priv := testKey(t)
	nodeID, err := Fingerprint(pubKey)
	require.NoError(t, err)

	v := NewVerifier(5 * time.Minute)

	// Too old.
	env := Sign(nodeID, priv, time.Now().Add(-10*time.Minute))
	_, err = v.VerifyEnvelope(env)
	require.ErrorIs(t, err, structs.ErrStaleTimestamp)

	// Too far in the future counts as stale too.
	env = Sign(nodeID, priv, time.Now().Add(10*time.Minute))
	_, err = v.VerifyEnvelope(env)
	require.ErrorIs(t, err, structs.ErrStaleTimestamp)
}

func TestVerifyEnvelope_BadSignature(t *testing.T) {
	pubKey, priv := testKey(t)
	nodeID, err := Fingerprint(pubKey)
	require.NoError(t, err)

	v := NewVerifier(5 * time.Minute)

	// Tampered timestamp invalidates the signature.
	env := Sign(nodeID, priv, time.Now())
	env.Timestamp++
	_, err = v.VerifyEnvelope(env)
	require.ErrorIs(t, err, structs.ErrInvalidSignature)

	// Garbage signature bytes.
	env = Sign(nodeID, priv, time.Now())
	env.Signature = base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))
	_, err = v.VerifyEnvelope(env)
	require.ErrorIs(t, err, structs.ErrInvalidSignature)

	// Signature of the wrong size.
	env = Sign(nodeID, priv, time.Now())
	env.Signature = base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = v.VerifyEnvelope(env)
	require.ErrorIs(t, err, structs.ErrInvalidSignature)
}

func TestVerifyEnvelope_NodeIDBinding(t *testing.T) {
	_, priv := testKey(t)
	otherKey, _ := testKey(t)
	otherID, err := Fingerprint(otherKey)
	require.NoError(t, err)

	v := NewVerifier(5 * time.Minute)

	// A valid signature over someone else's node id must not verify.
	env := Sign(otherID, priv, time.Now())
	_, err = v.VerifyEnvelope(env)
	require.ErrorIs(t, err, structs.ErrInvalidSignature)
}

func TestSignedMessage(t *testing.T) {
	env := &structs.SignatureEnvelope{NodeID: "abcdef123456", Timestamp: 1700000000000}
	require.Equal(t, "abcdef123456:1700000000000", env.SignedMessage())
}
