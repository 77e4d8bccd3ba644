// Package identity derives node identities from public keys and verifies the
// signature envelopes carried by node-authenticated calls. Verification is a
// pure function: no store access, no side effects.
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// FingerprintLen is the number of hex characters in a node id. 48 bits keeps
// random collisions negligible for fleets well past 10^4 nodes.
const FingerprintLen = 12

// Fingerprint derives the short node id from a base64-encoded public key.
// The id is the leading hex of the key's SHA-256. The same key always maps
// to the same id; two different keys colliding on an id is resolved at claim
// time by rejecting the second key.
func Fingerprint(publicKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return "", fmt.Errorf("malformed public key encoding: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:FingerprintLen], nil
}

// Verified is the request-local record of a proven node identity, handed to
// downstream operations after envelope verification.
type Verified struct {
	NodeID    string
	PublicKey string
	Timestamp int64
}

// Verifier checks signature envelopes against a freshness window.
type Verifier struct {
	window time.Duration
	nowFn  func() time.Time
}

// NewVerifier returns a verifier with the given timestamp freshness window.
func NewVerifier(window time.Duration) *Verifier {
	return &Verifier{window: window, nowFn: time.Now}
}

// VerifyEnvelope checks that the envelope is complete, fresh, and that its
// signature covers "{nodeId}:{timestamp}" under the enclosed public key.
func (v *Verifier) VerifyEnvelope(env *structs.SignatureEnvelope) (*Verified, error) {
	if env == nil || env.NodeID == "" || env.PublicKey == "" ||
		env.Signature == "" || env.Timestamp == 0 {
		return nil, structs.ErrMissingSignatureFields
	}

	now := v.nowFn().UnixMilli()
	skew := now - env.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > v.window.Milliseconds() {
		return nil, structs.ErrStaleTimestamp
	}

	pub, err := base64.StdEncoding.DecodeString(env.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, structs.ErrInvalidSignature
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, structs.ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(env.SignedMessage()), sig) {
		return nil, structs.ErrInvalidSignature
	}

	// The claimed node id must be derived from the signing key, otherwise a
	// valid signature could speak for someone else's node.
	fp, err := Fingerprint(env.PublicKey)
	if err != nil || fp != env.NodeID {
		return nil, structs.ErrInvalidSignature
	}

	return &Verified{
		NodeID:    env.NodeID,
		PublicKey: env.PublicKey,
		Timestamp: env.Timestamp,
	}, nil
}

// Sign produces a wire-ready envelope for a node's private key. Mainly used
// by the API client and tests; the coordinator itself only verifies.
func Sign(nodeID string, priv ed25519.PrivateKey, at time.Time) *structs.SignatureEnvelope {
	env := &structs.SignatureEnvelope{
		NodeID:    nodeID,
		PublicKey: base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)),
		Timestamp: at.UnixMilli(),
	}
	sig := ed25519.Sign(priv, []byte(env.SignedMessage()))
	env.Signature = base64.StdEncoding.EncodeToString(sig)
	return env
}
