package api

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/gridllm/gridllm/coordinator/identity"
	"github.com/gridllm/gridllm/coordinator/structs"
)

// NodeSigner produces signature envelopes for a node's ed25519 key. Worker
// nodes construct one at startup and reuse it for every authenticated call.
type NodeSigner struct {
	nodeID string
	priv   ed25519.PrivateKey
}

// NewNodeSigner derives the node id from the private key's public half.
func NewNodeSigner(priv ed25519.PrivateKey) (*NodeSigner, error) {
	pub := base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey))
	nodeID, err := identity.Fingerprint(pub)
	if err != nil {
		return nil, err
	}
	return &NodeSigner{nodeID: nodeID, priv: priv}, nil
}

// NodeID returns the fingerprint-derived node id.
func (s *NodeSigner) NodeID() string {
	return s.nodeID
}

// Envelope returns a fresh signed envelope for the current time.
func (s *NodeSigner) Envelope() structs.SignatureEnvelope {
	return *identity.Sign(s.nodeID, s.priv, time.Now())
}
