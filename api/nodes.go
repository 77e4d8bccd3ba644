package api

import (
	"fmt"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// Nodes is used to access the node endpoints
type Nodes struct {
	client *Client
}

// Nodes returns a handle on the node endpoints
func (c *Client) Nodes() *Nodes {
	return &Nodes{client: c}
}

// Claim registers a node's public key under the configured user.
func (n *Nodes) Claim(publicKey, name string) (*structs.NodeClaimResponse, error) {
	req := &structs.NodeClaimRequest{PublicKey: publicKey, Name: name}
	var out structs.NodeClaimResponse
	if err := n.client.post("/nodes/claim", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping reports node liveness, optionally refreshing capabilities.
func (n *Nodes) Ping(signer *NodeSigner, update *structs.NodePingUpdate) (*structs.NodePingResponse, error) {
	req := &structs.NodePingRequest{SignatureEnvelope: signer.Envelope()}
	if update != nil {
		req.NodePingUpdate = *update
	}
	var out structs.NodePingResponse
	if err := n.client.post("/nodes/ping", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the configured user's nodes.
func (n *Nodes) List() ([]*structs.Node, error) {
	var out structs.NodeListResponse
	if err := n.client.get("/nodes", &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

// Public returns the publicly visible nodes and the online total.
func (n *Nodes) Public() (*structs.PublicNodeListResponse, error) {
	var out structs.PublicNodeListResponse
	if err := n.client.get("/nodes/public", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetVisibility toggles whether one of the user's nodes appears in the
// public listing.
func (n *Nodes) SetVisibility(nodeID string, isPublic bool) (*structs.NodeVisibilityResponse, error) {
	req := &structs.NodeVisibilityRequest{IsPublic: isPublic}
	var out structs.NodeVisibilityResponse
	if err := n.client.put(fmt.Sprintf("/nodes/%s/visibility", nodeID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
