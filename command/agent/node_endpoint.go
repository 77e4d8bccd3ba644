package agent

import (
	"net/http"
	"strings"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// NodesRequest lists the calling user's nodes
func (s *HTTPServer) NodesRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	userID, err := s.parseUser(req)
	if err != nil {
		return nil, err
	}

	nodes, err := s.agent.coordinator.ListNodesForUser(req.Context(), userID)
	if err != nil {
		return nil, err
	}
	return &structs.NodeListResponse{Nodes: nodes}, nil
}

// NodeClaimRequest binds a node's key fingerprint to the calling user
func (s *HTTPServer) NodeClaimRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	userID, err := s.parseUser(req)
	if err != nil {
		return nil, err
	}

	var args structs.NodeClaimRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}
	if args.PublicKey == "" {
		return nil, CodedError(http.StatusBadRequest, "missing public key for node claim")
	}
	if args.Name == "" {
		return nil, CodedError(http.StatusBadRequest, "missing name for node claim")
	}

	node, err := s.agent.coordinator.ClaimNode(req.Context(), args.PublicKey, args.Name, userID)
	if err != nil {
		return nil, err
	}
	return &structs.NodeClaimResponse{
		Success: true,
		NodeID:  node.ID,
		Status:  node.Status,
	}, nil
}

// NodePingRequest records node liveness under a verified signature
func (s *HTTPServer) NodePingRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}

	var args structs.NodePingRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}
	verified, err := s.verifyNode(&args.SignatureEnvelope)
	if err != nil {
		return nil, err
	}

	node, err := s.agent.coordinator.PingNode(req.Context(), verified, &args.NodePingUpdate)
	if err != nil {
		return nil, err
	}
	return &structs.NodePingResponse{Success: true, Status: node.Status}, nil
}

// NodePublicRequest lists publicly visible nodes, no auth required
func (s *HTTPServer) NodePublicRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}

	nodes, totalOnline, err := s.agent.coordinator.ListPublicNodes(req.Context(), structs.DefaultPublicNodeListSize)
	if err != nil {
		return nil, err
	}
	return &structs.PublicNodeListResponse{Nodes: nodes, TotalOnline: totalOnline}, nil
}

// NodeSpecificRequest routes /nodes/{id}/... operations
func (s *HTTPServer) NodeSpecificRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	path := strings.TrimPrefix(req.URL.Path, "/nodes/")
	switch {
	case strings.HasSuffix(path, "/visibility"):
		nodeID := strings.TrimSuffix(path, "/visibility")
		return s.nodeVisibilityRequest(resp, req, nodeID)
	default:
		return nil, CodedError(http.StatusNotFound, "unknown node endpoint")
	}
}

func (s *HTTPServer) nodeVisibilityRequest(resp http.ResponseWriter, req *http.Request, nodeID string) (interface{}, error) {
	if req.Method != http.MethodPut {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	userID, err := s.parseUser(req)
	if err != nil {
		return nil, err
	}

	var args structs.NodeVisibilityRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}

	node, err := s.agent.coordinator.SetNodeVisibility(req.Context(), nodeID, userID, args.IsPublic)
	if err != nil {
		return nil, err
	}
	return &structs.NodeVisibilityResponse{Success: true, IsPublic: node.IsPublic}, nil
}
