package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	metrics "github.com/hashicorp/go-metrics"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/gridllm/gridllm/coordinator/identity"
	"github.com/gridllm/gridllm/coordinator/structs"
)

// The registry is the sole writer of node records. Records are JSON strings
// under node:{id} with the soft-TTL acting as a coarse liveness signal; the
// authoritative online predicate is recomputed from lastSeen on every read.

// ClaimNode binds a public key's fingerprint to a user, upserting the node
// record. A fingerprint already bound to a different user, or produced by a
// different key, is rejected.
func (c *Coordinator) ClaimNode(ctx context.Context, publicKey, name, userID string) (*structs.Node, error) {
	defer metrics.MeasureSince([]string{"gridllm", "node", "claim"}, time.Now())

	nodeID, err := identity.Fingerprint(publicKey)
	if err != nil {
		return nil, err
	}

	now := nowMs()
	node, err := c.getNode(ctx, nodeID)
	switch err {
	case nil:
		if node.UserID != "" && node.UserID != userID {
			return nil, structs.ErrNodeClaimed
		}
		if node.PublicKey != publicKey {
			// Fingerprint collision across distinct keys.
			return nil, structs.ErrFingerprintCollision
		}
	case structs.ErrNodeNotFound:
		node = &structs.Node{
			ID:                nodeID,
			PublicKey:         publicKey,
			MaxConcurrentJobs: structs.DefaultMaxConcurrentJobs,
			ClaimedAt:         now,
		}
	default:
		return nil, err
	}

	node.Name = name
	node.UserID = userID
	node.Status = structs.NodeStatusOnline
	node.LastSeen = now
	if node.ClaimedAt == 0 {
		node.ClaimedAt = now
	}

	if err := c.putNode(ctx, node); err != nil {
		return nil, err
	}
	if err := c.store.SAdd(ctx, userNodesKey(userID), nodeID); err != nil {
		return nil, err
	}

	c.logger.Info("node claimed", "node_id", nodeID, "user_id", userID, "name", name)
	return node, nil
}

// PingNode records node liveness and optionally refreshes its capability
// record. The caller's verified public key must match the stored one.
func (c *Coordinator) PingNode(ctx context.Context, verified *identity.Verified, update *structs.NodePingUpdate) (*structs.Node, error) {
	defer metrics.MeasureSince([]string{"gridllm", "node", "ping"}, time.Now())

	node, err := c.getNode(ctx, verified.NodeID)
	if err != nil {
		return nil, err
	}
	if node.PublicKey != verified.PublicKey {
		return nil, structs.ErrPublicKeyMismatch
	}

	node.Status = structs.NodeStatusOnline
	node.LastSeen = nowMs()
	if update != nil {
		if update.Capabilities != nil {
			node.Capabilities = update.Capabilities
		}
		if update.ActiveJobs != nil {
			node.ActiveJobs = *update.ActiveJobs
		}
		if update.MaxConcurrentJobs != nil && *update.MaxConcurrentJobs >= 1 {
			node.MaxConcurrentJobs = *update.MaxConcurrentJobs
		}
	}

	if err := c.putNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// SetNodeVisibility toggles a node's public listing. Owner only.
func (c *Coordinator) SetNodeVisibility(ctx context.Context, nodeID, userID string, isPublic bool) (*structs.Node, error) {
	node, err := c.getNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.UserID != userID {
		return nil, structs.ErrPermissionDenied
	}

	node.IsPublic = isPublic
	if err := c.putNode(ctx, node); err != nil {
		return nil, err
	}
	if isPublic {
		err = c.store.SAdd(ctx, publicNodesKey, nodeID)
	} else {
		err = c.store.SRem(ctx, publicNodesKey, nodeID)
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// ListNodesForUser returns the user's nodes with the online predicate
// re-evaluated on read.
func (c *Coordinator) ListNodesForUser(ctx context.Context, userID string) ([]*structs.Node, error) {
	nodeIDs, err := c.store.SMembers(ctx, userNodesKey(userID))
	if err != nil {
		return nil, err
	}

	nodes := make([]*structs.Node, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		node, err := c.getNode(ctx, nodeID)
		if err == structs.ErrNodeNotFound {
			// Soft-TTL expired the record; drop the dangling membership.
			_ = c.store.SRem(ctx, userNodesKey(userID), nodeID)
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, c.withComputedStatus(node))
	}
	return nodes, nil
}

// ListPublicNodes returns up to limit publicly listed nodes plus the count
// of online nodes across the whole registry.
func (c *Coordinator) ListPublicNodes(ctx context.Context, limit int) ([]*structs.Node, int, error) {
	if limit <= 0 {
		limit = structs.DefaultPublicNodeListSize
	}

	nodeIDs, err := c.store.SMembers(ctx, publicNodesKey)
	if err != nil {
		return nil, 0, err
	}

	nodes := make([]*structs.Node, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		if len(nodes) >= limit {
			break
		}
		node, err := c.getNode(ctx, nodeID)
		if err == structs.ErrNodeNotFound {
			_ = c.store.SRem(ctx, publicNodesKey, nodeID)
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		nodes = append(nodes, c.withComputedStatus(node))
	}

	totalOnline, err := c.countOnlineNodes(ctx)
	if err != nil {
		return nil, 0, err
	}
	return nodes, totalOnline, nil
}

// CleanupInactiveNodes hard-removes nodes not seen within maxAge, including
// their user-set and public-set memberships. Returns the number removed.
func (c *Coordinator) CleanupInactiveNodes(ctx context.Context, maxAge time.Duration) (int, error) {
	defer metrics.MeasureSince([]string{"gridllm", "node", "cleanup"}, time.Now())

	keys, err := c.store.Keys(ctx, "node:*")
	if err != nil {
		return 0, err
	}

	now := nowMs()
	removed := 0
	var mErr *multierror.Error
	for _, key := range keys {
		nodeID := strings.TrimPrefix(key, "node:")
		node, err := c.getNode(ctx, nodeID)
		if err != nil {
			continue
		}
		if now-node.LastSeen <= maxAge.Milliseconds() {
			continue
		}

		mErr = multierror.Append(mErr, c.store.Delete(ctx, key, nodeJobsKey(nodeID)))
		mErr = multierror.Append(mErr, c.store.SRem(ctx, publicNodesKey, nodeID))
		if node.UserID != "" {
			mErr = multierror.Append(mErr, c.store.SRem(ctx, userNodesKey(node.UserID), nodeID))
		}
		removed++
		c.logger.Info("removed inactive node", "node_id", nodeID,
			"last_seen", time.UnixMilli(node.LastSeen))
	}
	return removed, mErr.ErrorOrNil()
}

// touchNode refreshes a node's lastSeen and soft-TTL after an authenticated
// job operation. Best effort: a missing node is not an error here.
func (c *Coordinator) touchNode(ctx context.Context, nodeID string) {
	node, err := c.getNode(ctx, nodeID)
	if err != nil {
		return
	}
	node.LastSeen = nowMs()
	if err := c.putNode(ctx, node); err != nil {
		c.logger.Warn("failed to refresh node liveness", "node_id", nodeID, "error", err)
	}
}

func (c *Coordinator) getNode(ctx context.Context, nodeID string) (*structs.Node, error) {
	raw, ok, err := c.store.Get(ctx, nodeKey(nodeID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, structs.ErrNodeNotFound
	}
	var node structs.Node
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("corrupt node record %q: %w", nodeID, err)
	}
	return &node, nil
}

func (c *Coordinator) putNode(ctx context.Context, node *structs.Node) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node record: %w", err)
	}
	return c.store.Set(ctx, nodeKey(node.ID), string(raw), c.config.NodeTTL)
}

// withComputedStatus returns a copy whose status reflects the authoritative
// online predicate rather than the stored hint.
func (c *Coordinator) withComputedStatus(node *structs.Node) *structs.Node {
	out := node.Copy()
	if out.Online(time.Now(), c.config.NodeOnlineWindow) {
		out.Status = structs.NodeStatusOnline
	} else {
		out.Status = structs.NodeStatusOffline
	}
	return out
}

func (c *Coordinator) countOnlineNodes(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, "node:*")
	if err != nil {
		return 0, err
	}
	total := 0
	now := time.Now()
	for _, key := range keys {
		node, err := c.getNode(ctx, strings.TrimPrefix(key, "node:"))
		if err != nil {
			continue
		}
		if node.Online(now, c.config.NodeOnlineWindow) {
			total++
		}
	}
	return total, nil
}
