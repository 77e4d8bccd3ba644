package coordinator

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridllm/gridllm/coordinator/identity"
	"github.com/gridllm/gridllm/coordinator/structs"
	"github.com/gridllm/gridllm/helper/pointer"
)

func testPublicKey(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(pub), priv
}

func TestClaimNode_New(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)

	node, err := c.ClaimNode(ctx, pubKey, "gpu-box", "user-1")
	require.NoError(t, err)

	wantID, err := identity.Fingerprint(pubKey)
	require.NoError(t, err)
	require.Equal(t, wantID, node.ID)
	require.Equal(t, "gpu-box", node.Name)
	require.Equal(t, "user-1", node.UserID)
	require.Equal(t, structs.NodeStatusOnline, node.Status)
	require.Equal(t, structs.DefaultMaxConcurrentJobs, node.MaxConcurrentJobs)
	require.NotZero(t, node.ClaimedAt)
	require.NotZero(t, node.LastSeen)

	nodes, err := c.ListNodesForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, wantID, nodes[0].ID)
}

func TestClaimNode_Reclaim(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)

	first, err := c.ClaimNode(ctx, pubKey, "old-name", "user-1")
	require.NoError(t, err)

	// Re-claiming by the same user updates the name and keeps ClaimedAt.
	second, err := c.ClaimNode(ctx, pubKey, "new-name", "user-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "new-name", second.Name)
	require.Equal(t, first.ClaimedAt, second.ClaimedAt)
}

func TestClaimNode_Conflict(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)

	_, err := c.ClaimNode(ctx, pubKey, "mine", "user-1")
	require.NoError(t, err)

	_, err = c.ClaimNode(ctx, pubKey, "stolen", "user-2")
	require.ErrorIs(t, err, structs.ErrNodeClaimed)
}

func TestClaimNode_FingerprintCollision(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)

	node, err := c.ClaimNode(ctx, pubKey, "gpu-box", "user-1")
	require.NoError(t, err)

	// Rebind the record to a different key under the same id, standing in
	// for a second key whose fingerprint collides with the first.
	otherKey, _ := testPublicKey(t)
	node.PublicKey = otherKey
	require.NoError(t, c.putNode(ctx, node))

	_, err = c.ClaimNode(ctx, pubKey, "gpu-box", "user-1")
	require.ErrorIs(t, err, structs.ErrFingerprintCollision)
	require.NotErrorIs(t, err, structs.ErrNodeClaimed)
}

func TestClaimNode_BadKey(t *testing.T) {
	c := testCoordinator(t)

	_, err := c.ClaimNode(context.Background(), "not!!base64", "x", "user-1")
	require.Error(t, err)
}

func TestPingNode(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)

	node, err := c.ClaimNode(ctx, pubKey, "gpu-box", "user-1")
	require.NoError(t, err)

	verified := &identity.Verified{NodeID: node.ID, PublicKey: pubKey}
	updated, err := c.PingNode(ctx, verified, &structs.NodePingUpdate{
		Capabilities:      map[string]interface{}{"models": []interface{}{"llama3.2:3b"}},
		ActiveJobs:        pointer.Of(2),
		MaxConcurrentJobs: pointer.Of(4),
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.ActiveJobs)
	require.Equal(t, 4, updated.MaxConcurrentJobs)
	require.Contains(t, updated.Capabilities, "models")

	// A ping without an update only refreshes liveness.
	again, err := c.PingNode(ctx, verified, nil)
	require.NoError(t, err)
	require.Equal(t, 2, again.ActiveJobs)
	require.Contains(t, again.Capabilities, "models")
}

func TestPingNode_KeyMismatch(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)
	otherKey, _ := testPublicKey(t)

	node, err := c.ClaimNode(ctx, pubKey, "gpu-box", "user-1")
	require.NoError(t, err)

	_, err = c.PingNode(ctx, &identity.Verified{NodeID: node.ID, PublicKey: otherKey}, nil)
	require.ErrorIs(t, err, structs.ErrPublicKeyMismatch)
}

func TestPingNode_Unknown(t *testing.T) {
	c := testCoordinator(t)
	pubKey, _ := testPublicKey(t)

	_, err := c.PingNode(context.Background(),
		&identity.Verified{NodeID: "deadbeefcafe", PublicKey: pubKey}, nil)
	require.ErrorIs(t, err, structs.ErrNodeNotFound)
}

func TestSetNodeVisibility(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)

	node, err := c.ClaimNode(ctx, pubKey, "gpu-box", "user-1")
	require.NoError(t, err)

	// Only the owner may toggle.
	_, err = c.SetNodeVisibility(ctx, node.ID, "user-2", true)
	require.ErrorIs(t, err, structs.ErrPermissionDenied)

	updated, err := c.SetNodeVisibility(ctx, node.ID, "user-1", true)
	require.NoError(t, err)
	require.True(t, updated.IsPublic)

	public, totalOnline, err := c.ListPublicNodes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, node.ID, public[0].ID)
	require.Equal(t, 1, totalOnline)

	_, err = c.SetNodeVisibility(ctx, node.ID, "user-1", false)
	require.NoError(t, err)

	public, _, err = c.ListPublicNodes(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, public)
}

func TestListNodes_ComputedStatus(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	pubKey, _ := testPublicKey(t)

	node, err := c.ClaimNode(ctx, pubKey, "gpu-box", "user-1")
	require.NoError(t, err)

	// Backdate lastSeen past the online window; the stored "online" hint
	// must not leak through.
	node.LastSeen = nowMs() - (c.config.NodeOnlineWindow + time.Minute).Milliseconds()
	require.NoError(t, c.putNode(ctx, node))

	nodes, err := c.ListNodesForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, structs.NodeStatusOffline, nodes[0].Status)
}

func TestCleanupInactiveNodes(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	stalePub, _ := testPublicKey(t)
	freshPub, _ := testPublicKey(t)

	stale, err := c.ClaimNode(ctx, stalePub, "stale", "user-1")
	require.NoError(t, err)
	_, err = c.SetNodeVisibility(ctx, stale.ID, "user-1", true)
	require.NoError(t, err)

	fresh, err := c.ClaimNode(ctx, freshPub, "fresh", "user-1")
	require.NoError(t, err)

	stale.LastSeen = nowMs() - (48 * time.Hour).Milliseconds()
	require.NoError(t, c.putNode(ctx, stale))

	removed, err := c.CleanupInactiveNodes(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = c.getNode(ctx, stale.ID)
	require.ErrorIs(t, err, structs.ErrNodeNotFound)
	_, err = c.getNode(ctx, fresh.ID)
	require.NoError(t, err)

	// Memberships are scrubbed too.
	public, _, err := c.ListPublicNodes(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, public)

	nodes, err := c.ListNodesForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, fresh.ID, nodes[0].ID)
}

func TestNodeOnlinePredicate(t *testing.T) {
	now := time.Now()
	node := &structs.Node{LastSeen: now.UnixMilli() - (10 * time.Minute).Milliseconds()}

	require.True(t, node.Online(now, 15*time.Minute))
	require.False(t, node.Online(now, 5*time.Minute))

	// Boundary: exactly at the window is offline.
	node.LastSeen = now.UnixMilli() - (15 * time.Minute).Milliseconds()
	require.False(t, node.Online(now, 15*time.Minute))
}
