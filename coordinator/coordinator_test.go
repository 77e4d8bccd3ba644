package coordinator

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/gridllm/gridllm/coordinator/state"
	"github.com/gridllm/gridllm/coordinator/structs"
	"github.com/gridllm/gridllm/helper/pointer"
)

func testCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return New(state.NewMemoryStore(), DefaultConfig(), hclog.NewNullLogger())
}

// testNode claims a fresh node for userID and returns its id and signing key.
func testNode(t *testing.T, c *Coordinator, userID string) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	node, err := c.ClaimNode(context.Background(),
		base64.StdEncoding.EncodeToString(pub), "test-node", userID)
	require.NoError(t, err)
	return node.ID, priv
}

// testJob submits a minimal job and returns it.
func testJob(t *testing.T, c *Coordinator, userID, prompt string, priority int) *structs.Job {
	t.Helper()
	job, err := c.SubmitJob(context.Background(), userID, &structs.JobSubmitRequest{
		Prompt:   prompt,
		Priority: pointer.Of(priority),
	})
	require.NoError(t, err)
	return job
}

// testAssign polls one job for the node and requires exactly one assignment.
func testAssign(t *testing.T, c *Coordinator, nodeID string) *structs.Job {
	t.Helper()
	jobs, err := c.AssignJobs(context.Background(), nodeID, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}
