package coordinator

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridllm/gridllm/coordinator/structs"
)

func TestCheckTimeouts_LeaseExpired(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	nodeID, _ := testNode(t, c, "user-1")

	job := testJob(t, c, "user-1", "abandoned", 0)
	testAssign(t, c, nodeID)

	// The worker died and its lease lapsed.
	require.NoError(t, c.store.Delete(ctx, jobLockKey(job.ID)))

	reclaimed, err := c.CheckTimeouts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{job.ID}, reclaimed)

	got, err := c.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, structs.JobStatusPending, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.Equal(t, "lease expired", got.TimeoutReason)
	require.Empty(t, got.AssignedTo)
	require.Zero(t, got.AssignedAt)
	require.Zero(t, got.StartedAt)
	require.Zero(t, got.LastHeartbeat)

	// Back in the pending queue and assignable again.
	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Pending)
	require.Equal(t, int64(0), stats.Assigned)

	again := testAssign(t, c, nodeID)
	require.Equal(t, job.ID, again.ID)
}

func TestCheckTimeouts_HeartbeatStale(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	nodeID, _ := testNode(t, c, "user-1")

	job := testJob(t, c, "user-1", "silent", 0)
	testAssign(t, c, nodeID)

	// Lease alive, but the last heartbeat is far in the past.
	stale := nowMs() - (2 * c.config.HeartbeatStale).Milliseconds()
	require.NoError(t, c.updateJob(ctx, job.ID, map[string]string{
		"lastHeartbeat": strconv.FormatInt(stale, 10),
	}))

	reclaimed, err := c.CheckTimeouts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{job.ID}, reclaimed)

	got, err := c.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, structs.JobStatusPending, got.Status)
	require.Equal(t, "heartbeat stale", got.TimeoutReason)
}

func TestCheckTimeouts_HealthyUntouched(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	nodeID, _ := testNode(t, c, "user-1")

	job := testJob(t, c, "user-1", "healthy", 0)
	testAssign(t, c, nodeID)

	// Lease alive, never heartbeated: still healthy, the lease governs.
	reclaimed, err := c.CheckTimeouts(ctx)
	require.NoError(t, err)
	require.Empty(t, reclaimed)

	got, err := c.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, structs.JobStatusAssigned, got.Status)
	require.Zero(t, got.Attempts)
}

func TestCheckTimeouts_DanglingQueueEntry(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	// Assigned-queue member with no backing record.
	require.NoError(t, c.store.ZAdd(ctx, queueAssigned, "job-0-phantom", float64(nowMs())))

	reclaimed, err := c.CheckTimeouts(ctx)
	require.NoError(t, err)
	require.Empty(t, reclaimed)

	ids, err := c.store.ZRange(ctx, queueAssigned, 0, -1)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestCheckTimeouts_AttemptsAccumulate(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()
	nodeID, _ := testNode(t, c, "user-1")

	job := testJob(t, c, "user-1", "flaky", 0)

	for attempt := 1; attempt <= 3; attempt++ {
		testAssign(t, c, nodeID)
		require.NoError(t, c.store.Delete(ctx, jobLockKey(job.ID)))

		reclaimed, err := c.CheckTimeouts(ctx)
		require.NoError(t, err)
		require.Len(t, reclaimed, 1)

		got, err := c.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.Equal(t, attempt, got.Attempts)
	}
}

func TestRun_Shutdown(t *testing.T) {
	c := testCoordinator(t)
	c.config.SweepInterval = 10 * time.Millisecond
	c.config.NodeGCInterval = 10 * time.Millisecond

	shutdownCh := make(chan struct{})
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		c.Run(shutdownCh)
	}()

	// Let a few ticks fire, then stop.
	time.Sleep(50 * time.Millisecond)
	close(shutdownCh)

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on shutdown")
	}
}
