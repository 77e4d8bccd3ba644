package coordinator

import (
	"context"
	"strconv"
	"time"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// Heartbeat extends a node's lease on a job and records liveness. The first
// heartbeat moves an assigned job to running and stamps startedAt. A
// heartbeat arriving after the job terminated finds the lease gone and the
// caller learns it through ErrNotLockHolder; no state changes.
func (c *Coordinator) Heartbeat(ctx context.Context, jobID, nodeID string) (int64, error) {
	defer metrics.MeasureSince([]string{"gridllm", "job", "heartbeat"}, time.Now())

	extended, err := c.extendLock(ctx, jobID, nodeID, c.config.LockTTL)
	if err != nil {
		return 0, err
	}
	if !extended {
		return 0, structs.ErrNotLockHolder
	}

	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}

	now := nowMs()
	fields := map[string]string{
		"lastHeartbeat": strconv.FormatInt(now, 10),
	}
	if job.Status == structs.JobStatusAssigned {
		fields["status"] = structs.JobStatusRunning
		if job.StartedAt == 0 {
			fields["startedAt"] = strconv.FormatInt(now, 10)
		}
	}
	if err := c.updateJob(ctx, jobID, fields); err != nil {
		return 0, err
	}

	c.touchNode(ctx, nodeID)
	return now, nil
}
