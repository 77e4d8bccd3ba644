package coordinator

import (
	"context"
	"strconv"
	"time"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// AssignJobs pulls up to maxJobs pending jobs in priority order and
// exclusively assigns them to the polling node. Concurrent pollers race on
// each candidate's lock; losers simply skip the candidate. Fewer than
// maxJobs (including none) may be returned.
func (c *Coordinator) AssignJobs(ctx context.Context, nodeID string, maxJobs int) ([]*structs.Job, error) {
	defer metrics.MeasureSince([]string{"gridllm", "scheduler", "assign"}, time.Now())

	if maxJobs < 1 {
		maxJobs = 1
	}
	if _, err := c.getNode(ctx, nodeID); err != nil {
		return nil, err
	}

	// Ascending score order is highest-priority-oldest-first.
	candidates, err := c.store.ZRange(ctx, queuePending, 0, int64(maxJobs)-1)
	if err != nil {
		return nil, err
	}

	var assigned []*structs.Job
	for _, jobID := range candidates {
		acquired, err := c.acquireLock(ctx, jobID, nodeID, c.config.LockTTL)
		if err != nil {
			return assigned, err
		}
		if !acquired {
			// Another poller won this candidate.
			continue
		}

		job, err := c.GetJob(ctx, jobID)
		if err == structs.ErrJobNotFound {
			// The record vanished while we raced for the lock; drop the
			// stale queue entry.
			_ = c.releaseLock(ctx, jobID, nodeID)
			_ = c.store.ZRem(ctx, queuePending, jobID)
			continue
		}
		if err != nil {
			// Transient store failure. The job is still live, so it must
			// stay in the pending queue; release the lock and abort.
			_ = c.releaseLock(ctx, jobID, nodeID)
			return assigned, err
		}
		if job.Status != structs.JobStatusPending {
			// Moved while we raced for the lock.
			_ = c.releaseLock(ctx, jobID, nodeID)
			_ = c.store.ZRem(ctx, queuePending, jobID)
			continue
		}

		now := nowMs()
		if err := c.store.ZRem(ctx, queuePending, jobID); err != nil {
			return assigned, err
		}
		if err := c.store.ZAdd(ctx, queueAssigned, jobID, float64(now)); err != nil {
			return assigned, err
		}
		err = c.updateJob(ctx, jobID, map[string]string{
			"status":     structs.JobStatusAssigned,
			"assignedTo": nodeID,
			"assignedAt": strconv.FormatInt(now, 10),
		})
		if err != nil {
			return assigned, err
		}
		if err := c.store.SAdd(ctx, nodeJobsKey(nodeID), jobID); err != nil {
			return assigned, err
		}

		job.Status = structs.JobStatusAssigned
		job.AssignedTo = nodeID
		job.AssignedAt = now
		job.UpdatedAt = now
		assigned = append(assigned, job)
		metrics.IncrCounter([]string{"gridllm", "scheduler", "assigned"}, 1)

		if len(assigned) >= maxJobs {
			break
		}
	}

	if len(assigned) > 0 {
		c.logger.Debug("assigned jobs", "node_id", nodeID, "count", len(assigned))
	}
	return assigned, nil
}
