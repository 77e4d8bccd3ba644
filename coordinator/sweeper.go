package coordinator

import (
	"context"
	"strconv"
	"time"

	metrics "github.com/hashicorp/go-metrics"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/gridllm/gridllm/coordinator/structs"
)

const (
	timeoutReasonLease     = "lease expired"
	timeoutReasonHeartbeat = "heartbeat stale"
)

// CheckTimeouts scans the assigned queue for abandoned jobs and returns them
// to pending. A job is abandoned when its lease key has expired, or when a
// recorded heartbeat is older than the staleness threshold. Requeued jobs
// keep their priority class but go to the back of it, and count one more
// attempt. Returns the reclaimed job ids.
func (c *Coordinator) CheckTimeouts(ctx context.Context) ([]string, error) {
	defer metrics.MeasureSince([]string{"gridllm", "sweeper", "check"}, time.Now())

	assigned, err := c.store.ZRange(ctx, queueAssigned, 0, -1)
	if err != nil {
		return nil, err
	}

	now := nowMs()
	var reclaimed []string
	var mErr *multierror.Error

	for _, jobID := range assigned {
		job, err := c.GetJob(ctx, jobID)
		if err == structs.ErrJobNotFound {
			// Record vanished under us; drop the stale queue entry.
			mErr = multierror.Append(mErr, c.store.ZRem(ctx, queueAssigned, jobID))
			continue
		}
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}

		_, lockAlive, err := c.store.TTL(ctx, jobLockKey(jobID))
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}

		reason := ""
		switch {
		case !lockAlive:
			reason = timeoutReasonLease
		case job.LastHeartbeat > 0 && now-job.LastHeartbeat > c.config.HeartbeatStale.Milliseconds():
			reason = timeoutReasonHeartbeat
		default:
			continue
		}

		if err := c.requeueJob(ctx, job, reason, now); err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		reclaimed = append(reclaimed, jobID)
		c.logger.Warn("reclaimed abandoned job", "job_id", jobID,
			"node_id", job.AssignedTo, "reason", reason, "attempts", job.Attempts+1)
		metrics.IncrCounter([]string{"gridllm", "sweeper", "reclaimed"}, 1)
	}

	return reclaimed, mErr.ErrorOrNil()
}

// requeueJob moves an abandoned job back to pending. The pending score is
// rebuilt from the original priority with now as the arrival time.
func (c *Coordinator) requeueJob(ctx context.Context, job *structs.Job, reason string, now int64) error {
	if err := c.store.ZRem(ctx, queueAssigned, job.ID); err != nil {
		return err
	}
	score := structs.PendingScore(job.Priority, now)
	if err := c.store.ZAdd(ctx, queuePending, job.ID, score); err != nil {
		return err
	}
	err := c.updateJob(ctx, job.ID, map[string]string{
		"status":        structs.JobStatusPending,
		"timeoutReason": reason,
		"attempts":      strconv.Itoa(job.Attempts + 1),
		"assignedTo":    "",
		"assignedAt":    "0",
		"startedAt":     "0",
		"lastHeartbeat": "0",
	})
	if err != nil {
		return err
	}

	var mErr *multierror.Error
	mErr = multierror.Append(mErr, c.store.Delete(ctx, jobLockKey(job.ID)))
	if job.AssignedTo != "" {
		mErr = multierror.Append(mErr, c.store.SRem(ctx, nodeJobsKey(job.AssignedTo), job.ID))
	}
	return mErr.ErrorOrNil()
}

// Run drives the periodic sweeps until shutdownCh closes: the timeout sweep
// on every tick and the inactive-node cleanup on a slower cadence. Intended
// to run in its own goroutine; it is the only long-lived state the
// coordinator process holds.
func (c *Coordinator) Run(shutdownCh <-chan struct{}) {
	sweep := time.NewTicker(c.config.SweepInterval)
	defer sweep.Stop()
	nodeGC := time.NewTicker(c.config.NodeGCInterval)
	defer nodeGC.Stop()

	c.logger.Info("sweeper started", "sweep_interval", c.config.SweepInterval,
		"node_gc_interval", c.config.NodeGCInterval)

	for {
		select {
		case <-shutdownCh:
			c.logger.Info("sweeper stopped")
			return

		case <-sweep.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.SweepInterval)
			reclaimed, err := c.CheckTimeouts(ctx)
			cancel()
			if err != nil {
				c.logger.Error("timeout sweep failed", "error", err)
			}
			if len(reclaimed) > 0 {
				c.logger.Info("timeout sweep reclaimed jobs", "count", len(reclaimed))
			}

		case <-nodeGC.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.SweepInterval)
			removed, err := c.CleanupInactiveNodes(ctx, c.config.NodeGCThreshold)
			cancel()
			if err != nil {
				c.logger.Error("node cleanup failed", "error", err)
			}
			if removed > 0 {
				c.logger.Info("node cleanup removed inactive nodes", "count", removed)
			}
		}
	}
}
