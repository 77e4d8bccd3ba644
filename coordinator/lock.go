package coordinator

import (
	"context"
	"time"
)

// The per-job lease is a single string key holding the lessee's node id.
// Acquire is set-if-absent, release is compare-and-delete; both run as one
// atomic step in the store, which is the only thing preventing two workers
// from writing the same job's result.

// acquireLock attempts to take the job's lease for nodeID.
func (c *Coordinator) acquireLock(ctx context.Context, jobID, nodeID string, ttl time.Duration) (bool, error) {
	return c.store.SetNX(ctx, jobLockKey(jobID), nodeID, ttl)
}

// checkLock reports whether nodeID currently holds the job's lease.
func (c *Coordinator) checkLock(ctx context.Context, jobID, nodeID string) (bool, error) {
	holder, ok, err := c.store.Get(ctx, jobLockKey(jobID))
	if err != nil {
		return false, err
	}
	return ok && holder == nodeID, nil
}

// extendLock refreshes the lease TTL if nodeID still holds it.
func (c *Coordinator) extendLock(ctx context.Context, jobID, nodeID string, ttl time.Duration) (bool, error) {
	held, err := c.checkLock(ctx, jobID, nodeID)
	if err != nil || !held {
		return false, err
	}
	return c.store.Expire(ctx, jobLockKey(jobID), ttl)
}

// releaseLock deletes the lease only if nodeID holds it. Releasing a lease
// held by someone else is a no-op, not an error.
func (c *Coordinator) releaseLock(ctx context.Context, jobID, nodeID string) error {
	_, err := c.store.CompareAndDelete(ctx, jobLockKey(jobID), nodeID)
	return err
}
