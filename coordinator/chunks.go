package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	metrics "github.com/hashicorp/go-metrics"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// StoreChunk appends a streamed fragment to the job's chunk log. Only the
// current lock holder may write. Fragments may arrive in any order; a
// duplicate index overwrites the earlier fragment. IsFinal is recorded but
// advisory: only CompleteJob terminates a job.
func (c *Coordinator) StoreChunk(ctx context.Context, jobID, nodeID string, chunk *structs.Chunk) error {
	defer metrics.MeasureSince([]string{"gridllm", "chunk", "store"}, time.Now())

	held, err := c.checkLock(ctx, jobID, nodeID)
	if err != nil {
		return err
	}
	if !held {
		return structs.ErrNotLockHolder
	}

	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	now := nowMs()
	if chunk.Timestamp == 0 {
		chunk.Timestamp = now
	}
	raw, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode chunk: %w", err)
	}
	field := strconv.Itoa(chunk.Index)
	if err := c.store.HSet(ctx, jobChunksKey(jobID), map[string]string{field: string(raw)}); err != nil {
		return fmt.Errorf("failed to append chunk: %w", err)
	}

	chunkCount := job.ChunkCount
	if chunk.Index+1 > chunkCount {
		chunkCount = chunk.Index + 1
	}
	fields := map[string]string{
		"lastChunkAt": strconv.FormatInt(now, 10),
		"chunkCount":  strconv.Itoa(chunkCount),
	}
	if chunk.Metrics != nil {
		fields["lastMetrics"] = encodeJSON(chunk.Metrics)
	}
	if err := c.updateJob(ctx, jobID, fields); err != nil {
		return err
	}

	c.touchNode(ctx, nodeID)
	return nil
}

// CompleteJob terminates a job successfully. When finalOutput is empty the
// result is assembled from the chunk log in ascending index order.
func (c *Coordinator) CompleteJob(ctx context.Context, jobID, nodeID, finalOutput string) (*structs.Job, error) {
	defer metrics.MeasureSince([]string{"gridllm", "job", "complete"}, time.Now())

	held, err := c.checkLock(ctx, jobID, nodeID)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, structs.ErrNotLockHolder
	}

	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.TerminalStatus() {
		return nil, structs.ErrJobTerminal
	}

	result := finalOutput
	if result == "" {
		if result, err = c.assembleChunks(ctx, jobID); err != nil {
			return nil, err
		}
	}

	job.Status = structs.JobStatusCompleted
	job.Result = result
	if err := c.finishJob(ctx, job, nodeID); err != nil {
		return nil, err
	}

	c.logger.Info("job completed", "job_id", jobID, "node_id", nodeID,
		"chunks", job.ChunkCount)
	metrics.IncrCounter([]string{"gridllm", "job", "completed"}, 1)
	return job, nil
}

// FailJob terminates a job unsuccessfully, recording the worker's reason.
func (c *Coordinator) FailJob(ctx context.Context, jobID, nodeID, reason string) (*structs.Job, error) {
	defer metrics.MeasureSince([]string{"gridllm", "job", "fail"}, time.Now())

	held, err := c.checkLock(ctx, jobID, nodeID)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, structs.ErrNotLockHolder
	}

	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.TerminalStatus() {
		return nil, structs.ErrJobTerminal
	}

	job.Status = structs.JobStatusFailed
	job.FailureReason = reason
	if err := c.finishJob(ctx, job, nodeID); err != nil {
		return nil, err
	}

	c.logger.Warn("job failed", "job_id", jobID, "node_id", nodeID, "reason", reason)
	metrics.IncrCounter([]string{"gridllm", "job", "failed"}, 1)
	return job, nil
}

// finishJob performs the shared terminal transition: queue move, record
// update, lease release, chunk log removal, per-node set removal.
func (c *Coordinator) finishJob(ctx context.Context, job *structs.Job, nodeID string) error {
	now := nowMs()
	job.UpdatedAt = now

	if err := c.store.ZRem(ctx, queueAssigned, job.ID); err != nil {
		return err
	}
	if err := c.store.ZAdd(ctx, statusQueue(job.Status), job.ID, float64(now)); err != nil {
		return err
	}
	if err := c.store.HSet(ctx, jobKey(job.ID), encodeJob(job)); err != nil {
		return err
	}

	var mErr *multierror.Error
	mErr = multierror.Append(mErr, c.releaseLock(ctx, job.ID, nodeID))
	mErr = multierror.Append(mErr, c.store.Delete(ctx, jobChunksKey(job.ID)))
	mErr = multierror.Append(mErr, c.store.SRem(ctx, nodeJobsKey(nodeID), job.ID))
	c.touchNode(ctx, nodeID)
	return mErr.ErrorOrNil()
}

// assembleChunks concatenates chunk contents in ascending index order.
func (c *Coordinator) assembleChunks(ctx context.Context, jobID string) (string, error) {
	fields, err := c.store.HGetAll(ctx, jobChunksKey(jobID))
	if err != nil {
		return "", fmt.Errorf("failed to read chunk log: %w", err)
	}
	if len(fields) == 0 {
		return "", nil
	}

	chunks := make([]*structs.Chunk, 0, len(fields))
	for _, raw := range fields {
		var chunk structs.Chunk
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			return "", fmt.Errorf("corrupt chunk record for job %q: %w", jobID, err)
		}
		chunks = append(chunks, &chunk)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Content)
	}
	return sb.String(), nil
}
