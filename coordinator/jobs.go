package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	metrics "github.com/hashicorp/go-metrics"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/gridllm/gridllm/coordinator/structs"
	"github.com/gridllm/gridllm/helper/ids"
)

// SubmitJob validates and persists a new job, placing it in the pending
// queue at its priority-derived score.
func (c *Coordinator) SubmitJob(ctx context.Context, userID string, req *structs.JobSubmitRequest) (*structs.Job, error) {
	defer metrics.MeasureSince([]string{"gridllm", "job", "submit"}, time.Now())

	if req == nil || req.Prompt == "" {
		return nil, structs.ErrMissingPrompt
	}

	now := nowMs()
	job := &structs.Job{
		ID:          ids.JobID(),
		Prompt:      req.Prompt,
		Model:       c.config.DefaultModel,
		Options:     req.Options,
		Priority:    structs.DefaultPriority,
		MaxTokens:   c.config.DefaultMaxTokens,
		Temperature: c.config.DefaultTemperature,
		UserID:      userID,
		Status:      structs.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Model != "" {
		job.Model = req.Model
	}
	if req.Priority != nil {
		job.Priority = *req.Priority
	}
	if req.MaxTokens != nil {
		job.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		job.Temperature = *req.Temperature
	}

	if err := c.store.HSet(ctx, jobKey(job.ID), encodeJob(job)); err != nil {
		return nil, fmt.Errorf("failed to write job record: %w", err)
	}
	score := structs.PendingScore(job.Priority, job.CreatedAt)
	if err := c.store.ZAdd(ctx, queuePending, job.ID, score); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	c.logger.Debug("job submitted", "job_id", job.ID, "user_id", userID,
		"model", job.Model, "priority", job.Priority)
	return job, nil
}

// GetJob reads and decodes a job record.
func (c *Coordinator) GetJob(ctx context.Context, jobID string) (*structs.Job, error) {
	fields, err := c.store.HGetAll(ctx, jobKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	if len(fields) == 0 {
		return nil, structs.ErrJobNotFound
	}
	return decodeJob(fields)
}

// GetResult returns the submitter-facing view of a job. In-flight jobs carry
// the current concatenated partial output.
func (c *Coordinator) GetResult(ctx context.Context, jobID string) (*structs.JobResultView, error) {
	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &structs.JobResultView{
		JobID:      job.ID,
		Status:     job.Status,
		ChunkCount: job.ChunkCount,
		Metrics:    job.LastMetrics,
		Attempts:   job.Attempts,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
	switch job.Status {
	case structs.JobStatusCompleted:
		view.Result = job.Result
	case structs.JobStatusFailed:
		view.FailureReason = job.FailureReason
	case structs.JobStatusAssigned, structs.JobStatusRunning:
		partial, err := c.assembleChunks(ctx, jobID)
		if err != nil {
			return nil, err
		}
		view.Partial = partial
	}
	return view, nil
}

// GetStats returns the queue depth counters. Running aliases the assigned
// queue depth rather than costing a scan of every assigned record.
func (c *Coordinator) GetStats(ctx context.Context) (*structs.JobStats, error) {
	stats := &structs.JobStats{}
	var err error
	if stats.Pending, err = c.store.ZCard(ctx, queuePending); err != nil {
		return nil, err
	}
	if stats.Assigned, err = c.store.ZCard(ctx, queueAssigned); err != nil {
		return nil, err
	}
	if stats.Completed, err = c.store.ZCard(ctx, queueCompleted); err != nil {
		return nil, err
	}
	if stats.Failed, err = c.store.ZCard(ctx, queueFailed); err != nil {
		return nil, err
	}
	stats.Running = stats.Assigned
	return stats, nil
}

// CancelJob transitions a submitter's non-terminal job to failed, releasing
// any lease and dropping its chunk log.
func (c *Coordinator) CancelJob(ctx context.Context, jobID, userID string) (*structs.Job, error) {
	defer metrics.MeasureSince([]string{"gridllm", "job", "cancel"}, time.Now())

	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, structs.ErrPermissionDenied
	}
	if job.TerminalStatus() {
		return nil, structs.ErrJobTerminal
	}

	now := nowMs()
	if err := c.store.ZRem(ctx, statusQueue(job.Status), jobID); err != nil {
		return nil, err
	}
	if err := c.store.ZAdd(ctx, queueFailed, jobID, float64(now)); err != nil {
		return nil, err
	}

	prevHolder := job.AssignedTo
	job.Status = structs.JobStatusFailed
	job.FailureReason = "canceled by submitter"
	job.AssignedTo = ""
	job.UpdatedAt = now
	if err := c.store.HSet(ctx, jobKey(jobID), encodeJob(job)); err != nil {
		return nil, err
	}

	var mErr *multierror.Error
	mErr = multierror.Append(mErr, c.store.Delete(ctx, jobLockKey(jobID), jobChunksKey(jobID)))
	if prevHolder != "" {
		mErr = multierror.Append(mErr, c.store.SRem(ctx, nodeJobsKey(prevHolder), jobID))
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return nil, err
	}

	c.logger.Info("job canceled", "job_id", jobID, "user_id", userID)
	return job, nil
}

// CleanupOldJobs removes completed and failed jobs older than maxAge along
// with their auxiliary keys, returning the number removed.
func (c *Coordinator) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	defer metrics.MeasureSince([]string{"gridllm", "job", "cleanup"}, time.Now())

	if maxAge <= 0 {
		maxAge = c.config.JobCleanupAge
	}
	cutoff := float64(nowMs() - maxAge.Milliseconds())

	cleaned := 0
	var mErr *multierror.Error
	for _, queue := range []string{queueCompleted, queueFailed} {
		jobIDs, err := c.store.ZRangeByScore(ctx, queue, math.Inf(-1), cutoff)
		if err != nil {
			return cleaned, err
		}
		for _, jobID := range jobIDs {
			if err := c.deleteJob(ctx, jobID); err != nil {
				mErr = multierror.Append(mErr, err)
				continue
			}
			cleaned++
		}
	}
	if cleaned > 0 {
		c.logger.Info("cleaned up old jobs", "count", cleaned, "max_age", maxAge)
	}
	return cleaned, mErr.ErrorOrNil()
}

// deleteJob removes a job from every queue and deletes its record, lock and
// chunk log.
func (c *Coordinator) deleteJob(ctx context.Context, jobID string) error {
	var mErr *multierror.Error
	for _, queue := range []string{queuePending, queueAssigned, queueCompleted, queueFailed} {
		mErr = multierror.Append(mErr, c.store.ZRem(ctx, queue, jobID))
	}
	mErr = multierror.Append(mErr, c.store.Delete(ctx,
		jobKey(jobID), jobChunksKey(jobID), jobLockKey(jobID)))
	return mErr.ErrorOrNil()
}

// updateJob merges fields into a job's hash record.
func (c *Coordinator) updateJob(ctx context.Context, jobID string, fields map[string]string) error {
	fields["updatedAt"] = strconv.FormatInt(nowMs(), 10)
	return c.store.HSet(ctx, jobKey(jobID), fields)
}

// encodeJob flattens a job into hash fields. Every field is written so a
// merge can clear previously set values.
func encodeJob(j *structs.Job) map[string]string {
	return map[string]string{
		"id":            j.ID,
		"prompt":        j.Prompt,
		"model":         j.Model,
		"options":       encodeJSON(j.Options),
		"priority":      strconv.Itoa(j.Priority),
		"maxTokens":     strconv.Itoa(j.MaxTokens),
		"temperature":   strconv.FormatFloat(j.Temperature, 'f', -1, 64),
		"userId":        j.UserID,
		"status":        j.Status,
		"createdAt":     strconv.FormatInt(j.CreatedAt, 10),
		"updatedAt":     strconv.FormatInt(j.UpdatedAt, 10),
		"assignedTo":    j.AssignedTo,
		"assignedAt":    strconv.FormatInt(j.AssignedAt, 10),
		"startedAt":     strconv.FormatInt(j.StartedAt, 10),
		"lastHeartbeat": strconv.FormatInt(j.LastHeartbeat, 10),
		"lastChunkAt":   strconv.FormatInt(j.LastChunkAt, 10),
		"chunkCount":    strconv.Itoa(j.ChunkCount),
		"lastMetrics":   encodeJSON(j.LastMetrics),
		"result":        j.Result,
		"failureReason": j.FailureReason,
		"attempts":      strconv.Itoa(j.Attempts),
		"timeoutReason": j.TimeoutReason,
	}
}

// decodeJob rebuilds a job from hash fields. Unknown fields are ignored;
// missing numeric fields decode as zero.
func decodeJob(fields map[string]string) (*structs.Job, error) {
	j := &structs.Job{
		ID:            fields["id"],
		Prompt:        fields["prompt"],
		Model:         fields["model"],
		UserID:        fields["userId"],
		Status:        fields["status"],
		AssignedTo:    fields["assignedTo"],
		Result:        fields["result"],
		FailureReason: fields["failureReason"],
		TimeoutReason: fields["timeoutReason"],
	}
	if !structs.ValidJobStatus(j.Status) {
		return nil, fmt.Errorf("job %q has invalid status %q", j.ID, j.Status)
	}
	j.Priority = atoi(fields["priority"])
	j.MaxTokens = atoi(fields["maxTokens"])
	j.ChunkCount = atoi(fields["chunkCount"])
	j.Attempts = atoi(fields["attempts"])
	j.CreatedAt = atoi64(fields["createdAt"])
	j.UpdatedAt = atoi64(fields["updatedAt"])
	j.AssignedAt = atoi64(fields["assignedAt"])
	j.StartedAt = atoi64(fields["startedAt"])
	j.LastHeartbeat = atoi64(fields["lastHeartbeat"])
	j.LastChunkAt = atoi64(fields["lastChunkAt"])
	if v := fields["temperature"]; v != "" {
		j.Temperature, _ = strconv.ParseFloat(v, 64)
	}
	if v := fields["options"]; v != "" {
		_ = json.Unmarshal([]byte(v), &j.Options)
	}
	if v := fields["lastMetrics"]; v != "" {
		_ = json.Unmarshal([]byte(v), &j.LastMetrics)
	}
	return j, nil
}

func encodeJSON(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
