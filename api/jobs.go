package api

import (
	"fmt"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// Jobs is used to access the job endpoints
type Jobs struct {
	client *Client
}

// Jobs returns a handle on the job endpoints
func (c *Client) Jobs() *Jobs {
	return &Jobs{client: c}
}

// Submit enqueues a new job for the configured user.
func (j *Jobs) Submit(req *structs.JobSubmitRequest) (*structs.Job, error) {
	var out structs.JobSubmitResponse
	if err := j.client.post("/jobs", req, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

// Result fetches the current result view of a job.
func (j *Jobs) Result(jobID string) (*structs.JobResultView, error) {
	var out structs.JobResultResponse
	if err := j.client.get("/jobs/"+jobID, &out); err != nil {
		return nil, err
	}
	return &out.JobResultView, nil
}

// Stats returns the per-status queue depths.
func (j *Jobs) Stats() (*structs.JobStats, error) {
	var out structs.JobStatsResponse
	if err := j.client.get("/jobs/stats", &out); err != nil {
		return nil, err
	}
	return out.Stats, nil
}

// Cancel aborts a pending or in-flight job owned by the configured user.
func (j *Jobs) Cancel(jobID string) (*structs.Job, error) {
	var out structs.JobResponse
	if err := j.client.post(fmt.Sprintf("/jobs/%s/cancel", jobID), nil, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

// CheckTimeouts triggers an immediate sweep of abandoned jobs.
func (j *Jobs) CheckTimeouts() ([]string, error) {
	var out structs.TimeoutCheckResponse
	if err := j.client.post("/jobs/check-timeouts", nil, &out); err != nil {
		return nil, err
	}
	return out.TimeoutJobs, nil
}

// Cleanup removes terminal jobs older than maxAgeMs (0 for the server
// default) and returns the count removed.
func (j *Jobs) Cleanup(maxAgeMs int64) (int, error) {
	var out structs.JobCleanupResponse
	req := &structs.JobCleanupRequest{MaxAge: maxAgeMs}
	if err := j.client.post("/jobs/cleanup", req, &out); err != nil {
		return 0, err
	}
	return out.Cleaned, nil
}

// Poll asks for up to maxJobs assignments on behalf of the signing node.
func (j *Jobs) Poll(signer *NodeSigner, maxJobs int) ([]*structs.JobAssignment, error) {
	req := &structs.JobPollRequest{
		SignatureEnvelope: signer.Envelope(),
		MaxJobs:           maxJobs,
	}
	var out structs.JobPollResponse
	if err := j.client.post("/jobs/poll", req, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Heartbeat renews the lease on an assigned job and returns the server's
// clock reading.
func (j *Jobs) Heartbeat(signer *NodeSigner, jobID string) (int64, error) {
	req := &structs.JobHeartbeatRequest{SignatureEnvelope: signer.Envelope()}
	var out structs.JobHeartbeatResponse
	if err := j.client.post(fmt.Sprintf("/jobs/%s/heartbeat", jobID), req, &out); err != nil {
		return 0, err
	}
	return out.Timestamp, nil
}

// SendChunk streams one piece of incremental output for a running job.
func (j *Jobs) SendChunk(signer *NodeSigner, jobID string, index int, content string, metrics map[string]interface{}, isFinal bool) error {
	req := &structs.JobChunkRequest{
		SignatureEnvelope: signer.Envelope(),
		ChunkIndex:        index,
		Content:           content,
		Metrics:           metrics,
		IsFinal:           isFinal,
	}
	return j.client.post(fmt.Sprintf("/jobs/%s/chunks", jobID), req, nil)
}

// Complete finalizes a job. finalOutput may be empty, in which case the
// server assembles the result from the streamed chunks.
func (j *Jobs) Complete(signer *NodeSigner, jobID, finalOutput string) (*structs.Job, error) {
	req := &structs.JobCompleteRequest{
		SignatureEnvelope: signer.Envelope(),
		FinalOutput:       finalOutput,
	}
	var out structs.JobResponse
	if err := j.client.post(fmt.Sprintf("/jobs/%s/complete", jobID), req, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

// Fail marks a job failed with the given reason.
func (j *Jobs) Fail(signer *NodeSigner, jobID, reason string) (*structs.Job, error) {
	req := &structs.JobFailRequest{
		SignatureEnvelope: signer.Envelope(),
		Error:             reason,
	}
	var out structs.JobResponse
	if err := j.client.post(fmt.Sprintf("/jobs/%s/fail", jobID), req, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}
