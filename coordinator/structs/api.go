package structs

// Wire shapes for the HTTP surface. Node-authenticated requests embed the
// signature envelope, so its fields appear at the top level of the JSON
// body alongside the payload.

type NodeClaimRequest struct {
	PublicKey string `json:"publicKey"`
	Name      string `json:"name"`
}

type NodeClaimResponse struct {
	Success bool   `json:"success"`
	NodeID  string `json:"nodeId"`
	Status  string `json:"status"`
}

// NodePingUpdate is the optional capability refresh carried by a ping.
// Pointer fields distinguish "absent" from zero.
type NodePingUpdate struct {
	Capabilities      map[string]interface{} `json:"capabilities,omitempty"`
	ActiveJobs        *int                   `json:"activeJobs,omitempty"`
	MaxConcurrentJobs *int                   `json:"maxConcurrentJobs,omitempty"`
}

type NodePingRequest struct {
	SignatureEnvelope
	NodePingUpdate
}

type NodePingResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

type NodeListResponse struct {
	Nodes []*Node `json:"nodes"`
}

type PublicNodeListResponse struct {
	Nodes       []*Node `json:"nodes"`
	TotalOnline int     `json:"totalOnline"`
}

type NodeVisibilityRequest struct {
	IsPublic bool `json:"isPublic"`
}

type NodeVisibilityResponse struct {
	Success  bool `json:"success"`
	IsPublic bool `json:"isPublic"`
}

// JobSubmitRequest carries a new job. Prompt is the only required field;
// pointer fields fall back to the coordinator defaults when nil.
type JobSubmitRequest struct {
	Prompt      string                 `json:"prompt"`
	Model       string                 `json:"model,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
	Priority    *int                   `json:"priority,omitempty"`
	MaxTokens   *int                   `json:"maxTokens,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"`
}

type JobSubmitResponse struct {
	Success bool `json:"success"`
	Job     *Job `json:"job"`
}

type JobPollRequest struct {
	SignatureEnvelope
	MaxJobs int `json:"maxJobs,omitempty"`
}

type JobPollResponse struct {
	Success bool             `json:"success"`
	Jobs    []*JobAssignment `json:"jobs"`
}

type JobHeartbeatRequest struct {
	SignatureEnvelope
}

type JobHeartbeatResponse struct {
	Success   bool  `json:"success"`
	Timestamp int64 `json:"timestamp"`
}

type JobChunkRequest struct {
	SignatureEnvelope
	ChunkIndex int                    `json:"chunkIndex"`
	Content    string                 `json:"content"`
	Metrics    map[string]interface{} `json:"metrics,omitempty"`
	IsFinal    bool                   `json:"isFinal,omitempty"`
}

type JobChunkResponse struct {
	Success    bool `json:"success"`
	ChunkIndex int  `json:"chunkIndex"`
}

type JobCompleteRequest struct {
	SignatureEnvelope
	FinalOutput string `json:"finalOutput,omitempty"`
}

type JobFailRequest struct {
	SignatureEnvelope
	Error string `json:"error"`
}

type JobResponse struct {
	Success bool `json:"success"`
	Job     *Job `json:"job"`
}

type JobResultResponse struct {
	Success bool `json:"success"`
	JobResultView
}

type JobStatsResponse struct {
	Success bool      `json:"success"`
	Stats   *JobStats `json:"stats"`
}

type TimeoutCheckResponse struct {
	Success     bool     `json:"success"`
	TimeoutJobs []string `json:"timeoutJobs"`
}

// JobCleanupRequest's MaxAge is in milliseconds; zero means the configured
// default.
type JobCleanupRequest struct {
	MaxAge int64 `json:"maxAge,omitempty"`
}

type JobCleanupResponse struct {
	Success bool `json:"success"`
	Cleaned int  `json:"cleaned"`
}

// ErrorResponse is the single error shape surfaced to callers.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
