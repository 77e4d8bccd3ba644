package structs

import (
	"fmt"
	"time"
)

const (
	JobStatusPending   = "pending"
	JobStatusAssigned  = "assigned"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const (
	NodeStatusOnline  = "online"
	NodeStatusOffline = "offline"
)

// Canonical defaults for submitted jobs and coordinator tuning. These mirror
// the values workers are built against; change with care.
const (
	DefaultModel       = "llama3.2:3b"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
	DefaultPriority    = 0

	DefaultLockTTL            = 300 * time.Second
	DefaultHeartbeatStale     = 60 * time.Second
	DefaultSweepInterval      = 60 * time.Second
	DefaultSignatureWindow    = 5 * time.Minute
	DefaultNodeOnlineWindow   = 15 * time.Minute
	DefaultNodeTTL            = 7 * 24 * time.Hour
	DefaultJobCleanupAge      = 24 * time.Hour
	DefaultMaxConcurrentJobs  = 1
	DefaultPublicNodeListSize = 100
)

// ValidJobStatus returns whether the status is a member of the closed job
// status set.
func ValidJobStatus(status string) bool {
	switch status {
	case JobStatusPending, JobStatusAssigned, JobStatusRunning,
		JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Job is the coordinator-side record of a single inference request. All
// timestamps are epoch milliseconds to match the wire format.
type Job struct {
	ID          string                 `json:"id"`
	Prompt      string                 `json:"prompt"`
	Model       string                 `json:"model"`
	Options     map[string]interface{} `json:"options,omitempty"`
	Priority    int                    `json:"priority"`
	MaxTokens   int                    `json:"maxTokens"`
	Temperature float64                `json:"temperature"`
	UserID      string                 `json:"userId"`

	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`

	AssignedTo    string `json:"assignedTo,omitempty"`
	AssignedAt    int64  `json:"assignedAt,omitempty"`
	StartedAt     int64  `json:"startedAt,omitempty"`
	LastHeartbeat int64  `json:"lastHeartbeat,omitempty"`

	LastChunkAt int64                  `json:"lastChunkAt,omitempty"`
	ChunkCount  int                    `json:"chunkCount"`
	LastMetrics map[string]interface{} `json:"lastMetrics,omitempty"`

	Result        string `json:"result,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
	Attempts      int    `json:"attempts"`
	TimeoutReason string `json:"timeoutReason,omitempty"`
}

// TerminalStatus returns whether the job has reached a terminal state.
func (j *Job) TerminalStatus() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// PendingScore computes the pending queue score: priority dominates, arrival
// time breaks ties, ascending range scans yield highest-priority-oldest-first.
func PendingScore(priority int, createdAtMs int64) float64 {
	return float64(-priority)*1e6 + float64(createdAtMs)
}

// Copy returns a deep copy of the job.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	nj := *j
	nj.Options = copyMap(j.Options)
	nj.LastMetrics = copyMap(j.LastMetrics)
	return &nj
}

// Chunk is one streamed fragment of a job's output. Ordering is by Index;
// fragments may arrive in any order.
type Chunk struct {
	Index     int                    `json:"index"`
	Content   string                 `json:"content"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
	IsFinal   bool                   `json:"isFinal,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Node is the registry record for a worker. Identity is the fingerprint of
// the node's public key; UserID is empty until the node is claimed.
type Node struct {
	ID                string                 `json:"nodeId"`
	PublicKey         string                 `json:"publicKey"`
	Name              string                 `json:"name"`
	UserID            string                 `json:"userId,omitempty"`
	Status            string                 `json:"status"`
	LastSeen          int64                  `json:"lastSeen"`
	IsPublic          bool                   `json:"isPublic"`
	Capabilities      map[string]interface{} `json:"capabilities,omitempty"`
	ActiveJobs        int                    `json:"activeJobs"`
	MaxConcurrentJobs int                    `json:"maxConcurrentJobs"`
	ClaimedAt         int64                  `json:"claimedAt,omitempty"`
}

// Online evaluates the authoritative liveness predicate. The stored Status
// field is only a cached hint.
func (n *Node) Online(now time.Time, window time.Duration) bool {
	return now.UnixMilli()-n.LastSeen < window.Milliseconds()
}

// Copy returns a deep copy of the node.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	nn := *n
	nn.Capabilities = copyMap(n.Capabilities)
	return &nn
}

// SignatureEnvelope carries a node's proof of identity on authenticated
// calls. Signature covers the UTF-8 bytes of "{nodeId}:{timestamp}".
type SignatureEnvelope struct {
	NodeID    string `json:"nodeId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// SignedMessage returns the canonical string the envelope signature covers.
func (e *SignatureEnvelope) SignedMessage() string {
	return fmt.Sprintf("%s:%d", e.NodeID, e.Timestamp)
}

// JobStats are the queue depth counters exposed by the stats endpoint.
// Running aliases the assigned queue depth.
type JobStats struct {
	Pending   int64 `json:"pending"`
	Assigned  int64 `json:"assigned"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// JobResultView is the poll-side view of a job returned to submitters.
// Partial carries the concatenated chunk contents for in-flight jobs.
type JobResultView struct {
	JobID         string                 `json:"jobId"`
	Status        string                 `json:"status"`
	Result        string                 `json:"result,omitempty"`
	FailureReason string                 `json:"failureReason,omitempty"`
	Partial       string                 `json:"partial,omitempty"`
	ChunkCount    int                    `json:"chunkCount"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Attempts      int                    `json:"attempts"`
	CreatedAt     int64                  `json:"createdAt"`
	UpdatedAt     int64                  `json:"updatedAt"`
}

// JobAssignment is the subset of a job handed to a polling worker.
type JobAssignment struct {
	ID          string                 `json:"id"`
	Prompt      string                 `json:"prompt"`
	Model       string                 `json:"model"`
	Options     map[string]interface{} `json:"options,omitempty"`
	MaxTokens   int                    `json:"maxTokens"`
	Temperature float64                `json:"temperature"`
}

// NewAssignment projects a job into the worker-visible assignment shape.
func (j *Job) NewAssignment() *JobAssignment {
	return &JobAssignment{
		ID:          j.ID,
		Prompt:      j.Prompt,
		Model:       j.Model,
		Options:     copyMap(j.Options),
		MaxTokens:   j.MaxTokens,
		Temperature: j.Temperature,
	}
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
