package coordinator

// Logical key layout in the store. Every coordinator-owned key is listed
// here; no other file builds key strings.

const (
	queuePending   = "queue:pending"
	queueAssigned  = "queue:assigned"
	queueCompleted = "queue:completed"
	queueFailed    = "queue:failed"

	publicNodesKey = "publicNodes"
)

func jobKey(id string) string { return "job:" + id }

func jobChunksKey(id string) string { return "job:chunks:" + id }

func jobLockKey(id string) string { return "job:lock:" + id }

func nodeKey(id string) string { return "node:" + id }

func userNodesKey(userID string) string { return "user_nodes:" + userID }

func nodeJobsKey(nodeID string) string { return "node_jobs:" + nodeID }

// statusQueue maps a job status to its queue key. Running jobs live in the
// assigned queue; the job record's status field distinguishes them.
func statusQueue(status string) string {
	switch status {
	case "pending":
		return queuePending
	case "assigned", "running":
		return queueAssigned
	case "completed":
		return queueCompleted
	case "failed":
		return queueFailed
	default:
		return ""
	}
}
