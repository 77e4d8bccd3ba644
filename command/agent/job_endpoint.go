package agent

import (
	"net/http"
	"strings"
	"time"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// JobsRequest handles job submission
func (s *HTTPServer) JobsRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	userID, err := s.parseUser(req)
	if err != nil {
		return nil, err
	}

	var args structs.JobSubmitRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}

	job, err := s.agent.coordinator.SubmitJob(req.Context(), userID, &args)
	if err != nil {
		return nil, err
	}

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusCreated)
	return &structs.JobSubmitResponse{Success: true, Job: job}, nil
}

// JobSpecificRequest routes everything under /jobs/
func (s *HTTPServer) JobSpecificRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	path := strings.TrimPrefix(req.URL.Path, "/jobs/")
	switch path {
	case "poll":
		return s.jobPollRequest(resp, req)
	case "stats":
		return s.jobStatsRequest(resp, req)
	case "check-timeouts":
		return s.jobCheckTimeoutsRequest(resp, req)
	case "cleanup":
		return s.jobCleanupRequest(resp, req)
	}

	jobID, op, _ := strings.Cut(path, "/")
	if jobID == "" {
		return nil, CodedError(http.StatusNotFound, "missing job id")
	}
	switch op {
	case "":
		return s.jobResultRequest(resp, req, jobID)
	case "heartbeat":
		return s.jobHeartbeatRequest(resp, req, jobID)
	case "chunks":
		return s.jobChunkRequest(resp, req, jobID)
	case "complete":
		return s.jobCompleteRequest(resp, req, jobID)
	case "fail":
		return s.jobFailRequest(resp, req, jobID)
	case "cancel":
		return s.jobCancelRequest(resp, req, jobID)
	default:
		return nil, CodedError(http.StatusNotFound, "unknown job endpoint")
	}
}

func (s *HTTPServer) jobPollRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}

	var args structs.JobPollRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}
	verified, err := s.verifyNode(&args.SignatureEnvelope)
	if err != nil {
		return nil, err
	}

	maxJobs := args.MaxJobs
	if maxJobs < 1 {
		maxJobs = 1
	}
	jobs, err := s.agent.coordinator.AssignJobs(req.Context(), verified.NodeID, maxJobs)
	if err != nil {
		return nil, err
	}

	assignments := make([]*structs.JobAssignment, 0, len(jobs))
	for _, job := range jobs {
		assignments = append(assignments, job.NewAssignment())
	}
	return &structs.JobPollResponse{Success: true, Jobs: assignments}, nil
}

func (s *HTTPServer) jobStatsRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	stats, err := s.agent.coordinator.GetStats(req.Context())
	if err != nil {
		return nil, err
	}
	return &structs.JobStatsResponse{Success: true, Stats: stats}, nil
}

// jobCheckTimeoutsRequest triggers a sweep on demand. The periodic sweeper
// makes this mostly an operational escape hatch.
func (s *HTTPServer) jobCheckTimeoutsRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	reclaimed, err := s.agent.coordinator.CheckTimeouts(req.Context())
	if err != nil {
		return nil, err
	}
	if reclaimed == nil {
		reclaimed = []string{}
	}
	return &structs.TimeoutCheckResponse{Success: true, TimeoutJobs: reclaimed}, nil
}

func (s *HTTPServer) jobCleanupRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	if _, err := s.parseUser(req); err != nil {
		return nil, err
	}

	var args structs.JobCleanupRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}

	cleaned, err := s.agent.coordinator.CleanupOldJobs(req.Context(), time.Duration(args.MaxAge)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return &structs.JobCleanupResponse{Success: true, Cleaned: cleaned}, nil
}

func (s *HTTPServer) jobResultRequest(resp http.ResponseWriter, req *http.Request, jobID string) (interface{}, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	view, err := s.agent.coordinator.GetResult(req.Context(), jobID)
	if err != nil {
		return nil, err
	}
	return &structs.JobResultResponse{Success: true, JobResultView: *view}, nil
}

func (s *HTTPServer) jobHeartbeatRequest(resp http.ResponseWriter, req *http.Request, jobID string) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}

	var args structs.JobHeartbeatRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}
	verified, err := s.verifyNode(&args.SignatureEnvelope)
	if err != nil {
		return nil, err
	}

	serverTime, err := s.agent.coordinator.Heartbeat(req.Context(), jobID, verified.NodeID)
	if err != nil {
		return nil, err
	}
	return &structs.JobHeartbeatResponse{Success: true, Timestamp: serverTime}, nil
}

func (s *HTTPServer) jobChunkRequest(resp http.ResponseWriter, req *http.Request, jobID string) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}

	var args structs.JobChunkRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}
	verified, err := s.verifyNode(&args.SignatureEnvelope)
	if err != nil {
		return nil, err
	}
	if args.ChunkIndex < 0 {
		return nil, CodedError(http.StatusBadRequest, "chunk index must not be negative")
	}

	chunk := &structs.Chunk{
		Index:   args.ChunkIndex,
		Content: args.Content,
		Metrics: args.Metrics,
		IsFinal: args.IsFinal,
	}
	if err := s.agent.coordinator.StoreChunk(req.Context(), jobID, verified.NodeID, chunk); err != nil {
		return nil, err
	}
	return &structs.JobChunkResponse{Success: true, ChunkIndex: args.ChunkIndex}, nil
}

func (s *HTTPServer) jobCompleteRequest(resp http.ResponseWriter, req *http.Request, jobID string) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}

	var args structs.JobCompleteRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}
	verified, err := s.verifyNode(&args.SignatureEnvelope)
	if err != nil {
		return nil, err
	}

	job, err := s.agent.coordinator.CompleteJob(req.Context(), jobID, verified.NodeID, args.FinalOutput)
	if err != nil {
		return nil, err
	}
	return &structs.JobResponse{Success: true, Job: job}, nil
}

func (s *HTTPServer) jobFailRequest(resp http.ResponseWriter, req *http.Request, jobID string) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}

	var args structs.JobFailRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, err
	}
	verified, err := s.verifyNode(&args.SignatureEnvelope)
	if err != nil {
		return nil, err
	}
	if args.Error == "" {
		return nil, CodedError(http.StatusBadRequest, "missing failure reason")
	}

	job, err := s.agent.coordinator.FailJob(req.Context(), jobID, verified.NodeID, args.Error)
	if err != nil {
		return nil, err
	}
	return &structs.JobResponse{Success: true, Job: job}, nil
}

func (s *HTTPServer) jobCancelRequest(resp http.ResponseWriter, req *http.Request, jobID string) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	userID, err := s.parseUser(req)
	if err != nil {
		return nil, err
	}

	job, err := s.agent.coordinator.CancelJob(req.Context(), jobID, userID)
	if err != nil {
		return nil, err
	}
	return &structs.JobResponse{Success: true, Job: job}, nil
}
