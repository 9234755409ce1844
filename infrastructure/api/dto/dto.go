// Package dto defines the request and response shapes of the HTTP API.
package dto

// IngestRequest is the body of POST /ingestions/repository.
type IngestRequest struct {
	RepoURL string         `json:"repoUrl"`
	Ref     string         `json:"ref,omitempty"`
	Token   string         `json:"token,omitempty"`
	UserID  string         `json:"userId,omitempty"`
	RepoID  string         `json:"repoId,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// IngestResponse acknowledges a queued ingestion.
type IngestResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"jobId"`
	RepoURL string `json:"repoUrl"`
	Ref     string `json:"ref"`
	RepoID  string `json:"repoId"`
}

// JobStatusResponse is the body of GET /jobs/job/{jobId}.
type JobStatusResponse struct {
	ID       string         `json:"id"`
	State    string         `json:"state"`
	Progress int            `json:"progress"`
	Data     map[string]any `json:"data"`
}

// FailedJob is one entry of GET /jobs/failed.
type FailedJob struct {
	ID           string         `json:"id"`
	FailedReason string         `json:"failedReason"`
	AttemptsMade int            `json:"attemptsMade"`
	Timestamp    string         `json:"timestamp"`
	Data         map[string]any `json:"data"`
}

// FailedJobsResponse is the body of GET /jobs/failed.
type FailedJobsResponse struct {
	Jobs []FailedJob `json:"jobs"`
}

// RetryResponse acknowledges a retried job.
type RetryResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// RetryAllResponse reports how many failed jobs were re-enqueued.
type RetryAllResponse struct {
	Status  string `json:"status"`
	Retried int    `json:"retried"`
}

// QueryRequest is the body of the search endpoints.
type QueryRequest struct {
	Prompt string         `json:"prompt"`
	K      int            `json:"k,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// QueryResult is one search hit.
type QueryResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	RepoID   string         `json:"repoId"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResponse is the body of the search endpoints.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
