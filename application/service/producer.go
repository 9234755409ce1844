package service

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/twodHQ/rephole/domain/job"
	"github.com/twodHQ/rephole/domain/search"
)

// DefaultRef is the branch ingested when the request names none.
const DefaultRef = "main"

// knownHosts are accepted even without a .git suffix on the URL path.
var knownHosts = map[string]struct{}{
	"github.com":    {},
	"gitlab.com":    {},
	"bitbucket.org": {},
}

var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// IngestRequest is a validated-on-enqueue ingestion submission.
type IngestRequest struct {
	RepoURL string
	Ref     string
	Token   string
	UserID  string
	RepoID  string
	Meta    map[string]any
}

// Producer validates ingestion requests and enqueues jobs.
type Producer struct {
	queue  job.Queue
	logger *slog.Logger
}

// NewProducer creates a Producer.
func NewProducer(queue job.Queue, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{queue: queue, logger: logger}
}

// Enqueue validates the request and submits an ingestion job.
func (p *Producer) Enqueue(ctx context.Context, req IngestRequest) (job.Job, error) {
	if err := validateRepoURL(req.RepoURL); err != nil {
		return job.Job{}, err
	}

	ref := req.Ref
	if ref == "" {
		ref = DefaultRef
	}

	repoID := req.RepoID
	if repoID == "" {
		derived, err := DeriveRepoID(req.RepoURL)
		if err != nil {
			return job.Job{}, err
		}
		repoID = derived
	} else if !repoIDPattern.MatchString(repoID) {
		return job.Job{}, NewValidationError("repoId", "must match [A-Za-z0-9._-]+")
	}

	if invalid := search.ValidateMeta(req.Meta); len(invalid) > 0 {
		return job.Job{}, NewValidationError("meta",
			"values must be flat primitives; offending keys: "+strings.Join(invalid, ", "))
	}

	payload := map[string]any{
		job.FieldRepoURL:  req.RepoURL,
		job.FieldRef:      ref,
		job.FieldRepoID:   repoID,
		job.FieldQueuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if req.Token != "" {
		payload[job.FieldToken] = req.Token
	}
	if req.UserID != "" {
		payload[job.FieldUserID] = req.UserID
	}
	if len(req.Meta) > 0 {
		payload[job.FieldMeta] = req.Meta
	}

	queued, err := p.queue.Enqueue(ctx, job.New(job.OpIngestRepository, payload))
	if err != nil {
		return job.Job{}, err
	}

	p.logger.Info("ingestion queued",
		slog.String("jobId", queued.ID()),
		slog.String("repoUrl", req.RepoURL),
		slog.String("repoId", repoID),
		slog.String("ref", ref),
	)
	return queued, nil
}

// validateRepoURL accepts well-formed http(s) URLs that either end in
// .git or live on a known hosting provider.
func validateRepoURL(raw string) error {
	if raw == "" {
		return NewValidationError("repoUrl", "is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return NewValidationError("repoUrl", "is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("repoUrl", "must use http or https")
	}
	if u.Host == "" {
		return NewValidationError("repoUrl", "is missing a host")
	}

	if strings.HasSuffix(u.Path, ".git") {
		return nil
	}
	if _, ok := knownHosts[strings.ToLower(u.Hostname())]; ok {
		return nil
	}
	return NewValidationError("repoUrl", "must end in .git or point at a known git host")
}

// DeriveRepoID extracts the repo identifier from the URL: the trailing
// path segment with any .git suffix stripped.
func DeriveRepoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewValidationError("repoUrl", "is not a valid URL")
	}

	segment := strings.TrimSuffix(lastSegment(u.Path), ".git")
	if segment == "" || !repoIDPattern.MatchString(segment) {
		return "", NewValidationError("repoId", "cannot be derived from the URL")
	}
	return segment, nil
}

// lastSegment returns the last non-empty segment of a URL path.
func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
