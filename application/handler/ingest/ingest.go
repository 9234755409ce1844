// Package ingest implements the repository ingestion pipeline executed by
// queue workers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/twodHQ/rephole/domain/chunk"
	"github.com/twodHQ/rephole/domain/job"
	"github.com/twodHQ/rephole/domain/repository"
	"github.com/twodHQ/rephole/domain/search"
	"github.com/twodHQ/rephole/infrastructure/git"
	"github.com/twodHQ/rephole/internal/database"
)

// Progress checkpoints reported through the queue.
const (
	progressResolved = 10
	progressDiffed   = 20
	progressFiles    = 90 // files phase spans 20..90
)

// Repository handles the repository ingest operation: clone or reuse the
// working copy, diff against the last processed commit, and index every
// added or modified file.
type Repository struct {
	states   repository.StateStore
	mirror   git.Mirror
	splitter chunk.Splitter
	embedder search.Embedder
	vectors  search.VectorStore
	blobs    search.BlobStore
	queue    job.Queue
	root     string
	logger   *slog.Logger
}

// NewRepository creates the ingest handler. root is the storage directory
// that working clones live under.
func NewRepository(
	states repository.StateStore,
	mirror git.Mirror,
	splitter chunk.Splitter,
	embedder search.Embedder,
	vectors search.VectorStore,
	blobs search.BlobStore,
	queue job.Queue,
	root string,
	logger *slog.Logger,
) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		states:   states,
		mirror:   mirror,
		splitter: splitter,
		embedder: embedder,
		vectors:  vectors,
		blobs:    blobs,
		queue:    queue,
		root:     root,
		logger:   logger,
	}
}

// Execute runs the ingestion state machine for one job.
func (h *Repository) Execute(ctx context.Context, j job.Job) error {
	repoURL := j.PayloadString(job.FieldRepoURL)
	if repoURL == "" {
		return fmt.Errorf("job %s: missing %s", j.ID(), job.FieldRepoURL)
	}
	repoID := j.PayloadString(job.FieldRepoID)
	if repoID == "" {
		return fmt.Errorf("job %s: missing %s", j.ID(), job.FieldRepoID)
	}

	meta, dropped := search.SanitizeMeta(j.PayloadMap(job.FieldMeta))
	if len(dropped) > 0 {
		h.logger.Warn("dropped reserved or non-primitive meta keys",
			slog.String("jobId", j.ID()),
			slog.Any("keys", dropped),
		)
	}

	state, err := h.resolveState(ctx, repoURL,
		j.PayloadString(job.FieldRef), j.PayloadString(job.FieldToken))
	if err != nil {
		return err
	}
	h.setProgress(ctx, j.ID(), progressResolved)

	head, err := h.mirror.CurrentCommit(ctx, state.LocalPath())
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}

	changes, err := h.mirror.ChangedFiles(ctx, state.LocalPath(), state.LastProcessedCommit())
	if errors.Is(err, git.ErrUnknownCommit) {
		// Force push or pruned history: fall back to a full re-index.
		h.logger.Warn("last processed commit unknown, re-indexing from scratch",
			slog.String("repoUrl", repoURL),
			slog.String("lastProcessedCommit", state.LastProcessedCommit()),
		)
		changes, err = h.mirror.ChangedFiles(ctx, state.LocalPath(), "")
	}
	if err != nil {
		return fmt.Errorf("diff changes: %w", err)
	}
	h.setProgress(ctx, j.ID(), progressDiffed)

	// Deletions run before the no-change short-circuit so a commit that
	// only removes files still clears its vectors.
	for _, path := range changes.Deleted {
		err := h.vectors.DeleteByFilter(ctx, search.Filter{
			search.KeyRepoID:   repoID,
			search.KeyParentID: path,
		})
		if err != nil {
			return fmt.Errorf("delete vectors for %s: %w", path, err)
		}
		h.logger.Info("removed vectors for deleted file",
			slog.String("repoId", repoID),
			slog.String("filePath", path),
		)
	}

	toProcess := changes.ToProcess()
	if len(toProcess) == 0 {
		h.logger.Info("no changes detected",
			slog.String("repoUrl", repoURL),
			slog.String("commit", head),
		)
		return h.commitState(ctx, state, head)
	}

	userID := j.PayloadString(job.FieldUserID)
	for i, path := range toProcess {
		if err := h.processFile(ctx, state, repoID, userID, path, meta); err != nil {
			return err
		}
		h.setProgress(ctx, j.ID(),
			progressDiffed+(progressFiles-progressDiffed)*(i+1)/len(toProcess))
	}

	return h.commitState(ctx, state, head)
}

// resolveState finds or creates the repo state and guarantees a working
// clone at its local path, synced to the requested ref.
func (h *Repository) resolveState(ctx context.Context, repoURL, ref, token string) (repository.State, error) {
	state, err := h.states.FindByURL(ctx, repoURL)
	switch {
	case errors.Is(err, database.ErrNotFound):
		state = repository.NewState(repoURL)
		state = state.WithLocalPath(filepath.Join(h.root, state.ID()))
		if state, err = h.states.Save(ctx, state); err != nil {
			return repository.State{}, fmt.Errorf("create repo state: %w", err)
		}
		h.logger.Info("created repo state",
			slog.String("repoUrl", repoURL),
			slog.String("id", state.ID()),
		)
	case err != nil:
		return repository.State{}, fmt.Errorf("find repo state: %w", err)
	}

	// Sync clones a missing work tree and fetches new commits into an
	// existing one. The token never reaches the stored state; only the
	// remote URL handed to git carries it.
	cloneURL := git.AuthenticatedURL(repoURL, token)
	if err := h.mirror.Sync(ctx, cloneURL, state.LocalPath(), ref); err != nil {
		return repository.State{}, fmt.Errorf("sync clone: %w", err)
	}
	return state, nil
}

// processFile indexes one added or modified file. Read and parse problems
// are logged and skipped; store and embedding failures fail the job.
func (h *Repository) processFile(
	ctx context.Context,
	state repository.State,
	repoID, userID, path string,
	meta map[string]any,
) error {
	if IsBinaryPath(path) {
		h.logger.Debug("skipping binary file", slog.String("filePath", path))
		return nil
	}

	source, err := os.ReadFile(filepath.Join(state.LocalPath(), path))
	if err != nil {
		h.logger.Warn("cannot read file, skipping",
			slog.String("filePath", path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !utf8.Valid(source) {
		h.logger.Warn("file is not valid UTF-8, skipping", slog.String("filePath", path))
		return nil
	}

	// The parent blob is written before chunking so files that yield zero
	// blocks are still retrievable whole.
	if err := h.blobs.SaveParent(ctx, path, string(source), repoID, meta); err != nil {
		return fmt.Errorf("save blob %s: %w", path, err)
	}

	chunks := h.splitter.Split(path, source)
	kept := chunks[:0]
	for _, c := range chunks {
		if !c.IsBlank() {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		h.logger.Warn("no chunks produced, skipping embedding", slog.String("filePath", path))
		return nil
	}

	if dups := chunk.DuplicateIDs(kept); len(dups) > 0 {
		// A duplicate batch would poison the collection; drop the file.
		h.logger.Error("duplicate chunk ids, skipping file",
			slog.String("filePath", path),
			slog.Any("ids", dups),
		)
		return nil
	}

	texts := make([]string, len(kept))
	for i, c := range kept {
		texts[i] = c.Content()
	}

	vecs, err := h.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", path, err)
	}
	if len(vecs) != len(kept) {
		return fmt.Errorf("embed %s: got %d vectors for %d chunks", path, len(vecs), len(kept))
	}

	records := make([]search.VectorRecord, len(kept))
	timestamp := time.Now().UTC().Format(time.RFC3339)
	for i, c := range kept {
		records[i] = search.VectorRecord{
			ID:      c.ID(),
			Vector:  vecs[i],
			Content: c.Content(),
			Metadata: buildMetadata(c, meta, recordContext{
				repositoryID: state.ID(),
				repoID:       repoID,
				userID:       userID,
				timestamp:    timestamp,
				chunkIndex:   i,
			}),
		}
	}

	if err := h.vectors.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert vectors %s: %w", path, err)
	}

	h.logger.Info("indexed file",
		slog.String("repoId", repoID),
		slog.String("filePath", path),
		slog.Int("chunks", len(kept)),
	)
	return nil
}

type recordContext struct {
	repositoryID string
	repoID       string
	userID       string
	timestamp    string
	chunkIndex   int
}

// buildMetadata merges user meta first so reserved names always win.
func buildMetadata(c chunk.Chunk, meta map[string]any, rc recordContext) map[string]any {
	m := make(map[string]any, len(meta)+15)
	for k, v := range meta {
		m[k] = v
	}

	m[search.KeyID] = c.ID()
	m[search.KeyCategory] = search.CategoryRepository
	m[search.KeyRepositoryID] = rc.repositoryID
	m[search.KeyRepoID] = rc.repoID
	m[search.KeyWorkspaceID] = ""
	m[search.KeyUserID] = rc.userID
	m[search.KeyTimestamp] = rc.timestamp
	m[search.KeyFilePath] = c.FilePath()
	m[search.KeyFileType] = strings.ToLower(filepath.Ext(c.FilePath()))
	m[search.KeyChunkIndex] = rc.chunkIndex
	m[search.KeyChunkType] = c.NodeType()
	m[search.KeyParentID] = c.FilePath()
	m[search.KeyFunctionName] = c.Name()
	m[search.KeyStartLine] = c.StartLine()
	m[search.KeyEndLine] = c.EndLine()
	return m
}

// commitState persists the processed commit hash.
func (h *Repository) commitState(ctx context.Context, state repository.State, head string) error {
	if _, err := h.states.Save(ctx, state.WithLastProcessedCommit(head)); err != nil {
		return fmt.Errorf("commit repo state: %w", err)
	}
	return nil
}

func (h *Repository) setProgress(ctx context.Context, id string, pct int) {
	if h.queue == nil {
		return
	}
	if err := h.queue.SetProgress(ctx, id, pct); err != nil {
		h.logger.Debug("progress update failed",
			slog.String("jobId", id),
			slog.String("error", err.Error()),
		)
	}
}
