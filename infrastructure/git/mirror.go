// Package git provides the working-clone mirror built on the native git
// binary via Gitea's git module.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	giteagit "code.gitea.io/gitea/modules/git"
	"code.gitea.io/gitea/modules/git/gitcmd"
	"code.gitea.io/gitea/modules/setting"
)

// ErrUnknownCommit indicates the recorded last-processed commit does not
// exist in the clone. The worker treats this as a bootstrap.
var ErrUnknownCommit = errors.New("unknown commit")

// ErrDestinationNotEmpty indicates the clone destination exists and is
// neither empty nor a git work tree.
var ErrDestinationNotEmpty = errors.New("destination exists and is not empty")

// Changes classifies the paths that differ between two commits. A rename
// is recorded under its new path.
type Changes struct {
	Added    []string
	Modified []string
	Deleted  []string
	Renamed  []string
}

// Empty reports whether no paths need re-indexing and none need deleting.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0 && len(c.Renamed) == 0
}

// ToProcess returns the paths the pipeline must re-index: added,
// modified, and renamed (new paths).
func (c Changes) ToProcess() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified)+len(c.Renamed))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	out = append(out, c.Renamed...)
	return out
}

// Mirror owns the working clone of a repository.
type Mirror interface {
	// Sync makes the work tree at dst match the remote ref: it clones url
	// when no clone exists, and fetches and realigns an existing clone.
	// Syncing into a non-empty non-git directory fails.
	Sync(ctx context.Context, url, dst, ref string) error
	// CurrentCommit resolves HEAD of the clone at path.
	CurrentCommit(ctx context.Context, path string) (string, error)
	// ChangedFiles diffs lastSHA..HEAD. An empty lastSHA lists every
	// tracked path as added. An unknown lastSHA fails with
	// ErrUnknownCommit.
	ChangedFiles(ctx context.Context, path, lastSHA string) (Changes, error)
}

// GiteaMirror implements Mirror using Gitea's git module.
type GiteaMirror struct {
	logger *slog.Logger
}

var giteaInitOnce sync.Once
var giteaInitErr error

// NewGiteaMirror creates a GiteaMirror. It initializes the Gitea git
// module once, verifying the git binary is available.
func NewGiteaMirror(logger *slog.Logger) (*GiteaMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git is not installed or not in PATH: install git and try again")
	}

	giteaInitOnce.Do(func() {
		// Gitea's git module requires a HomePath for its git environment.
		// Use a temporary directory so git config is isolated.
		home, err := os.MkdirTemp("", "rephole-git-home-*")
		if err != nil {
			giteaInitErr = fmt.Errorf("create git home directory: %w", err)
			return
		}
		setting.Git.HomePath = home

		giteaInitErr = giteagit.InitSimple()
	})
	if giteaInitErr != nil {
		return nil, fmt.Errorf("init git: %w", giteaInitErr)
	}

	return &GiteaMirror{logger: logger}, nil
}

// Sync clones url into dst, or updates an existing clone to the remote
// ref.
func (g *GiteaMirror) Sync(ctx context.Context, url, dst, ref string) error {
	info, err := os.Stat(dst)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%w: %s is a file", ErrDestinationNotEmpty, dst)
	case err == nil:
		entries, err := os.ReadDir(dst)
		if err != nil {
			return fmt.Errorf("read destination: %w", err)
		}
		if len(entries) > 0 {
			if _, err := os.Stat(filepath.Join(dst, ".git")); err == nil {
				return g.update(ctx, url, dst, ref)
			}
			return fmt.Errorf("%w: %s", ErrDestinationNotEmpty, dst)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("stat destination: %w", err)
	}

	g.logger.Info("cloning repository",
		slog.String("path", dst),
	)

	if err := giteagit.Clone(ctx, url, dst, giteagit.CloneRepoOptions{}); err != nil {
		return fmt.Errorf("clone repository: %w", err)
	}
	if ref == "" {
		return nil
	}
	return g.checkout(ctx, dst, ref)
}

// update refreshes an existing clone: point origin at the current remote
// URL (access tokens rotate), fetch, and realign the work tree with ref.
func (g *GiteaMirror) update(ctx context.Context, url, dst, ref string) error {
	g.logger.Info("updating working clone",
		slog.String("path", dst),
		slog.String("ref", ref),
	)

	if _, _, err := gitcmd.NewCommand("remote", "set-url", "origin").
		AddDynamicArguments(url).
		RunStdString(ctx, &gitcmd.RunOpts{Dir: dst}); err != nil {
		return fmt.Errorf("set origin url: %w", err)
	}

	if _, _, err := gitcmd.NewCommand("fetch", "--prune", "origin").
		RunStdString(ctx, &gitcmd.RunOpts{Dir: dst}); err != nil {
		return fmt.Errorf("fetch origin: %w", err)
	}

	if ref == "" {
		if _, _, err := gitcmd.NewCommand("pull", "--ff-only").
			RunStdString(ctx, &gitcmd.RunOpts{Dir: dst}); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		return nil
	}
	return g.checkout(ctx, dst, ref)
}

// checkout puts the work tree on ref. Remote branches are hard-aligned
// with origin so force pushes do not strand the clone; tags and commit
// hashes check out detached.
func (g *GiteaMirror) checkout(ctx context.Context, dst, ref string) error {
	_, _, err := gitcmd.NewCommand("rev-parse", "--verify", "--quiet").
		AddDynamicArguments("origin/" + ref).
		RunStdString(ctx, &gitcmd.RunOpts{Dir: dst})
	if err == nil {
		if _, _, err := gitcmd.NewCommand("checkout", "-B").
			AddDynamicArguments(ref, "origin/"+ref).
			RunStdString(ctx, &gitcmd.RunOpts{Dir: dst}); err != nil {
			return fmt.Errorf("checkout %s: %w", ref, err)
		}
		return nil
	}

	if _, _, err := gitcmd.NewCommand("checkout", "--force").
		AddDynamicArguments(ref).
		RunStdString(ctx, &gitcmd.RunOpts{Dir: dst}); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

// CurrentCommit resolves HEAD.
func (g *GiteaMirror) CurrentCommit(ctx context.Context, path string) (string, error) {
	repo, err := giteagit.OpenRepository(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}
	defer func() { _ = repo.Close() }()

	sha, err := repo.GetRefCommitID("HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return sha, nil
}

// ChangedFiles computes the diff classes against lastSHA.
func (g *GiteaMirror) ChangedFiles(ctx context.Context, path, lastSHA string) (Changes, error) {
	if lastSHA == "" {
		return g.allTracked(ctx, path)
	}

	// An unknown SHA (force push, pruned history) must surface as a
	// distinct error so the worker can fall back to bootstrap.
	if _, _, err := gitcmd.NewCommand("cat-file", "-e").
		AddDynamicArguments(lastSHA + "^{commit}").
		RunStdString(ctx, &gitcmd.RunOpts{Dir: path}); err != nil {
		return Changes{}, fmt.Errorf("%w: %s", ErrUnknownCommit, lastSHA)
	}

	stdout, _, err := gitcmd.NewCommand("diff", "--name-status", "-M").
		AddDynamicArguments(lastSHA, "HEAD").
		RunStdString(ctx, &gitcmd.RunOpts{Dir: path})
	if err != nil {
		return Changes{}, fmt.Errorf("diff %s..HEAD: %w", lastSHA, err)
	}

	return ParseNameStatus(stdout), nil
}

// allTracked lists every tracked path as added (the bootstrap diff).
func (g *GiteaMirror) allTracked(ctx context.Context, path string) (Changes, error) {
	stdout, _, err := gitcmd.NewCommand("ls-files").
		RunStdString(ctx, &gitcmd.RunOpts{Dir: path})
	if err != nil {
		return Changes{}, fmt.Errorf("list tracked files: %w", err)
	}

	var changes Changes
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			changes.Added = append(changes.Added, line)
		}
	}
	return changes, nil
}

// ParseNameStatus classifies `git diff --name-status` output lines.
// Rename entries carry two paths; the new path is kept.
func ParseNameStatus(out string) Changes {
	var changes Changes
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}

		status := fields[0]
		switch {
		case status == "A":
			changes.Added = append(changes.Added, fields[1])
		case status == "M":
			changes.Modified = append(changes.Modified, fields[1])
		case status == "D":
			changes.Deleted = append(changes.Deleted, fields[1])
		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			changes.Deleted = append(changes.Deleted, fields[1])
			changes.Renamed = append(changes.Renamed, fields[2])
		}
	}
	return changes
}

var _ Mirror = (*GiteaMirror)(nil)
