// Package repo maintains the local clone of the repository under review.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Manager clones, fetches, and checks out the repository so retrieval can
// read the exact tree the merge request targets.
type Manager struct {
	workdir string
	auth    *http.BasicAuth
	logger  *slog.Logger
}

// NewManager returns a manager working under workdir. token, when set,
// authenticates clone and fetch over HTTPS the way GitLab expects for
// personal access tokens.
func NewManager(workdir, token string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	var auth *http.BasicAuth
	if token != "" {
		auth = &http.BasicAuth{Username: "oauth2", Password: token}
	}
	return &Manager{workdir: workdir, auth: auth, logger: logger}
}

// Path returns the local repository path.
func (m *Manager) Path() string {
	return m.workdir
}

// EnsureRepo clones the repository if the working directory has no clone
// yet, otherwise fetches updates. It returns the local path.
func (m *Manager) EnsureRepo(ctx context.Context, repoURL string) (string, error) {
	repo, err := gogit.PlainOpen(m.workdir)
	if err == nil {
		m.logger.Info("repository exists, fetching", "path", m.workdir)
		err = repo.FetchContext(ctx, &gogit.FetchOptions{
			RemoteName: "origin",
			Auth:       m.auth,
			Prune:      true,
			Tags:       gogit.AllTags,
		})
		if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("fetching %s: %w", repoURL, err)
		}
		return m.workdir, nil
	}
	if !errors.Is(err, gogit.ErrRepositoryNotExists) {
		return "", fmt.Errorf("opening repository at %s: %w", m.workdir, err)
	}

	m.logger.Info("cloning repository", "url", repoURL, "path", m.workdir)
	if err := os.MkdirAll(filepath.Dir(m.workdir), 0o755); err != nil {
		return "", err
	}
	_, err = gogit.PlainCloneContext(ctx, m.workdir, false, &gogit.CloneOptions{
		URL:  repoURL,
		Auth: m.auth,
	})
	if err != nil {
		return "", fmt.Errorf("cloning %s: %w", repoURL, err)
	}
	return m.workdir, nil
}

// CheckoutSHA checks out a specific commit, detached. The commit may only
// be reachable from the merge request's source branch, so a plain fetch of
// all branch heads is attempted first when the commit is unknown.
func (m *Manager) CheckoutSHA(ctx context.Context, sha string) error {
	repo, err := gogit.PlainOpen(m.workdir)
	if err != nil {
		return fmt.Errorf("opening repository at %s: %w", m.workdir, err)
	}

	hash := plumbing.NewHash(sha)
	if _, err := repo.CommitObject(hash); err != nil {
		m.logger.Debug("commit not present locally, fetching", "sha", shortSHA(sha))
		fetchErr := repo.FetchContext(ctx, &gogit.FetchOptions{
			RemoteName: "origin",
			Auth:       m.auth,
		})
		if fetchErr != nil && !errors.Is(fetchErr, gogit.NoErrAlreadyUpToDate) {
			return fmt.Errorf("fetching for commit %s: %w", shortSHA(sha), fetchErr)
		}
		if _, err := repo.CommitObject(hash); err != nil {
			return fmt.Errorf("commit %s not found after fetch: %w", shortSHA(sha), err)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	m.logger.Info("checking out commit", "sha", shortSHA(sha))
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", shortSHA(sha), err)
	}
	return nil
}

// CheckoutBranch checks out the remote-tracking state of a branch.
func (m *Manager) CheckoutBranch(ctx context.Context, branch string) error {
	repo, err := gogit.PlainOpen(m.workdir)
	if err != nil {
		return fmt.Errorf("opening repository at %s: %w", m.workdir, err)
	}
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return fmt.Errorf("resolving origin/%s: %w", branch, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	m.logger.Info("checking out branch", "branch", branch)
	return wt.Checkout(&gogit.CheckoutOptions{Hash: ref.Hash(), Force: true})
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
