package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Fetcher materializes a repository as a local directory tree. The returned
// cleanup removes everything the fetcher created and is never nil on success.
type Fetcher interface {
	Fetch(ctx context.Context, repo RepoRef) (dir string, cleanup func(), err error)
}

// newFetcher returns the fetcher for the configured method.
func newFetcher(cfg Config, log *logger) (Fetcher, error) {
	switch cfg.Method {
	case "", "clone":
		return &cloneFetcher{ref: cfg.Ref, log: log}, nil
	case "archive":
		return newArchiveFetcher(cfg.Ref, log), nil
	default:
		return nil, argumentErrorf("unknown fetch method %q: use clone or archive", cfg.Method)
	}
}

// cloneFetcher performs a shallow single-branch clone with go-git.
type cloneFetcher struct {
	ref string
	log *logger
}

func (f *cloneFetcher) Fetch(ctx context.Context, repo RepoRef) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "gitsnap-clone-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tempDir) }

	f.log.Debugf("Cloning %s into %s", repo.URL, tempDir)

	opts := &git.CloneOptions{
		URL:          repo.URL,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
		Progress:     f.log.progress(),
	}
	if f.ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(f.ref)
	}

	if _, err := git.PlainCloneContext(ctx, tempDir, false, opts); err != nil {
		cleanup()
		return "", nil, classifyCloneError(repo, err)
	}

	if err := checkCheckout(repo, tempDir); err != nil {
		cleanup()
		return "", nil, err
	}

	f.log.Debugf("Repository downloaded successfully to: %s", tempDir)
	return tempDir, cleanup, nil
}

func classifyCloneError(repo RepoRef, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	kind := FetchOther
	var netErr net.Error
	switch {
	case errors.Is(err, transport.ErrRepositoryNotFound):
		kind = FetchNotFound
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		kind = FetchAuthRequired
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		kind = FetchEmpty
	case errors.As(err, &netErr):
		kind = FetchNetwork
	}
	return &FetchError{Repo: repo.String(), Kind: kind, Err: err}
}

// checkCheckout fails when dir cannot be read or holds no files. A read
// failure is reported as such, never as an empty repository.
func checkCheckout(repo RepoRef, dir string) error {
	empty, err := isEmptyCheckout(dir)
	if err != nil {
		return &FetchError{Repo: repo.String(), Err: err}
	}
	if empty {
		return &FetchError{Repo: repo.String(), Kind: FetchEmpty}
	}
	return nil
}

// isEmptyCheckout reports whether dir holds nothing besides VCS metadata.
func isEmptyCheckout(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !isVCSDir(e.Name()) {
			return false, nil
		}
	}
	return true, nil
}
