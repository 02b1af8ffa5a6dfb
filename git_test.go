package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyCloneError(t *testing.T) {
	repo := RepoRef{Owner: "user", Name: "demo"}
	tests := []struct {
		err  error
		want FetchErrorKind
	}{
		{transport.ErrRepositoryNotFound, FetchNotFound},
		{fmt.Errorf("clone: %w", transport.ErrAuthenticationRequired), FetchAuthRequired},
		{transport.ErrEmptyRemoteRepository, FetchEmpty},
		{timeoutError{}, FetchNetwork},
		{errors.New("boom"), FetchOther},
	}
	for _, tt := range tests {
		var fetchErr *FetchError
		if !errors.As(classifyCloneError(repo, tt.err), &fetchErr) {
			t.Fatalf("%v: expected FetchError", tt.err)
		}
		if fetchErr.Kind != tt.want {
			t.Fatalf("%v: kind = %s, want %s", tt.err, fetchErr.Kind, tt.want)
		}
	}

	if err := classifyCloneError(repo, context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation should pass through, got %v", err)
	}
}

func TestFetchErrorHints(t *testing.T) {
	notFound := &FetchError{Repo: "user/demo", Kind: FetchNotFound, Err: errors.New("404")}
	if len(notFound.Hints()) != 3 {
		t.Fatalf("hints = %v", notFound.Hints())
	}
	auth := &FetchError{Repo: "user/demo", Kind: FetchAuthRequired}
	if !strings.Contains(auth.Hints()[0], "public") {
		t.Fatalf("hints = %v", auth.Hints())
	}
}

func TestIsEmptyCheckout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".git/HEAD", []byte("ref: refs/heads/main\n"))
	empty, err := isEmptyCheckout(dir)
	if err != nil || !empty {
		t.Fatalf("empty = %v, err = %v", empty, err)
	}

	writeFile(t, dir, "README.md", []byte("hi"))
	empty, err = isEmptyCheckout(dir)
	if err != nil || empty {
		t.Fatalf("empty = %v, err = %v", empty, err)
	}
}

func TestCheckCheckout(t *testing.T) {
	repo := RepoRef{Owner: "user", Name: "demo"}
	dir := t.TempDir()

	var fetchErr *FetchError
	if err := checkCheckout(repo, dir); !errors.As(err, &fetchErr) || fetchErr.Kind != FetchEmpty {
		t.Fatalf("empty dir: got %v", err)
	}

	err := checkCheckout(repo, filepath.Join(dir, "missing"))
	if !errors.As(err, &fetchErr) || fetchErr.Kind != FetchOther || fetchErr.Err == nil {
		t.Fatalf("unreadable dir: got %v", err)
	}
	if strings.Contains(err.Error(), "empty") {
		t.Fatalf("read failure reported as empty: %v", err)
	}

	writeFile(t, dir, "main.go", []byte("package main\n"))
	if err := checkCheckout(repo, dir); err != nil {
		t.Fatalf("populated dir: %v", err)
	}
}
