package main

import (
	"errors"
	"fmt"
)

// Exit codes returned by the CLI.
const (
	exitOK       = 0
	exitFailure  = 1
	exitArgument = 2
)

// ArgumentError reports invalid CLI input. It is raised before any work starts.
type ArgumentError struct {
	Msg string
	Err error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func argumentErrorf(format string, args ...any) *ArgumentError {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// FetchErrorKind classifies fetch failures for user-facing hints.
type FetchErrorKind int

const (
	FetchOther FetchErrorKind = iota
	FetchNotFound
	FetchAuthRequired
	FetchEmpty
	FetchNetwork
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchNotFound:
		return "not-found"
	case FetchAuthRequired:
		return "auth-required"
	case FetchEmpty:
		return "empty"
	case FetchNetwork:
		return "network"
	default:
		return "other"
	}
}

// FetchError is returned when the repository cannot be materialized locally.
type FetchError struct {
	Repo string
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchNotFound:
		return fmt.Sprintf("repository %s not found: %v", e.Repo, e.Err)
	case FetchAuthRequired:
		return fmt.Sprintf("repository %s requires authentication: %v", e.Repo, e.Err)
	case FetchEmpty:
		return fmt.Sprintf("repository %s appears to be empty", e.Repo)
	default:
		return fmt.Sprintf("failed to fetch repository %s: %v", e.Repo, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Hints returns the troubleshooting checklist printed after a failed fetch.
func (e *FetchError) Hints() []string {
	switch e.Kind {
	case FetchEmpty:
		return []string{"The repository has no commits on the requested branch"}
	case FetchAuthRequired:
		return []string{"Private repositories are not supported; make sure the repository is public"}
	}
	return []string{
		"1. The repository exists and is public",
		"2. You have the correct repository URL",
		"3. GitHub is accessible from your network",
	}
}

// WriteError reports a failure writing the snapshot. It always aborts the run.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// errAborted signals that the user cancelled the interactive picker.
var errAborted = errors.New("selection aborted")

// exitCode maps an error returned by the root command to a process exit code.
func exitCode(err error) int {
	if err == nil || errors.Is(err, errAborted) {
		return exitOK
	}
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return exitArgument
	}
	return exitFailure
}
