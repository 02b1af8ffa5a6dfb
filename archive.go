package main

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const githubWebURL = "https://github.com"

// archiveFetcher downloads the zip archive GitHub serves for a ref and
// extracts it into a temporary directory.
type archiveFetcher struct {
	ref    string
	log    *logger
	client *resty.Client
}

func newArchiveFetcher(ref string, log *logger) *archiveFetcher {
	client := resty.New()
	client.SetBaseURL(githubWebURL)
	client.SetTimeout(5 * time.Minute)
	client.SetHeader("User-Agent", "gitsnap")
	return &archiveFetcher{ref: ref, log: log, client: client}
}

func (f *archiveFetcher) archivePath(repo RepoRef) string {
	ref := f.ref
	if ref == "" {
		ref = "HEAD"
	}
	return fmt.Sprintf("/%s/%s/archive/%s.zip", repo.Owner, repo.Name, ref)
}

func (f *archiveFetcher) Fetch(ctx context.Context, repo RepoRef) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "gitsnap-archive-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tempDir) }

	zipPath := filepath.Join(tempDir, "archive.zip")
	if err := f.download(ctx, repo, zipPath); err != nil {
		cleanup()
		return "", nil, err
	}

	dest := filepath.Join(tempDir, "src")
	f.log.Debugf("Extracting %s into %s", zipPath, dest)
	if err := extractZip(zipPath, dest); err != nil {
		cleanup()
		return "", nil, &FetchError{Repo: repo.String(), Err: fmt.Errorf("extract archive: %w", err)}
	}
	_ = os.Remove(zipPath)

	if err := checkCheckout(repo, dest); err != nil {
		cleanup()
		return "", nil, err
	}
	return dest, cleanup, nil
}

func (f *archiveFetcher) download(ctx context.Context, repo RepoRef, zipPath string) error {
	path := f.archivePath(repo)
	f.log.Debugf("Downloading %s%s", f.client.BaseURL, path)

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		kind := FetchOther
		var netErr net.Error
		if errors.As(err, &netErr) {
			kind = FetchNetwork
		}
		return &FetchError{Repo: repo.String(), Kind: kind, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	switch status := resp.StatusCode(); {
	case status == http.StatusNotFound:
		return &FetchError{Repo: repo.String(), Kind: FetchNotFound, Err: fmt.Errorf("GET %s: %s", path, resp.Status())}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &FetchError{Repo: repo.String(), Kind: FetchAuthRequired, Err: fmt.Errorf("GET %s: %s", path, resp.Status())}
	case status < 200 || status >= 300:
		return &FetchError{Repo: repo.String(), Err: fmt.Errorf("GET %s: %s", path, resp.Status())}
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", zipPath, err)
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &FetchError{Repo: repo.String(), Kind: FetchNetwork, Err: fmt.Errorf("download archive: %w", err)}
	}
	f.log.Debugf("Downloaded %d bytes", n)
	return nil
}

// maxLinkTarget bounds the content of a symlink entry.
const maxLinkTarget = 4096

// zipLink is a symlink entry created once all files are in place.
type zipLink struct {
	path   string
	target string
}

// extractZip unpacks a GitHub archive into dest, dropping the single top-level
// "<repo>-<ref>/" directory. Symlinks are created last so that no entry is
// written through one, and their targets must stay inside dest.
func extractZip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	cleanDest := filepath.Clean(dest) + string(os.PathSeparator)

	var links []zipLink
	for _, zf := range r.File {
		name := stripTopDir(zf.Name)
		if name == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if !strings.HasPrefix(target, cleanDest) {
			return fmt.Errorf("archive entry %q escapes destination", zf.Name)
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			link, err := readZipLink(zf, target, cleanDest)
			if err != nil {
				return err
			}
			links = append(links, link)
		default:
			if err := extractZipFile(zf, target); err != nil {
				return err
			}
		}
	}

	for _, l := range links {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return err
		}
		if err := os.Symlink(l.target, l.path); err != nil {
			return fmt.Errorf("create symlink %s: %w", l.path, err)
		}
	}
	return nil
}

// readZipLink reads the target stored as a symlink entry's content. Absolute
// targets and targets resolving outside dest are rejected.
func readZipLink(zf *zip.File, path, cleanDest string) (zipLink, error) {
	src, err := zf.Open()
	if err != nil {
		return zipLink{}, err
	}
	defer src.Close()

	raw, err := io.ReadAll(io.LimitReader(src, maxLinkTarget+1))
	if err != nil {
		return zipLink{}, fmt.Errorf("read symlink %s: %w", zf.Name, err)
	}
	if len(raw) == 0 || len(raw) > maxLinkTarget {
		return zipLink{}, fmt.Errorf("archive symlink %q has an invalid target", zf.Name)
	}

	target := filepath.FromSlash(string(raw))
	resolved := filepath.Join(filepath.Dir(path), target)
	if filepath.IsAbs(target) || !strings.HasPrefix(resolved+string(os.PathSeparator), cleanDest) {
		return zipLink{}, fmt.Errorf("archive symlink %q points outside the destination", zf.Name)
	}
	return zipLink{path: path, target: target}, nil
}

func extractZipFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	return dst.Close()
}

func stripTopDir(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	i := strings.IndexByte(name, '/')
	if i < 0 {
		return ""
	}
	return strings.TrimSuffix(name[i+1:], "/")
}
