// Package download implements the Media Downloader (spec.md §4.3): stream a
// remote media URL to a deterministic local path.
//
// Grounded on marselester-igshelf's internal/downloader/downloader.go, which
// streams Instagram media files to disk by content-addressed path; this
// package keeps that streaming shape but narrows it to a single-file
// operation, since retry/concurrency policy lives one level up in the Sync
// Engine per spec.md §4.3.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"archivesyncd/internal/state"
)

// LocalFile describes a media file that has been streamed to disk.
type LocalFile struct {
	MediaKey  string
	MediaURL  string
	MediaType state.MediaType
	Path      string
	SizeBytes int64
}

// Params parameterizes a single Download call.
type Params struct {
	MediaKey  string
	MediaURL  string
	MediaType state.MediaType
	Dir       string
}

// Downloader streams remote media to local files.
type Downloader struct {
	httpClient *http.Client
}

// New constructs a Downloader. A nil client defaults to http.DefaultClient.
func New(httpClient *http.Client) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Downloader{httpClient: httpClient}
}

// Download computes the deterministic path <dir>/<media_key><ext> (ext is
// ".jpg" for photos, ".mp4" otherwise), ensures dir exists, and streams the
// HTTP response body to that path (spec.md §4.3). No retries here.
func (d *Downloader) Download(ctx context.Context, p Params) (LocalFile, error) {
	ext := ".mp4"
	if p.MediaType == state.MediaPhoto {
		ext = ".jpg"
	}
	path := filepath.Join(p.Dir, p.MediaKey+ext)

	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return LocalFile{}, fmt.Errorf("ensure download dir %s: %w", p.Dir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.MediaURL, nil)
	if err != nil {
		return LocalFile{}, fmt.Errorf("build download request for %s: %w", p.MediaURL, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return LocalFile{}, fmt.Errorf("download %s: %w", p.MediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return LocalFile{}, fmt.Errorf("download %s: unexpected status %d", p.MediaURL, resp.StatusCode)
	}
	if resp.Body == nil {
		return LocalFile{}, fmt.Errorf("download %s: empty response body", p.MediaURL)
	}

	f, err := os.Create(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("create file %s: %w", path, err)
	}
	defer f.Close()

	size, err := io.Copy(f, resp.Body)
	if err != nil {
		return LocalFile{}, fmt.Errorf("stream %s to %s: %w", p.MediaURL, path, err)
	}

	return LocalFile{
		MediaKey:  p.MediaKey,
		MediaURL:  p.MediaURL,
		MediaType: p.MediaType,
		Path:      path,
		SizeBytes: size,
	}, nil
}
