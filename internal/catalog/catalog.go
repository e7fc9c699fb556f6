// Package catalog keeps a local offline-scan catalog file (wsusscn2.cab)
// fresh against a remote source, using Last-Modified metadata to avoid
// re-downloading an unchanged file.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/archmachina/winpatch/internal/logging"
)

var log = logging.L("catalog")

// Synchronizer replaces a local catalog file when the remote copy is newer,
// or when either timestamp cannot be determined.
type Synchronizer struct {
	URL    string
	Path   string
	client *http.Client
}

// New creates a Synchronizer for the given remote URL and local path.
func New(url, path string) *Synchronizer {
	return &Synchronizer{
		URL:    url,
		Path:   path,
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

// Sync ensures the local catalog is current. It reports whether a download
// took place. Download failures are returned to the caller; timestamp
// failures only bias the decision toward downloading.
func (s *Synchronizer) Sync(ctx context.Context) (bool, error) {
	local := s.localModTime()
	remote := s.remoteModTime(ctx)

	if !needsDownload(local, remote) {
		log.Info("catalog is current", "path", s.Path, "localModified", *local)
		return false, nil
	}

	log.Info("downloading catalog", "url", s.URL, "path", s.Path)
	if err := s.download(ctx); err != nil {
		return false, fmt.Errorf("catalog download: %w", err)
	}
	return true, nil
}

// needsDownload applies the freshness rule: download unless both timestamps
// are known and the remote is not strictly newer than the local.
func needsDownload(local, remote *time.Time) bool {
	if local == nil || remote == nil {
		return true
	}
	return remote.After(*local)
}

// localModTime returns the catalog file's last-write time, or nil when the
// file is missing or unreadable.
func (s *Synchronizer) localModTime() *time.Time {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil
	}
	t := info.ModTime()
	return &t
}

// remoteModTime issues a HEAD request and parses the Last-Modified header.
// Any failure yields nil.
func (s *Synchronizer) remoteModTime(ctx context.Context) *time.Time {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URL, nil)
	if err != nil {
		log.Warn("invalid catalog URL", "url", s.URL, "error", err)
		return nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn("catalog HEAD request failed", "url", s.URL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("catalog HEAD request rejected", "url", s.URL, "status", resp.StatusCode)
		return nil
	}

	t, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		log.Warn("unparseable Last-Modified header", "url", s.URL, "error", err)
		return nil
	}
	return &t
}

// download streams the catalog to a temporary sibling path and then renames
// it over the final path, so an interrupted transfer never leaves a partial
// file at the real destination.
func (s *Synchronizer) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tempPath := s.Path + ".download"
	os.Remove(tempPath)

	f, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	return os.Rename(tempPath, s.Path)
}
