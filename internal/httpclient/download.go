package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
)

// Link downloads present a browser User-Agent; several file hosts refuse
// generic client strings.
const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// downloadChunkSize is the copy buffer size for streaming to disk.
const downloadChunkSize = 1 << 20

// downloadRetries is how many times a failed fetch restarts from scratch.
const downloadRetries = 2

// Progress receives cumulative transferred bytes and the expected total
// (0 when the server did not announce one).
type Progress func(current, total int64)

// TooLargeError reports a payload over the configured size limit.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file too large: %.2f MB > %d MB", float64(e.Size)/(1<<20), e.Limit/(1<<20))
}

// DownloadRequest describes one fetch-to-disk operation.
type DownloadRequest struct {
	URL string

	// Dir is the absolute directory the file lands in.
	Dir string

	// FallbackName is used when neither Content-Disposition nor the URL
	// path yields a filename.
	FallbackName string

	// MaxBytes rejects payloads over this size; 0 disables the check.
	MaxBytes int64

	// SanitizeName, when set, maps the server-provided filename to a safe
	// local one.
	SanitizeName func(string) string

	// Progress, when set, is called after every chunk.
	Progress Progress
}

// DownloadResult describes a completed download.
type DownloadResult struct {
	Path string
	Name string
	Size int64
}

// Downloader streams remote files into a local directory.
type Downloader struct {
	client *Client
	logger *slog.Logger
}

// NewDownloader creates a downloader on top of the resilient client.
func NewDownloader(client *Client, logger *slog.Logger) *Downloader {
	return &Downloader{
		client: client,
		logger: logger.With("component", "downloader"),
	}
}

// Download fetches req.URL into req.Dir. A failure mid-body restarts the
// whole fetch with backoff; no partial file remains after an error.
func (d *Downloader) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	var result *DownloadResult
	attempt := func() error {
		res, err := d.fetchOnce(ctx, req)
		if err != nil {
			var tooLarge *TooLargeError
			if errors.As(err, &tooLarge) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			d.logger.Warn("download attempt failed", "error", err)
			return err
		}
		result = res
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), downloadRetries), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set(HeaderUserAgent, browserUserAgent)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, obfuscateURL(httpReq.URL))
	}
	if req.MaxBytes > 0 && resp.ContentLength > req.MaxBytes {
		return nil, &TooLargeError{Size: resp.ContentLength, Limit: req.MaxBytes}
	}

	name := responseFilename(resp)
	if name == "" {
		name = req.FallbackName
	}
	if req.SanitizeName != nil {
		name = req.SanitizeName(name)
	}

	destPath := filepath.Join(req.Dir, name)
	written, err := streamToFile(resp.Body, destPath, resp.ContentLength, req.MaxBytes, req.Progress)
	if err != nil {
		return nil, err
	}

	d.logger.Info("download complete",
		"name", name,
		"bytes", written,
	)
	return &DownloadResult{Path: destPath, Name: name, Size: written}, nil
}

// responseFilename extracts a filename from Content-Disposition, falling
// back to the final request URL's path tail.
func responseFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return filepath.Base(name)
			}
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		base := path.Base(resp.Request.URL.Path)
		if base != "/" && base != "." && base != "" {
			if unescaped, err := url.PathUnescape(base); err == nil {
				base = unescaped
			}
			return base
		}
	}
	return ""
}

// streamToFile copies body to destPath through a temp file in the same
// directory, renaming only after a clean finish. The size limit applies to
// bytes written, which also guards against missing or lying Content-Length
// headers.
func streamToFile(body io.Reader, destPath string, total, maxBytes int64, progress Progress) (int64, error) {
	if total < 0 {
		total = 0
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	discard := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	var written int64
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				discard()
				return 0, fmt.Errorf("writing chunk: %w", err)
			}
			written += int64(n)
			if maxBytes > 0 && written > maxBytes {
				discard()
				return 0, &TooLargeError{Size: written, Limit: maxBytes}
			}
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			discard()
			return 0, fmt.Errorf("reading response: %w", readErr)
		}
	}

	if err := tmp.Sync(); err != nil {
		discard()
		return 0, fmt.Errorf("syncing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("moving into place: %w", err)
	}
	return written, nil
}
