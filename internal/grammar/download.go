package grammar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic-research/astcore/coreerr"
)

// download fetches url into dest with retries and exponential backoff,
// returning the sha256 of the written bytes. Any non-2xx status, transport
// error, or truncated read counts as a failed attempt. The write itself is
// atomic: a .tmp file is renamed over dest only after a complete read.
func (m *Manager) download(ctx context.Context, url, dest string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &coreerr.IOError{FilePath: dest, Op: "mkdir", Cause: err}
	}

	var lastErr error
	delay := m.baseDelay
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if attempt > 1 {
			m.logf("download retry %d/%d for %s in %v", attempt, m.attempts, url, delay)
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = m.attempts // no further attempts after cancellation
			case <-time.After(delay):
			}
			delay *= 2
		}
		if lastErr == context.Canceled || lastErr == context.DeadlineExceeded {
			break
		}

		sum, err := m.fetchOnce(ctx, url, dest)
		if err == nil {
			return sum, nil
		}
		lastErr = err
	}

	return "", &coreerr.DownloadError{
		URL:      url,
		Attempts: m.attempts,
		At:       time.Now().UTC(),
		Cause:    lastErr,
	}
}

// fetchOnce performs a single download attempt.
func (m *Manager) fetchOnce(ctx context.Context, url, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength > 0 && n < resp.ContentLength {
		err = fmt.Errorf("truncated read: %d of %d bytes", n, resp.ContentLength)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", err
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
