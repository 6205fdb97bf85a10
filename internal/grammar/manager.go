// Package grammar makes verified grammar artifacts available on disk:
// download, sha256 integrity checking, per-language metadata records, and
// lock-serialized acquisition.
package grammar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
)

// DefaultBaseDir is the grammar cache root when none is configured.
const DefaultBaseDir = ".astdb/grammars"

const metadataFile = "metadata.json"

// Manager downloads, verifies, and caches grammar artifacts.
type Manager struct {
	baseDir   string
	client    *http.Client
	attempts  int
	baseDelay time.Duration
	logger    *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-language acquisition serialization
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient replaces the transport used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithRetry sets the download attempt count and initial backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.attempts = attempts
		}
		if baseDelay > 0 {
			m.baseDelay = baseDelay
		}
	}
}

// WithLogger enables acquisition logging. Nil (the default) is silent.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager rooted at baseDir ("" means DefaultBaseDir).
func NewManager(baseDir string, opts ...Option) *Manager {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	m := &Manager{
		baseDir:   baseDir,
		client:    &http.Client{Timeout: 2 * time.Minute},
		attempts:  3,
		baseDelay: time.Second,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

// languageLock returns the serialization mutex for one language,
// creating it on first use. Distinct languages acquire in parallel.
func (m *Manager) languageLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// ArtifactPath returns where a language's grammar artifact lives on disk.
func (m *Manager) ArtifactPath(d api.GrammarDescriptor) string {
	return filepath.Join(m.baseDir, d.Name, "tree-sitter-"+d.Name+d.ArtifactExt)
}

func (m *Manager) recordPath(name string) string {
	return filepath.Join(m.baseDir, name, metadataFile)
}

// Acquire returns the path of a verified grammar artifact for the
// descriptor, downloading it when the cache has no valid copy. Two
// concurrent acquisitions of one language never produce two downloads.
func (m *Manager) Acquire(ctx context.Context, d api.GrammarDescriptor) (string, error) {
	if d.SourceURL == "" {
		return "", &coreerr.ConfigError{Reason: "language " + d.Name + " has no grammar source URL"}
	}

	m.languageLock(d.Name).Lock()
	defer m.languageLock(d.Name).Unlock()

	// A cross-process file lock guards the same critical section on disk.
	flock, err := acquireFileLock(filepath.Join(m.baseDir, d.Name))
	if err != nil {
		return "", &coreerr.IOError{FilePath: m.baseDir, Op: "lock", Cause: err}
	}
	defer flock.release()

	artifact := m.ArtifactPath(d)
	if rec, err := m.loadRecord(d.Name); err == nil {
		if ok, _ := m.verifyArtifact(artifact, rec.Hash); ok {
			return artifact, nil
		}
		m.logf("grammar %q cache invalid, re-downloading", d.Name)
	}

	sum, err := m.download(ctx, d.SourceURL, artifact)
	if err != nil {
		return "", err
	}

	if d.ExpectedHash != "" && sum != d.ExpectedHash {
		// A corrupt artifact must not survive on disk.
		_ = os.Remove(artifact)
		return "", &coreerr.IntegrityError{
			Language:     d.Name,
			ArtifactPath: artifact,
			Expected:     d.ExpectedHash,
			Actual:       sum,
		}
	}

	expected := d.ExpectedHash
	if expected == "" {
		// Trust-on-first-use: adopt the computed hash for future checks.
		expected = sum
	}

	now := time.Now().UTC()
	rec := api.GrammarRecord{
		Language:     d.Name,
		Version:      "1",
		Hash:         expected,
		ActualHash:   sum,
		URL:          d.SourceURL,
		DownloadedAt: now,
		LastVerified: now,
		ArtifactPath: artifact,
	}
	if err := m.saveRecord(rec); err != nil {
		return "", err
	}
	m.logf("grammar %q downloaded (%s)", d.Name, sum[:12])
	return artifact, nil
}

// Verify recomputes the artifact's sha256 against the recorded hash.
// Missing artifacts and mismatches return false, not an error.
func (m *Manager) Verify(name string) bool {
	rec, err := m.loadRecord(name)
	if err != nil {
		return false
	}
	ok, sum := m.verifyArtifact(rec.ArtifactPath, rec.Hash)
	if !ok {
		return false
	}
	rec.ActualHash = sum
	rec.LastVerified = time.Now().UTC()
	_ = m.saveRecord(*rec)
	return true
}

// verifyArtifact hashes the file and compares against expected.
func (m *Manager) verifyArtifact(path, expected string) (bool, string) {
	f, err := os.Open(path)
	if err != nil {
		return false, ""
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, ""
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return sum == expected, sum
}

// Clean deletes the whole grammar cache tree.
func (m *Manager) Clean() error {
	if err := os.RemoveAll(m.baseDir); err != nil {
		return &coreerr.IOError{FilePath: m.baseDir, Op: "remove", Cause: err}
	}
	return nil
}

// Record returns the persisted metadata for a language.
func (m *Manager) Record(name string) (*api.GrammarRecord, error) {
	return m.loadRecord(name)
}

func (m *Manager) loadRecord(name string) (*api.GrammarRecord, error) {
	data, err := os.ReadFile(m.recordPath(name))
	if err != nil {
		return nil, err
	}
	var rec api.GrammarRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("grammar record %s: %w", name, err)
	}
	return &rec, nil
}

// saveRecord writes metadata.json atomically (tmp + rename).
func (m *Manager) saveRecord(rec api.GrammarRecord) error {
	path := m.recordPath(rec.Language)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &coreerr.IOError{FilePath: path, Op: "mkdir", Cause: err}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode grammar record: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return &coreerr.IOError{FilePath: tmp, Op: "write", Cause: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &coreerr.IOError{FilePath: path, Op: "rename", Cause: err}
	}
	return nil
}
