package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/agentic-research/astcore/api"
)

// LockFile pins the grammar artifacts a project depends on, so a fresh
// checkout can restore the exact cache state: same URLs, same hashes.
type LockFile struct {
	Version  string               `json:"version"`
	Grammars map[string]LockEntry `json:"grammars"`
}

// LockEntry pins one grammar.
type LockEntry struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
	URL     string `json:"url"`
}

// GenerateLockFile snapshots every grammar currently recorded in the
// manager's cache.
func (m *Manager) GenerateLockFile() (*LockFile, error) {
	lf := &LockFile{Version: "1", Grammars: make(map[string]LockEntry)}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return lf, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := m.loadRecord(e.Name())
		if err != nil {
			continue // a directory without metadata is not a cached grammar
		}
		lf.Grammars[rec.Language] = LockEntry{
			Version: rec.Version,
			Hash:    rec.Hash,
			URL:     rec.URL,
		}
	}
	return lf, nil
}

// Names returns the locked grammar names, sorted.
func (lf *LockFile) Names() []string {
	names := make([]string, 0, len(lf.Grammars))
	for name := range lf.Grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the lock file as JSON.
func (lf *LockFile) Save(path string) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadLockFile reads a lock file from disk.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf LockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("lock file %s: %w", path, err)
	}
	if lf.Grammars == nil {
		lf.Grammars = make(map[string]LockEntry)
	}
	return &lf, nil
}

// InstallFromLock acquires every locked grammar that is not already
// verified locally, enforcing the locked hash. Returns the names that
// were actually downloaded.
func (m *Manager) InstallFromLock(ctx context.Context, lf *LockFile) ([]string, error) {
	var installed []string
	for _, name := range lf.Names() {
		if m.Verify(name) {
			continue
		}
		entry := lf.Grammars[name]
		d := api.GrammarDescriptor{
			Name:         name,
			SourceURL:    entry.URL,
			ExpectedHash: entry.Hash,
			ArtifactExt:  artifactExtFromURL(entry.URL),
			CSymbol:      "tree_sitter_" + name,
		}
		if _, err := m.Acquire(ctx, d); err != nil {
			return installed, fmt.Errorf("installing %s: %w", name, err)
		}
		installed = append(installed, name)
	}
	return installed, nil
}

func artifactExtFromURL(url string) string {
	for _, ext := range []string{".so", ".dylib", ".dll"} {
		if len(url) >= len(ext) && url[len(url)-len(ext):] == ext {
			return ext
		}
	}
	return ".so"
}
