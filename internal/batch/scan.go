package batch

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentic-research/astcore/api"
)

// skipDirNames are dependency and build trees never worth descending into.
var skipDirNames = map[string]bool{
	"node_modules": true, "target": true, "dist": true, "build": true,
	"vendor": true, "__pycache__": true,
}

// ScanDirectory collects candidate inputs under root, applying recursion,
// glob, extension, and binary filters. Hidden directories are always
// skipped.
func (b *Processor) ScanDirectory(root string, opts api.DirectoryOptions) ([]api.BatchInput, error) {
	var inputs []api.BatchInput
	reg := b.pipeline.Registry()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			base := filepath.Base(path)
			if !opts.Recursive || (len(base) > 0 && base[0] == '.') || skipDirNames[base] {
				return filepath.SkipDir
			}
			return nil
		}

		if opts.MaxFiles > 0 && len(inputs) >= opts.MaxFiles {
			return filepath.SkipAll
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if !matchGlobs(opts.IncludeGlobs, rel, true) || matchGlobs(opts.ExcludeGlobs, rel, false) {
			return nil
		}

		lang, supported := reg.DetectByExtension(path)
		if !supported {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}

		inputs = append(inputs, api.BatchInput{FilePath: path, Language: lang})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inputs, nil
}

// matchGlobs evaluates a doublestar pattern set. An empty include set
// matches everything; an empty exclude set matches nothing.
func matchGlobs(patterns []string, rel string, emptyMeans bool) bool {
	if len(patterns) == 0 {
		return emptyMeans
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// isBinaryFile uses the git heuristic: a null byte in the first 512 bytes
// marks the file binary.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	return bytes.ContainsRune(buf[:n], 0)
}
