package serialize

import (
	"os"
	"path/filepath"

	"github.com/agentic-research/astcore/coreerr"
)

// WriteFileAtomic writes data via a .tmp sibling, fsyncs, and renames it
// over path. The temporary file is removed on every failure path, and
// parent directories are created as needed.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &coreerr.IOError{FilePath: path, Op: "mkdir", Cause: err}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &coreerr.IOError{FilePath: tmp, Op: "write", Cause: err}
	}

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return &coreerr.IOError{FilePath: tmp, Op: "write", Cause: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &coreerr.IOError{FilePath: path, Op: "rename", Cause: err}
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
