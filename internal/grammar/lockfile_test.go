package grammar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockFileRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(artifactBody))
	}))
	defer srv.Close()

	m := fastManager(t)
	_, err := m.Acquire(context.Background(), testDescriptor("kotlin", srv.URL+"/tree-sitter-kotlin.so"))
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), testDescriptor("scala", srv.URL+"/tree-sitter-scala.so"))
	require.NoError(t, err)

	lf, err := m.GenerateLockFile()
	require.NoError(t, err)
	assert.Equal(t, []string{"kotlin", "scala"}, lf.Names())
	assert.Equal(t, sum(artifactBody), lf.Grammars["kotlin"].Hash)

	path := filepath.Join(t.TempDir(), "grammars.lock")
	require.NoError(t, lf.Save(path))

	loaded, err := LoadLockFile(path)
	require.NoError(t, err)
	assert.Equal(t, lf.Grammars, loaded.Grammars)
}

func TestInstallFromLockRestoresCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(artifactBody))
	}))
	defer srv.Close()

	origin := fastManager(t)
	_, err := origin.Acquire(context.Background(), testDescriptor("lua", srv.URL+"/tree-sitter-lua.so"))
	require.NoError(t, err)
	lf, err := origin.GenerateLockFile()
	require.NoError(t, err)

	// A fresh cache restores exactly what the lock pins.
	fresh := NewManager(t.TempDir(), WithRetry(3, time.Millisecond))
	installed, err := fresh.InstallFromLock(context.Background(), lf)
	require.NoError(t, err)
	assert.Equal(t, []string{"lua"}, installed)
	assert.True(t, fresh.Verify("lua"))

	// Installing again is a no-op: everything already verifies.
	again, err := fresh.InstallFromLock(context.Background(), lf)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestInstallFromLockRejectsTamperedArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("different bytes than were locked"))
	}))
	defer srv.Close()

	lf := &LockFile{
		Version: "1",
		Grammars: map[string]LockEntry{
			"elixir": {Version: "1", Hash: sum(artifactBody), URL: srv.URL + "/tree-sitter-elixir.so"},
		},
	}

	m := fastManager(t)
	_, err := m.InstallFromLock(context.Background(), lf)
	require.Error(t, err, "hash mismatch against the locked hash must fail")
	assert.False(t, m.Verify("elixir"))
}
