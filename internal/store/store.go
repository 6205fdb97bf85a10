// Package store persists serialized file bundles into SQLite for
// downstream indexing and query layers. Alongside the documents it keeps
// roaring-bitmap indexes from node type and significance to bundle
// ordinals, so consumers can narrow to "files containing functions" or
// "files with CRITICAL nodes" without decoding every bundle. Modifiers
// such as exported are not indexed.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/internal/serialize"
)

const schema = `
CREATE TABLE IF NOT EXISTS bundles (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	language TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	node_count INTEGER NOT NULL,
	stored_at INTEGER NOT NULL,
	document BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bundles_language ON bundles(language);

CREATE TABLE IF NOT EXISTS bundle_ids (
	id INTEGER PRIMARY KEY,
	path TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS node_index (
	key TEXT PRIMARY KEY,
	bitmap BLOB NOT NULL
);
`

// Store is a SQLite-backed bundle sink. Index mutations accumulate in
// memory and are written in a single transaction on Close, avoiding a
// read-modify-write cycle per file.
type Store struct {
	db  *sql.DB
	ser *serialize.Serializer

	mu        sync.Mutex
	ordinals  map[string]uint32 // path -> bundle ordinal
	nextID    uint32
	pending   map[string]*roaring.Bitmap // index key -> ordinals
	flushOnce sync.Once
}

// Open creates or opens a bundle store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create store schema: %w", err)
	}

	s := &Store{
		db:       db,
		ser:      serialize.New(api.SerializerConfig{}),
		ordinals: make(map[string]uint32),
		pending:  make(map[string]*roaring.Bitmap),
	}
	if err := s.loadOrdinals(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadOrdinals() error {
	rows, err := s.db.Query("SELECT id, path FROM bundle_ids")
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id uint32
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return err
		}
		s.ordinals[path] = id
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
	return rows.Err()
}

func typeKey(t api.NodeType) string          { return "type:" + string(t) }
func significanceKey(v api.Significance) string { return "sig:" + string(v) }

// Put serializes and upserts one successful result.
func (s *Store) Put(r *api.FileResult) error {
	doc, err := s.ser.SerializeFile(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO bundles (path, hash, language, schema_version, node_count, stored_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.FilePath, r.FileHash, r.Language, serialize.CurrentVersion,
		len(r.Nodes), time.Now().UTC().Unix(), doc)
	if err != nil {
		return fmt.Errorf("store bundle %s: %w", r.FilePath, err)
	}

	ord, ok := s.ordinals[r.FilePath]
	if !ok {
		ord = s.nextID
		s.nextID++
		s.ordinals[r.FilePath] = ord
		if _, err := s.db.Exec("INSERT OR IGNORE INTO bundle_ids (id, path) VALUES (?, ?)", ord, r.FilePath); err != nil {
			return fmt.Errorf("store ordinal %s: %w", r.FilePath, err)
		}
	}

	for _, n := range r.Nodes {
		s.mark(typeKey(n.Type), ord)
		s.mark(significanceKey(n.Significance), ord)
	}
	return nil
}

func (s *Store) mark(key string, ord uint32) {
	bm, ok := s.pending[key]
	if !ok {
		bm = roaring.New()
		s.pending[key] = bm
	}
	bm.Add(ord)
}

// Get decodes the stored bundle for a path.
func (s *Store) Get(path string) (*api.FileResult, error) {
	var doc []byte
	err := s.db.QueryRow("SELECT document FROM bundles WHERE path = ?", path).Scan(&doc)
	if err != nil {
		return nil, err
	}
	return s.ser.DeserializeFile(doc)
}

// PathsWithNodeType returns bundle paths whose node set contains the
// given normalized type.
func (s *Store) PathsWithNodeType(t api.NodeType) ([]string, error) {
	return s.pathsFor(typeKey(t))
}

// PathsWithSignificance returns bundle paths containing at least one node
// at the given level.
func (s *Store) PathsWithSignificance(v api.Significance) ([]string, error) {
	return s.pathsFor(significanceKey(v))
}

func (s *Store) pathsFor(key string) ([]string, error) {
	bm := roaring.New()

	var blob []byte
	err := s.db.QueryRow("SELECT bitmap FROM node_index WHERE key = ?", key).Scan(&blob)
	if err == nil {
		if err := bm.UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("unmarshal bitmap %s: %w", key, err)
		}
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	// Merge unflushed ordinals so reads during ingestion see fresh data.
	s.mu.Lock()
	if pending, ok := s.pending[key]; ok {
		bm.Or(pending)
	}
	byOrdinal := make(map[uint32]string, len(s.ordinals))
	for path, ord := range s.ordinals {
		byOrdinal[ord] = path
	}
	s.mu.Unlock()

	var paths []string
	it := bm.Iterator()
	for it.HasNext() {
		if path, ok := byOrdinal[it.Next()]; ok {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// flush writes all accumulated index bitmaps in one transaction, merging
// with any bitmaps already on disk.
func (s *Store) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for key, bm := range s.pending {
		merged := bm
		var blob []byte
		if err := tx.QueryRow("SELECT bitmap FROM node_index WHERE key = ?", key).Scan(&blob); err == nil {
			onDisk := roaring.New()
			if err := onDisk.UnmarshalBinary(blob); err == nil {
				onDisk.Or(bm)
				merged = onDisk
			}
		}
		data, err := merged.MarshalBinary()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal bitmap %s: %w", key, err)
		}
		if _, err := tx.Exec("INSERT OR REPLACE INTO node_index (key, bitmap) VALUES (?, ?)", key, data); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write bitmap %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.pending = make(map[string]*roaring.Bitmap)
	return nil
}

// Close flushes indexes and closes the database. Safe to call once;
// the flush is guarded against double invocation.
func (s *Store) Close() error {
	var flushErr error
	s.flushOnce.Do(func() { flushErr = s.flush() })
	closeErr := s.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
