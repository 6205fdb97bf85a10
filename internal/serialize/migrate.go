package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/astcore/coreerr"
)

// Migration upgrades a decoded generic document from one schema version
// to the next. Migrations are registered at build time and applied in
// order until the current version is reached.
type Migration struct {
	From  string
	To    string
	Apply func(doc any) error
}

var migrations = []Migration{
	{From: "1.0.0", To: "1.1.0", Apply: migrate100to110},
}

// RegisterMigration appends a migration step. Intended for init-time use
// by builds embedding additional history.
func RegisterMigration(m Migration) {
	migrations = append(migrations, m)
}

// nodesPath selects every node map in a bundle document.
var nodesPath, _ = jp.ParseString("nodes[*]")

// migrate100to110 renames the pre-1.1 per-node "kind" key to "type" and
// fills in the then-absent significance as LOW.
func migrate100to110(doc any) error {
	targets := nodesPath.Get(doc)
	if len(targets) == 0 {
		// A standalone node document has no nodes array.
		if m, ok := doc.(map[string]any); ok {
			targets = []any{m}
		}
	}
	for _, t := range targets {
		node, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if kind, ok := node["kind"]; ok {
			node["type"] = kind
			delete(node, "kind")
		}
		if _, ok := node["significance"]; !ok {
			node["significance"] = "LOW"
		}
		node["$schema"] = "1.1.0"
	}
	if m, ok := doc.(map[string]any); ok {
		m["$schema"] = "1.1.0"
	}
	return nil
}

// migrateIfNeeded sniffs the document version and runs the registered
// chain. It returns the (possibly re-encoded) bytes at CurrentVersion.
func migrateIfNeeded(data []byte, filePath string) ([]byte, error) {
	doc, err := parseGeneric(data)
	if err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("bundle is not a JSON object")
	}
	version, _ := m["$schema"].(string)
	if version == "" {
		version = "1.0.0" // earliest bundles predate the version marker
	}
	if filePath == "" {
		filePath, _ = m["filePath"].(string)
	}

	if version == CurrentVersion {
		return data, nil
	}
	if compareVersions(version, CurrentVersion) > 0 {
		return nil, &coreerr.SchemaMigrationError{
			FilePath:       filePath,
			FoundVersion:   version,
			CurrentVersion: CurrentVersion,
		}
	}

	for version != CurrentVersion {
		step, ok := findMigration(version)
		if !ok {
			return nil, &coreerr.SchemaMigrationError{
				FilePath:       filePath,
				FoundVersion:   version,
				CurrentVersion: CurrentVersion,
			}
		}
		if err := step.Apply(doc); err != nil {
			return nil, fmt.Errorf("migrate %s to %s: %w", step.From, step.To, err)
		}
		version = step.To
	}

	return []byte(oj.JSON(doc)), nil
}

func findMigration(from string) (Migration, bool) {
	for _, m := range migrations {
		if m.From == from {
			return m, true
		}
	}
	return Migration{}, false
}

// compareVersions orders two semantic version strings.
func compareVersions(a, b string) int {
	pa, pb := splitVersion(a), splitVersion(b)
	for i := 0; i < 3; i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func splitVersion(v string) [3]int {
	var out [3]int
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return out
		}
		out[i] = n
	}
	return out
}
