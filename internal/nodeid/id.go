// Package nodeid produces stable, content-addressed node identifiers.
// IDs hash structural coordinates, not source text: edits inside a region
// keep its id, structural re-shaping changes it.
package nodeid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
)

// sep keeps hash inputs unambiguous across field boundaries.
const sep = "\x1f"

// idLength truncates the hex digest to 128 bits, plenty for intra-file
// uniqueness.
const idLength = 32

// Generate computes the content address for one node's coordinates.
func Generate(filePath string, t api.NodeType, start, end api.Position, name, language string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s%s%s%s%d:%d%s%d:%d%s%s%s%s",
		filePath, sep, t, sep,
		start.Line, start.Column, sep,
		end.Line, end.Column, sep,
		name, sep, language)
	return hex.EncodeToString(h.Sum(nil))[:idLength]
}

// Allocator assigns ids within one file, detecting truncated-hash
// collisions. A collision appends a monotonic suffix and is logged to the
// ledger as an invariant warning — the file still succeeds.
type Allocator struct {
	filePath string
	language string
	ledger   *coreerr.Ledger
	seen     map[string]int
}

// NewAllocator creates an allocator for one file. A nil ledger records to
// the process default.
func NewAllocator(filePath, language string, ledger *coreerr.Ledger) *Allocator {
	if ledger == nil {
		ledger = coreerr.Default()
	}
	return &Allocator{
		filePath: filePath,
		language: language,
		ledger:   ledger,
		seen:     make(map[string]int),
	}
}

// Assign computes and returns the node's id, mutating n.ID.
func (a *Allocator) Assign(n *api.ASTNode) string {
	id := Generate(a.filePath, n.Type, n.Start, n.End, n.Name, a.language)
	if count := a.seen[id]; count > 0 {
		disambiguated := fmt.Sprintf("%s-%d", id, count)
		a.ledger.Record(&coreerr.InvariantWarning{
			FilePath: a.filePath,
			Detail:   fmt.Sprintf("id collision on %s, assigned %s", id, disambiguated),
		})
		a.seen[id] = count + 1
		id = disambiguated
	} else {
		a.seen[id] = 1
	}
	n.ID = id
	return id
}
