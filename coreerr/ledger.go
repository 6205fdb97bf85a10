package coreerr

import (
	"sync"
	"time"
)

// sampleLimit bounds how many recent samples each kind retains.
const sampleLimit = 16

// Sample is one retained error occurrence.
type Sample struct {
	Message  string
	FilePath string
	At       time.Time
}

// KindStats summarizes a ledger's view of one error kind.
type KindStats struct {
	Count   int64
	Samples []Sample
}

// Ledger records error counts per kind and retains the last few samples of
// each. The default ledger is the only process-wide mutable state in the
// core; tests wanting isolation construct their own via NewLedger.
type Ledger struct {
	mu      sync.Mutex
	counts  map[Kind]int64
	samples map[Kind][]Sample
	now     func() time.Time
}

// NewLedger returns an empty, independent ledger.
func NewLedger() *Ledger {
	return &Ledger{
		counts:  make(map[Kind]int64),
		samples: make(map[Kind][]Sample),
		now:     time.Now,
	}
}

var defaultLedger = NewLedger()

// Default returns the process-wide ledger.
func Default() *Ledger { return defaultLedger }

// Record adds one occurrence of err to the ledger.
func (l *Ledger) Record(err error) {
	if err == nil {
		return
	}
	kind := KindOf(err)
	path := ""
	if ce, ok := err.(CoreError); ok {
		path = ce.Path()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[kind]++
	s := append(l.samples[kind], Sample{Message: err.Error(), FilePath: path, At: l.now()})
	if len(s) > sampleLimit {
		s = s[len(s)-sampleLimit:]
	}
	l.samples[kind] = s
}

// Count returns the recorded occurrences of the given kind.
func (l *Ledger) Count(kind Kind) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[kind]
}

// Snapshot returns a copy of the ledger state, suitable for rendering
// "N syntax errors across M files" summaries without re-scanning results.
func (l *Ledger) Snapshot() map[Kind]KindStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[Kind]KindStats, len(l.counts))
	for k, c := range l.counts {
		samples := make([]Sample, len(l.samples[k]))
		copy(samples, l.samples[k])
		out[k] = KindStats{Count: c, Samples: samples}
	}
	return out
}

// ClearHistory resets all counters and samples.
func (l *Ledger) ClearHistory() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = make(map[Kind]int64)
	l.samples = make(map[Kind][]Sample)
}
