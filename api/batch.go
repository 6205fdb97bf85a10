package api

// BatchInput names one file for batch processing. Source, when non-nil,
// is used instead of reading the file from disk.
type BatchInput struct {
	FilePath string
	Language string
	Source   []byte
}

// ProgressEvent is emitted synchronously after each file completion.
// Subscribers must not block.
type ProgressEvent struct {
	Completed     int
	Total         int
	CurrentFile   string
	RatePerSecond float64
	MemoryUsageMB int64
}

// BatchOptions configures a batch or directory run.
type BatchOptions struct {
	// Concurrency bounds parallel per-file pipelines.
	// Zero means min(8, GOMAXPROCS).
	Concurrency int
	// ContinueOnError keeps processing past failing files, aggregating
	// their errors. When false the first failure cancels pending work.
	ContinueOnError bool
	// MaxMemoryMB is a soft ceiling; new permit acquisitions pause while
	// process memory exceeds it. Zero disables the ceiling.
	MaxMemoryMB int64
	// CacheSize bounds the in-memory result cache. Zero means 1024 entries.
	CacheSize int
	// DedupeByHash additionally keys cache hits on content hash alone, so
	// identical bytes at distinct paths share one parse. Off by default.
	DedupeByHash bool
	// CollectMetrics enables parse-time percentiles, per-language stats,
	// and rate/memory history on the BatchResult.
	CollectMetrics bool
	// StorePath, when set, persists every serialized bundle into a SQLite
	// store at this path for downstream indexing.
	StorePath string

	Pipeline PipelineConfig

	// Progress, when non-nil, receives an event after each completion.
	Progress func(ProgressEvent)
}

// DirectoryOptions extends BatchOptions for process-directory runs.
type DirectoryOptions struct {
	BatchOptions
	// Recursive descends into subdirectories. Hidden directories and
	// dependency/build trees are always skipped.
	Recursive bool
	// IncludeGlobs / ExcludeGlobs filter candidate paths (doublestar
	// patterns, matched against the path relative to the root).
	IncludeGlobs []string
	ExcludeGlobs []string
	// MaxFiles caps how many files are admitted; zero means no cap.
	MaxFiles int
}

// DefaultBatchOptions returns the documented defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		ContinueOnError: true,
		Pipeline:        FullConfig(),
	}
}

// ErrorGroup aggregates failures of one kind sharing a message shape.
type ErrorGroup struct {
	MessageTemplate string   `json:"messageTemplate"`
	Count           int      `json:"count"`
	SampleFiles     []string `json:"sampleFiles,omitempty"`
}

// BatchSummary carries the headline counters of a batch run.
type BatchSummary struct {
	TotalFiles int `json:"totalFiles"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// MemoryStats reports process memory observed during a batch run.
type MemoryStats struct {
	PeakUsageMB  int64 `json:"peakUsageMB"`
	FinalUsageMB int64 `json:"finalUsageMB"`
}

// LanguageStats accumulates per-language batch metrics.
type LanguageStats struct {
	Files   int   `json:"files"`
	Nodes   int   `json:"nodes"`
	TotalMs int64 `json:"totalMs"`
}

// PerformanceMetrics are optional batch-level metrics.
type PerformanceMetrics struct {
	ParseP50Ms      float64                  `json:"parseP50Ms"`
	ParseP95Ms      float64                  `json:"parseP95Ms"`
	ParseP99Ms      float64                  `json:"parseP99Ms"`
	PerLanguage     map[string]LanguageStats `json:"perLanguage,omitempty"`
	RateHistory     []float64                `json:"rateHistory,omitempty"`
	MemoryHistoryMB []int64                  `json:"memoryHistoryMB,omitempty"`
}

// CacheStats reports the batch result cache counters.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// BatchResult is the aggregated output of a batch run. Order preserves the
// input order of the paths present in Results.
type BatchResult struct {
	Results      map[string]*FileResult
	Order        []string
	Skipped      []string
	ErrorSummary map[string][]*ErrorGroup
	Summary      BatchSummary
	Memory       MemoryStats
	Metrics      *PerformanceMetrics
}
