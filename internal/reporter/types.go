package reporter

import "time"

// BatchStartInfo describes a batch of files about to be checked.
type BatchStartInfo struct {
	TotalFiles int
	Workers    int
	Backend    string
	FileList   []string
}

// FileStartInfo identifies a file whose check has begun.
type FileStartInfo struct {
	Index      int
	TotalFiles int
	Path       string
}

// VerdictSummary is the outcome of a completed check.
type VerdictSummary struct {
	Index     int
	ScanID    string
	Path      string
	Verdict   string
	Code      int
	Format    string
	Frames    int
	Probes    int
	Skipped   bool
	NoVideo   bool
	Truncated bool
	Duration  time.Duration

	// Set for unsafe verdicts.
	AnomalyFrame int
	AnomalyDelta int64
	Expected     string
	Observed     string
}

// FileFailure describes a check that ended without a verdict.
type FileFailure struct {
	Index    int
	ScanID   string
	Path     string
	Code     int
	Kind     string
	Message  string
	Duration time.Duration
}

// BatchSummary holds the totals of a finished batch.
type BatchSummary struct {
	TotalFiles    int
	SafeCount     int
	UnsafeCount   int
	ErrorCount    int
	SkippedCount  int
	TotalDuration time.Duration
	UnsafeFiles   []string
	FailedFiles   []string
}
