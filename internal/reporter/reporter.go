package reporter

// Reporter receives batch check events.
type Reporter interface {
	BatchStarted(info BatchStartInfo)
	FileStarted(info FileStartInfo)
	FileVerdict(summary VerdictSummary)
	FileError(failure FileFailure)
	Warning(message string)
	BatchComplete(summary BatchSummary)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) BatchStarted(BatchStartInfo) {}
func (NullReporter) FileStarted(FileStartInfo)   {}
func (NullReporter) FileVerdict(VerdictSummary)  {}
func (NullReporter) FileError(FileFailure)       {}
func (NullReporter) Warning(string)              {}
func (NullReporter) BatchComplete(BatchSummary)  {}
func (NullReporter) Verbose(string)              {}
