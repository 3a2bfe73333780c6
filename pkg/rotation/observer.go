package rotation

// Recorder receives every finished run, typically to update metrics.
type Recorder interface {
	RecordRun(result *Result)
}

// Notifier is told about finished runs. Implementations decide which
// outcomes are worth a message and must not block.
type Notifier interface {
	NotifyRun(result *Result)
}

// HistoryStore persists finished runs.
type HistoryStore interface {
	SaveRun(result *Result) error
}
