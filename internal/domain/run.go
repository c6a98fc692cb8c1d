package domain

import "time"

// RunStatus is the lifecycle state of a generation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run will not advance further.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// LogEntry is one line of the append-only run log. Observability only,
// never used for control flow.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// RunSnapshot is a point-in-time copy of a run's observable state,
// safe to serialize while the run keeps mutating its own copy.
type RunSnapshot struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Brief     SiteBrief    `json:"brief"`
	Status    RunStatus    `json:"status"`
	Error     string       `json:"error,omitempty"`
	Stream    LiveStream   `json:"stream"`
	Log       []LogEntry   `json:"log"`
	Pages     []*BuiltPage `json:"pages"`
	Result    *BuildResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// RunRecord is the persisted summary of a finished run. In-flight
// generation state is memory-only; only this archive row survives the
// process.
type RunRecord struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Topic       string     `json:"topic"`
	Model       string     `json:"model"`
	Status      RunStatus  `json:"status"`
	PageCount   int        `json:"page_count"`
	ValidPages  int        `json:"valid_pages"`
	Log         string     `json:"log"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExportFile is one entry handed to the export packager: a relative
// path and its text contents.
type ExportFile struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}
