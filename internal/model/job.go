package model

import "time"

// Status is the server-side job status reported by GET /status/{id}.
type Status string

const (
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusLLMCompleted Status = "llm_completed"
	StatusError        Status = "error"
)

// CLIOptions holds user-configurable runtime options as parsed from flags.
type CLIOptions struct {
	BaseURL string
	OutDir  string
	Verbose bool

	StepDelay time.Duration // delay before each post-processing step
	S3Bucket  string        // optional; when set reports are also stored in S3

	NoUI bool // Disable TUI when true
	Jobs int  // Max concurrent archives
}

// UploadJob describes the archive selected for analysis. It is immutable.
type UploadJob struct {
	SourcePath  string
	DisplayName string
	SizeBytes   int64
}

// StatusReport is one observation of the remote job status.
type StatusReport struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Progress *int   `json:"progress,omitempty"` // 0..100 when present
}

// ProgressOr returns the reported progress or def when the server omitted it.
func (r StatusReport) ProgressOr(def int) int {
	if r.Progress == nil {
		return def
	}
	return *r.Progress
}

// Report is the artifact metadata produced by a finished analysis run.
type Report struct {
	JobID       string
	DisplayName string
	Location    string // where the sink stored it (path or s3:// URL)
	Bytes       int64
}
