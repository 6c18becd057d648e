package model

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job is a single drawing conversion request. Created as queued on upload,
// claimed by a worker (processing) and finished as done or failed.
type Job struct {
	ID         string
	Status     JobStatus
	Filename   string
	InputPath  string
	OutputPath string
	Retries    int
	MaxRetries int
	LastError  string

	// Result summary, populated when the pipeline succeeds.
	ItemsParsed int
	UniqueItems int
	Exceptions  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobResult is what the pipeline reports back for a finished job.
type JobResult struct {
	OutputPath  string `json:"output"`
	ItemsParsed int    `json:"items_parsed"`
	UniqueItems int    `json:"unique_items"`
	Exceptions  int    `json:"exceptions"`
}
