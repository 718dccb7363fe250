package db

import (
	"database/sql"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one illustrate invocation.
type Run struct {
	ID            string
	SourcePath    string
	OutputPath    string
	Style         string
	Reuse         bool
	FailurePolicy string
	Status        string
	Chapters      int64
	Illustrated   int64
	Failed        int64
	Error         string
	StartedAt     time.Time
	FinishedAt    sql.NullTime
}

// Chapter is the outcome for one included chapter of a run.
type Chapter struct {
	ID          int64
	RunID       string
	ItemID      string
	Href        string
	Sequence    sql.NullInt64
	Status      string
	Prompt      string
	ImagePath   string
	AnchorFound bool
	Error       string
	CreatedAt   time.Time
}
