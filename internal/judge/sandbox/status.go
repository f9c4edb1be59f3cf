package sandbox

import "context"

// Status is the lifecycle state of one submission.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// StatusUpdate carries intermediate progress data.
type StatusUpdate struct {
	SubmissionID string
	Status       Status
	TotalTests   int
	DoneTests    int
}

// StatusReporter receives progress updates. It is called from evaluation
// goroutines and must be safe for concurrent use.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate)
}
