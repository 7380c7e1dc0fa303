package batch

import (
	"time"

	"github.com/google/uuid"

	"helioscope/internal/common"
)

// Status is the lifecycle position of a batch run
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is the lifecycle record of one batch, emitted to the UI on every change
type Run struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Status      Status `json:"status"`
	Zoom        int    `json:"zoom"`
	Radius      int    `json:"radius"`
	Provider    string `json:"provider"`
	CreatedAt   string `json:"createdAt"`
	StartedAt   string `json:"startedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
	Rows        int    `json:"rows"`
	Saved       bool   `json:"saved"`
	Error       string `json:"error,omitempty"`
}

func NewRun(name, path string, params common.QueryParameters) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      path,
		Status:    StatusPending,
		Zoom:      params.Zoom,
		Radius:    params.Radius,
		Provider:  string(params.Provider),
		CreatedAt: time.Now().Format(time.RFC3339),
	}
}

func (r *Run) MarkStarted() {
	r.StartedAt = time.Now().Format(time.RFC3339)
	r.Status = StatusRunning
}

func (r *Run) MarkCompleted(rows int, saved bool) {
	r.CompletedAt = time.Now().Format(time.RFC3339)
	r.Status = StatusCompleted
	r.Rows = rows
	r.Saved = saved
}

func (r *Run) MarkFailed(err error) {
	r.CompletedAt = time.Now().Format(time.RFC3339)
	r.Status = StatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}
