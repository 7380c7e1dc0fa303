package batch

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a batch is already running
var ErrBusy = errors.New("batch already in progress")

// ErrNoFile is the cause of a KindNoFileSelected error
var ErrNoFile = errors.New("no batch file selected")

// Kind classifies batch failures
type Kind string

const (
	KindNoFileSelected Kind = "NoFileSelected"
	KindBatchCall      Kind = "BatchCallError"
	KindPersistence    Kind = "PersistenceError"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the batch kind of err, or "" if err is not a batch error
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// RowError reports the first failed row of an otherwise whole-file call
type RowError struct {
	Index    int
	SampleID string
	Failed   int
	Total    int
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (sample %s) failed, %d of %d rows failed: %v", e.Index+1, e.SampleID, e.Failed, e.Total, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
