package main

import (
	"errors"
	"fmt"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"helioscope/internal/batch"
	"helioscope/internal/common"
	"helioscope/internal/store"
)

// BatchView is what the batch panel renders after a run
type BatchView struct {
	Run       batch.Run            `json:"run"`
	Summary   batch.Summary        `json:"summary"`
	Preview   []common.BatchResult `json:"preview"`
	SaveError string               `json:"saveError,omitempty"`
}

// SelectBatchCSV opens a file picker for a batch CSV. An empty string means cancelled.
func (a *App) SelectBatchCSV() (string, error) {
	return wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Select Batch CSV",
		DefaultDirectory: a.outputDir(),
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "CSV files (*.csv)", Pattern: "*.csv"},
		},
	})
}

// PickAndRunBatch asks for a CSV file and runs it as a batch
func (a *App) PickAndRunBatch() (*BatchView, error) {
	path, err := a.SelectBatchCSV()
	if err != nil {
		a.notify("Batch failed", err, "step=select")
		return nil, err
	}
	return a.RunBatch(path)
}

// RunBatch runs the whole file referenced by ref. ref may be any shape a picker
// produces: a path string, a list of paths or an object with a path field.
func (a *App) RunBatch(ref interface{}) (*BatchView, error) {
	a.TrackEvent("batch_started", nil)

	report, err := a.batch.Run(a.ctx, ref)
	if err != nil {
		if errors.Is(err, batch.ErrBusy) {
			return nil, err
		}
		kind := batch.KindOf(err)
		a.notify("Batch failed", err, fmt.Sprintf("kind=%s", kind))
		a.TrackEvent("batch_failed", map[string]interface{}{"kind": string(kind)})
		return nil, err
	}

	a.mu.Lock()
	a.lastBatch = report
	a.mu.Unlock()

	view := &BatchView{Run: report.Run, Summary: report.Summary, Preview: report.Preview}
	if report.SaveErr != nil {
		view.SaveError = report.SaveErr.Error()
		if errors.Is(report.SaveErr, store.ErrNotConfigured) {
			a.warn("Batch results not saved", report.SaveErr)
		} else {
			a.notify("Batch results not saved", report.SaveErr, fmt.Sprintf("run=%s total=%d", report.Run.ID, report.Summary.Total))
		}
		a.TrackEvent("batch_save_failed", map[string]interface{}{"total": report.Summary.Total})
	}

	a.TrackEvent("batch_completed", map[string]interface{}{
		"total":       report.Summary.Total,
		"detections":  report.Summary.Detections,
		"noDetection": report.Summary.NoDetection,
		"saved":       report.SaveErr == nil,
	})
	return view, nil
}

// IsBatchRunning reports whether a batch is in progress
func (a *App) IsBatchRunning() bool {
	return a.batch.Busy()
}
