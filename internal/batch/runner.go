// Package batch runs a whole CSV of coordinates through the gateway and
// reduces the returned results for display.
package batch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"helioscope/internal/common"
	"helioscope/internal/gate"
	"helioscope/internal/gateway"
)

// Config fixes the parameters shared by every row of a batch
type Config struct {
	Params  common.QueryParameters
	Name    string
	Timeout time.Duration
}

// Report is the outcome of a successful batch call. SaveErr is set when the
// aggregate could not be persisted; the rest of the report stays valid.
type Report struct {
	Run     Run                  `json:"run"`
	Summary Summary              `json:"summary"`
	Preview []common.BatchResult `json:"preview"`
	Results []common.BatchResult `json:"results"`
	SaveErr error                `json:"-"`
}

// Runner executes one batch at a time
type Runner struct {
	gateway gateway.Gateway
	gate    *gate.Gate

	mu       sync.RWMutex
	cfg      Config
	onUpdate func(Run)
}

func NewRunner(gw gateway.Gateway, cfg Config) *Runner {
	if cfg.Name == "" {
		cfg.Name = "batch"
	}
	return &Runner{gateway: gw, gate: gate.New(), cfg: cfg}
}

// SetConfig replaces the parameters used by later runs
func (r *Runner) SetConfig(cfg Config) {
	if cfg.Name == "" {
		cfg.Name = "batch"
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// OnUpdate registers a callback receiving every lifecycle change
func (r *Runner) OnUpdate(fn func(Run)) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

// Busy reports whether a batch is running
func (r *Runner) Busy() bool {
	return r.gate.Held()
}

// Run resolves ref to a CSV path, hands the whole file to the gateway,
// persists the aggregate and summarizes it. A failed row fails the whole batch.
func (r *Runner) Run(ctx context.Context, ref any) (*Report, error) {
	handle, ok := r.gate.TryAcquire()
	if !ok {
		return nil, ErrBusy
	}
	defer handle.Release()

	path, ok := NormalizePath(ref)
	if !ok {
		log.Printf("[Batch] No file selected (ref=%T)", ref)
		return nil, &Error{Kind: KindNoFileSelected, Err: ErrNoFile}
	}

	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()

	run := NewRun(cfg.Name, path, cfg.Params)
	r.emit(*run)

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	run.MarkStarted()
	r.emit(*run)
	log.Printf("[Batch] Run %s started path=%s zoom=%d radius=%d provider=%s",
		run.ID, path, cfg.Params.Zoom, cfg.Params.Radius, cfg.Params.Provider)

	outcomes, err := r.gateway.ProcessBatch(runCtx, path, cfg.Params)
	if err != nil {
		return nil, r.fail(run, err)
	}

	results, err := collect(outcomes)
	if err != nil {
		return nil, r.fail(run, err)
	}

	report := &Report{
		Summary: Summarize(results),
		Preview: Preview(results, PreviewSize),
		Results: results,
	}

	if err := r.gateway.SaveBatch(runCtx, cfg.Name, results); err != nil {
		log.Printf("[Batch] Run %s save failed: %v", run.ID, err)
		report.SaveErr = &Error{Kind: KindPersistence, Err: err}
	}

	run.MarkCompleted(len(results), report.SaveErr == nil)
	report.Run = *run
	r.emit(*run)
	log.Printf("[Batch] Run %s completed total=%d detections=%d saved=%t",
		run.ID, report.Summary.Total, report.Summary.Detections, run.Saved)
	return report, nil
}

// collect turns row outcomes into results. Any failed row discards all of them.
func collect(outcomes []common.RowOutcome) ([]common.BatchResult, error) {
	results := make([]common.BatchResult, 0, len(outcomes))
	var first *RowError
	for _, o := range outcomes {
		if o.Failed() {
			if first == nil {
				cause := o.Err
				if cause == nil {
					cause = fmt.Errorf("no result returned")
				}
				first = &RowError{Index: o.Index, SampleID: o.SampleID, Err: cause}
			}
			first.Failed++
			continue
		}
		results = append(results, *o.Result)
	}
	if first != nil {
		first.Total = len(outcomes)
		return nil, first
	}
	return results, nil
}

func (r *Runner) fail(run *Run, err error) error {
	batchErr := &Error{Kind: KindBatchCall, Err: err}
	run.MarkFailed(batchErr)
	r.emit(*run)
	log.Printf("[Batch] Run %s failed path=%s err=%v", run.ID, run.Path, err)
	return batchErr
}

func (r *Runner) emit(run Run) {
	r.mu.RLock()
	fn := r.onUpdate
	r.mu.RUnlock()
	if fn != nil {
		fn(run)
	}
}
