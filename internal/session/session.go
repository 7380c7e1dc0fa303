// Package session owns the interactive single-point workflow: the picked
// coordinate, the view phase and the last successful analysis.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"helioscope/internal/analysis"
	"helioscope/internal/common"
	"helioscope/internal/gate"
)

// ErrBusy is returned when an analysis is already running
var ErrBusy = errors.New("analysis already in progress")

// Phase is the tag of the session state
type Phase string

const (
	PhaseSelect    Phase = "select"
	PhaseAnalyzing Phase = "analyzing"
	PhaseResults   Phase = "results"
)

// View is what the operator sees. Analyzing keeps the selection view so the map stays usable.
type View string

const (
	ViewSelect  View = "select"
	ViewResults View = "results"
)

// Record is the result triple of one successful analysis.
// A published record is never mutated; a new analysis replaces it.
type Record struct {
	Meta   common.SiteMeta      `json:"meta"`
	Result common.AiResult      `json:"result"`
	Image  common.StitchedImage `json:"image"`
}

// Failure describes the last error shown to the operator
type Failure struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// State is an observer's view of the session
type State struct {
	Phase      Phase             `json:"phase"`
	View       View              `json:"view"`
	Busy       bool              `json:"busy"`
	Coordinate common.Coordinate `json:"coordinate"`
	Record     *Record           `json:"record,omitempty"`
	Error      *Failure          `json:"error,omitempty"`
}

// Runner executes one analysis
type Runner interface {
	Run(ctx context.Context, coord common.Coordinate, params common.QueryParameters) (analysis.Outcome, error)
}

type Session struct {
	mu        sync.Mutex
	phase     Phase
	coord     common.Coordinate
	record    *Record
	lastErr   *Failure
	observers map[int]func(State)
	nextObs   int

	gate    *gate.Gate
	runner  Runner
	timeout time.Duration
	now     func() time.Time
}

// New creates a session in the selection phase. A zero timeout means no bound
// beyond the caller's context.
func New(runner Runner, initial common.Coordinate, timeout time.Duration) *Session {
	return &Session{
		phase:     PhaseSelect,
		coord:     initial,
		observers: make(map[int]func(State)),
		gate:      gate.New(),
		runner:    runner,
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetCoordinate updates the picked point. Allowed while an analysis runs;
// the running analysis keeps the coordinate it started with.
func (s *Session) SetCoordinate(lat, lon float64) error {
	coord := common.Coordinate{Latitude: lat, Longitude: lon}
	if err := coord.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.coord = coord
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(state)
	return nil
}

// Start runs one analysis on the current coordinate and blocks until it finishes.
func (s *Session) Start(ctx context.Context, params common.QueryParameters) (Record, error) {
	handle, ok := s.gate.TryAcquire()
	if !ok {
		return Record{}, ErrBusy
	}
	defer handle.Release()

	if err := params.Validate(); err != nil {
		s.mu.Lock()
		s.lastErr = s.failure(err)
		state := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(state)
		return Record{}, err
	}

	s.mu.Lock()
	coord := s.coord
	s.phase = PhaseAnalyzing
	s.lastErr = nil
	state := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(state)

	log.Printf("[Session] Starting analysis lat=%.7f lon=%.7f zoom=%d radius=%d provider=%s",
		coord.Latitude, coord.Longitude, params.Zoom, params.Radius, params.Provider)

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	outcome, err := s.run(runCtx, coord, params)

	s.mu.Lock()
	var record Record
	if err != nil {
		s.phase = PhaseSelect
		s.lastErr = s.failure(err)
	} else {
		record = Record{Meta: outcome.Meta, Result: outcome.Result, Image: outcome.Image}
		s.record = &record
		s.phase = PhaseResults
	}
	handle.Release()
	state = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(state)

	if err != nil {
		log.Printf("[Session] Analysis failed: %v", err)
		return Record{}, err
	}
	log.Printf("[Session] Analysis complete sample=%s has_solar=%t", record.Meta.SampleID, record.Result.HasSolar)
	return record, nil
}

// run converts a panic in the runner into an inference failure so the session never stays busy
func (s *Session) run(ctx context.Context, coord common.Coordinate, params common.QueryParameters) (outcome analysis.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &analysis.Error{Step: analysis.StepInference, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return s.runner.Run(ctx, coord, params)
}

// Back returns to the selection view. The last record stays addressable.
func (s *Session) Back() {
	s.mu.Lock()
	if s.phase != PhaseResults {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseSelect
	state := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(state)
}

// Busy reports whether an analysis is running
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseAnalyzing
}

// Coordinate returns the current picked point
func (s *Session) Coordinate() common.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord
}

// LastRecord returns the most recent successful analysis, if any
func (s *Session) LastRecord() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return Record{}, false
	}
	return *s.record, true
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive every state change. The returned function unregisters it.
// Observers run on the goroutine that caused the change, outside the session lock.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) snapshotLocked() State {
	view := ViewSelect
	if s.phase == PhaseResults {
		view = ViewResults
	}
	var failure *Failure
	if s.lastErr != nil {
		f := *s.lastErr
		failure = &f
	}
	return State{
		Phase:      s.phase,
		View:       view,
		Busy:       s.phase == PhaseAnalyzing,
		Coordinate: s.coord,
		Record:     s.record,
		Error:      failure,
	}
}

func (s *Session) notify(state State) {
	s.mu.Lock()
	observers := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (s *Session) failure(err error) *Failure {
	return &Failure{Kind: ErrorKind(err), Message: err.Error(), At: s.now()}
}

// ErrorKind classifies an analysis error for display
func ErrorKind(err error) string {
	var ae *analysis.Error
	switch {
	case errors.As(err, &ae):
		return string(ae.Kind())
	case errors.Is(err, common.ErrInvalidParameters):
		return "InvalidParameters"
	case errors.Is(err, ErrBusy):
		return "Busy"
	default:
		return "Error"
	}
}
