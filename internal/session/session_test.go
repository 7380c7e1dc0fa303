package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helioscope/internal/analysis"
	"helioscope/internal/common"
)

type stubRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	outcome func(call int32, coord common.Coordinate) (analysis.Outcome, error)
}

func (r *stubRunner) Run(ctx context.Context, coord common.Coordinate, _ common.QueryParameters) (analysis.Outcome, error) {
	n := r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return analysis.Outcome{}, &analysis.Error{Step: analysis.StepFetch, Err: ctx.Err()}
		}
	}
	return r.outcome(n, coord)
}

func succeed(call int32, coord common.Coordinate) (analysis.Outcome, error) {
	id := string(rune('0' + call))
	meta := common.SiteMeta{SampleID: id, Latitude: coord.Latitude, Longitude: coord.Longitude, Zoom: 18, Radius: 1, Provider: "esri"}
	return analysis.Outcome{
		Meta:   meta,
		Result: common.AiResult{SampleID: id, Latitude: coord.Latitude, Longitude: coord.Longitude, HasSolar: true, Confidence: 0.87},
		Image:  common.StitchedImage{MIMEType: "image/png", Data: []byte{byte(call)}},
	}, nil
}

func fetchFails(int32, common.Coordinate) (analysis.Outcome, error) {
	return analysis.Outcome{}, &analysis.Error{Step: analysis.StepFetch, Err: errors.New("network unreachable")}
}

var home = common.Coordinate{Latitude: 12.8604075, Longitude: 77.6625644}

func params(t *testing.T) common.QueryParameters {
	t.Helper()
	p, err := common.NewQueryParameters(18, 1, "esri")
	require.NoError(t, err)
	return p
}

func TestInitialState(t *testing.T) {
	s := New(&stubRunner{outcome: succeed}, home, 0)
	state := s.Snapshot()
	assert.Equal(t, PhaseSelect, state.Phase)
	assert.Equal(t, ViewSelect, state.View)
	assert.False(t, state.Busy)
	assert.Nil(t, state.Record)
	assert.Equal(t, home, state.Coordinate)
}

func TestStartSuccessShowsResults(t *testing.T) {
	s := New(&stubRunner{outcome: succeed}, home, 0)

	record, err := s.Start(context.Background(), params(t))
	require.NoError(t, err)

	state := s.Snapshot()
	assert.Equal(t, ViewResults, state.View)
	assert.False(t, s.Busy())
	require.NotNil(t, state.Record)
	assert.Equal(t, record, *state.Record)
	assert.Equal(t, state.Record.Meta.SampleID, state.Record.Result.SampleID)
	assert.Nil(t, state.Error)
}

func TestFailureKeepsPreviousRecord(t *testing.T) {
	runner := &stubRunner{outcome: succeed}
	s := New(runner, home, 0)
	first, err := s.Start(context.Background(), params(t))
	require.NoError(t, err)

	runner.outcome = fetchFails
	_, err = s.Start(context.Background(), params(t))
	require.Error(t, err)
	assert.True(t, analysis.IsFetch(err))

	state := s.Snapshot()
	assert.Equal(t, ViewSelect, state.View)
	assert.False(t, state.Busy)
	require.NotNil(t, state.Record)
	assert.Equal(t, first, *state.Record)
	require.NotNil(t, state.Error)
	assert.Equal(t, "FetchError", state.Error.Kind)
}

func TestFetchFailureFromFreshSession(t *testing.T) {
	s := New(&stubRunner{outcome: fetchFails}, home, 0)

	_, err := s.Start(context.Background(), params(t))
	require.Error(t, err)

	state := s.Snapshot()
	assert.Equal(t, ViewSelect, state.View)
	assert.False(t, s.Busy())
	assert.Nil(t, state.Record)
	_, ok := s.LastRecord()
	assert.False(t, ok)
}

func TestStartWhileBusyIsRejected(t *testing.T) {
	runner := &stubRunner{outcome: succeed, release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(runner, home, 0)

	p := params(t)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.Start(context.Background(), p)
	}()
	<-runner.started
	require.True(t, s.Busy())
	before := s.Snapshot()

	_, err := s.Start(context.Background(), p)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, s.Snapshot())

	close(runner.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.False(t, s.Busy())
}

func TestCoordinateCapturedAtStart(t *testing.T) {
	runner := &stubRunner{outcome: succeed, release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(runner, home, 0)

	p := params(t)
	done := make(chan Record, 1)
	go func() {
		record, _ := s.Start(context.Background(), p)
		done <- record
	}()
	<-runner.started
	require.NoError(t, s.SetCoordinate(1, 2))
	close(runner.release)

	record := <-done
	assert.Equal(t, home.Latitude, record.Meta.Latitude)
	assert.Equal(t, common.Coordinate{Latitude: 1, Longitude: 2}, s.Coordinate())
}

func TestBackRetainsRecord(t *testing.T) {
	s := New(&stubRunner{outcome: succeed}, home, 0)
	_, err := s.Start(context.Background(), params(t))
	require.NoError(t, err)

	s.Back()
	state := s.Snapshot()
	assert.Equal(t, ViewSelect, state.View)
	assert.NotNil(t, state.Record)
	assert.Equal(t, home, state.Coordinate)

	s.Back()
	assert.Equal(t, ViewSelect, s.Snapshot().View)
}

func TestNewAnalysisReplacesRecord(t *testing.T) {
	s := New(&stubRunner{outcome: succeed}, home, 0)
	first, err := s.Start(context.Background(), params(t))
	require.NoError(t, err)
	second, err := s.Start(context.Background(), params(t))
	require.NoError(t, err)

	assert.NotEqual(t, first.Meta.SampleID, second.Meta.SampleID)
	last, ok := s.LastRecord()
	require.True(t, ok)
	assert.Equal(t, second, last)
}

func TestInvalidParametersLeaveStateUntouched(t *testing.T) {
	runner := &stubRunner{outcome: succeed}
	s := New(runner, home, 0)

	_, err := s.Start(context.Background(), common.QueryParameters{Zoom: 30, Radius: 1, Provider: common.ProviderEsri})
	assert.ErrorIs(t, err, common.ErrInvalidParameters)
	assert.Zero(t, runner.calls.Load())

	state := s.Snapshot()
	assert.Equal(t, PhaseSelect, state.Phase)
	require.NotNil(t, state.Error)
	assert.Equal(t, "InvalidParameters", state.Error.Kind)
}

func TestSetCoordinateRejectsNonFinite(t *testing.T) {
	s := New(&stubRunner{outcome: succeed}, home, 0)
	assert.Error(t, s.SetCoordinate(math.NaN(), 1))
	assert.Error(t, s.SetCoordinate(1, math.Inf(1)))
	assert.Equal(t, home, s.Coordinate())
}

func TestTimeoutClearsBusy(t *testing.T) {
	runner := &stubRunner{outcome: succeed, release: make(chan struct{})}
	s := New(runner, home, 20*time.Millisecond)

	_, err := s.Start(context.Background(), params(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.Busy())
	assert.Equal(t, ViewSelect, s.Snapshot().View)
}

func TestPanicInRunnerClearsBusy(t *testing.T) {
	runner := &stubRunner{outcome: func(int32, common.Coordinate) (analysis.Outcome, error) { panic("boom") }}
	s := New(runner, home, 0)

	_, err := s.Start(context.Background(), params(t))
	assert.True(t, analysis.IsInference(err))
	assert.False(t, s.Busy())
}

func TestObserversSeeAtomicTransitions(t *testing.T) {
	s := New(&stubRunner{outcome: succeed}, home, 0)

	var mu sync.Mutex
	var seen []State
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	_, err := s.Start(context.Background(), params(t))
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, seen, 2)
	assert.Equal(t, PhaseAnalyzing, seen[0].Phase)
	assert.True(t, seen[0].Busy)
	assert.Nil(t, seen[0].Record)
	assert.Equal(t, PhaseResults, seen[1].Phase)
	require.NotNil(t, seen[1].Record)
	assert.Equal(t, seen[1].Record.Meta.SampleID, seen[1].Record.Result.SampleID)
	mu.Unlock()

	for _, st := range seen {
		if st.View == ViewResults {
			assert.NotNil(t, st.Record)
		}
	}

	unsubscribe()
	s.Back()
	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
}
