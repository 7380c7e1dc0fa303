package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"helioscope/internal/common"
	"helioscope/internal/gateway"
)

// Step names the pipeline stage that failed
type Step string

const (
	StepFetch     Step = "fetch"
	StepInference Step = "inference"
)

// Kind is the user-facing error class of a failed step
type Kind string

const (
	KindFetch     Kind = "FetchError"
	KindInference Kind = "InferenceError"
)

// Error is the single failure outcome of a pipeline run
type Error struct {
	Step Step
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind maps the failing step to its error class
func (e *Error) Kind() Kind {
	if e.Step == StepFetch {
		return KindFetch
	}
	return KindInference
}

// IsFetch reports whether err is a tile retrieval failure
func IsFetch(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Step == StepFetch
}

// IsInference reports whether err is an inference failure
func IsInference(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Step == StepInference
}

// Outcome is the success triple of a run
type Outcome struct {
	Meta   common.SiteMeta
	Result common.AiResult
	Image  common.StitchedImage
}

// IDGenerator hands out sample ids derived from the wall clock.
// Ids are strictly increasing even when two calls land in the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return strconv.FormatInt(id, 10)
}

// Pipeline runs fetch, metadata, inference and merge in that order
type Pipeline struct {
	gateway gateway.Gateway
	ids     *IDGenerator
}

func NewPipeline(gw gateway.Gateway, ids *IDGenerator) *Pipeline {
	if ids == nil {
		ids = NewIDGenerator()
	}
	return &Pipeline{gateway: gw, ids: ids}
}

// Run executes one analysis. Exactly one of the outcome and the error is meaningful.
func (p *Pipeline) Run(ctx context.Context, coord common.Coordinate, params common.QueryParameters) (Outcome, error) {
	image, err := p.gateway.FetchTile(ctx, coord, params)
	if err != nil {
		return Outcome{}, p.fail(StepFetch, "", err)
	}
	if image.Empty() {
		return Outcome{}, p.fail(StepFetch, "", errors.New("provider returned an empty image"))
	}

	meta := common.NewSiteMeta(p.ids.Next(), coord, params)

	raw, err := p.gateway.RunInference(ctx, image)
	if err != nil {
		return Outcome{}, p.fail(StepInference, meta.SampleID, err)
	}
	parsed, err := common.ParseInference(raw)
	if err != nil {
		return Outcome{}, p.fail(StepInference, meta.SampleID, err)
	}

	return Outcome{
		Meta:   meta,
		Result: common.Merge(parsed, meta),
		Image:  image,
	}, nil
}

func (p *Pipeline) fail(step Step, sampleID string, err error) error {
	log.Printf("[Analysis] step=%s sample=%s err=%v", step, sampleID, err)
	return &Error{Step: step, Err: err}
}
