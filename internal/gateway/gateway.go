// Package gateway is the single request/response boundary the pipelines use
// to reach imagery providers, the detection model and result storage.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"helioscope/internal/common"
	"helioscope/internal/store"
)

// Gateway is every remote operation the console depends on
type Gateway interface {
	FetchTile(ctx context.Context, coord common.Coordinate, params common.QueryParameters) (common.StitchedImage, error)
	RunInference(ctx context.Context, image common.StitchedImage) (json.RawMessage, error)
	ProcessBatch(ctx context.Context, csvPath string, params common.QueryParameters) ([]common.RowOutcome, error)
	SaveResult(ctx context.Context, record common.ExportRecord) error
	SaveBatch(ctx context.Context, name string, results []common.BatchResult) error
}

// TileSource produces a stitched image around a coordinate
type TileSource interface {
	Fetch(ctx context.Context, coord common.Coordinate, zoom, radius int, provider common.Provider) (common.StitchedImage, error)
}

// Inferrer runs the detection model on one image and returns its raw JSON record
type Inferrer interface {
	Infer(ctx context.Context, image common.StitchedImage) (json.RawMessage, error)
}

// Service implements Gateway over local components
type Service struct {
	tiles     TileSource
	inference Inferrer
	store     store.Store
}

var _ Gateway = (*Service)(nil)

func NewService(tiles TileSource, inference Inferrer, st store.Store) *Service {
	if st == nil {
		st = store.NewNoopStore()
	}
	return &Service{tiles: tiles, inference: inference, store: st}
}

func (s *Service) FetchTile(ctx context.Context, coord common.Coordinate, params common.QueryParameters) (common.StitchedImage, error) {
	if err := coord.Validate(); err != nil {
		return common.StitchedImage{}, err
	}
	if err := params.Validate(); err != nil {
		return common.StitchedImage{}, err
	}
	return s.tiles.Fetch(ctx, coord, params.Zoom, params.Radius, params.Provider)
}

func (s *Service) RunInference(ctx context.Context, image common.StitchedImage) (json.RawMessage, error) {
	if image.Empty() {
		return nil, errors.New("no image to analyse")
	}
	return s.inference.Infer(ctx, image)
}

// ProcessBatch runs fetch, inference and merge for every row of the CSV in file order.
// Row failures are reported per row; only an unreadable file or a cancelled context
// fails the call as a whole.
func (s *Service) ProcessBatch(ctx context.Context, csvPath string, params common.QueryParameters) ([]common.RowOutcome, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	rows, err := ReadRows(csvPath)
	if err != nil {
		return nil, err
	}
	log.Printf("[Gateway] Processing batch %s: %d rows (zoom=%d radius=%d provider=%s)",
		csvPath, len(rows), params.Zoom, params.Radius, params.Provider)

	outcomes := make([]common.RowOutcome, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch interrupted at row %d: %w", i+1, err)
		}

		outcome := common.RowOutcome{Index: i, SampleID: row.SampleID}
		result, err := s.processRow(ctx, row, params)
		if err != nil {
			log.Printf("[Gateway] Row %d sample=%s failed: %v", i+1, row.SampleID, err)
			outcome.Err = err
		} else {
			outcome.Result = &common.BatchResult{AiResult: result}
		}
		outcomes = append(outcomes, outcome)
	}

	// A deadline that expires during the last row still fails the batch
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch interrupted after row %d: %w", len(rows), err)
	}
	return outcomes, nil
}

func (s *Service) processRow(ctx context.Context, row Row, params common.QueryParameters) (common.AiResult, error) {
	if row.Err != nil {
		return common.AiResult{}, row.Err
	}

	image, err := s.FetchTile(ctx, row.Coordinate, params)
	if err != nil {
		return common.AiResult{}, fmt.Errorf("fetch: %w", err)
	}
	raw, err := s.RunInference(ctx, image)
	if err != nil {
		return common.AiResult{}, fmt.Errorf("inference: %w", err)
	}
	parsed, err := common.ParseInference(raw)
	if err != nil {
		return common.AiResult{}, fmt.Errorf("inference: %w", err)
	}
	return common.Merge(parsed, common.NewSiteMeta(row.SampleID, row.Coordinate, params)), nil
}

func (s *Service) SaveResult(ctx context.Context, record common.ExportRecord) error {
	return s.store.SaveResult(ctx, record)
}

func (s *Service) SaveBatch(ctx context.Context, name string, results []common.BatchResult) error {
	return s.store.SaveBatch(ctx, name, results)
}

// Close releases the underlying store
func (s *Service) Close() error {
	return s.store.Close()
}
