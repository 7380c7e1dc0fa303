package store

import (
	"context"
	"errors"
	"time"

	"helioscope/internal/common"
)

// ErrNotConfigured is returned by the no-op store
var ErrNotConfigured = errors.New("result store not configured")

// Store persists single analyses and batch aggregates
type Store interface {
	SaveResult(ctx context.Context, record common.ExportRecord) error
	SaveBatch(ctx context.Context, name string, results []common.BatchResult) error
	Close() error
}

// BatchDocument is the serialized form of one saved batch
type BatchDocument struct {
	Name    string               `json:"name"`
	SavedAt time.Time            `json:"saved_at"`
	Count   int                  `json:"count"`
	Results []common.BatchResult `json:"results"`
}

func newBatchDocument(name string, results []common.BatchResult, now time.Time) BatchDocument {
	if results == nil {
		results = []common.BatchResult{}
	}
	return BatchDocument{Name: name, SavedAt: now.UTC(), Count: len(results), Results: results}
}

// NoopStore rejects every save
type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (s *NoopStore) SaveResult(_ context.Context, _ common.ExportRecord) error {
	return ErrNotConfigured
}

func (s *NoopStore) SaveBatch(_ context.Context, _ string, _ []common.BatchResult) error {
	return ErrNotConfigured
}

func (s *NoopStore) Close() error {
	return nil
}
