package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"helioscope/internal/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS detections (
	sample_id        TEXT PRIMARY KEY,
	lat              DOUBLE PRECISION NOT NULL,
	lon              DOUBLE PRECISION NOT NULL,
	has_solar        BOOLEAN NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	panel_count_est  INTEGER NOT NULL,
	pv_area_sqm_est  DOUBLE PRECISION NOT NULL,
	capacity_kw_est  DOUBLE PRECISION NOT NULL,
	qc_status        TEXT NOT NULL,
	qc_notes         JSONB NOT NULL,
	bbox_or_mask     TEXT NOT NULL,
	image_source     TEXT NOT NULL,
	capture_date     TEXT NOT NULL,
	zoom             INTEGER,
	radius           INTEGER,
	provider         TEXT,
	saved_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS batches (
	id        UUID PRIMARY KEY,
	name      TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	saved_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS batch_detections (
	batch_id         UUID NOT NULL REFERENCES batches (id) ON DELETE CASCADE,
	sample_id        TEXT NOT NULL,
	lat              DOUBLE PRECISION NOT NULL,
	lon              DOUBLE PRECISION NOT NULL,
	has_solar        BOOLEAN NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	panel_count_est  INTEGER NOT NULL,
	pv_area_sqm_est  DOUBLE PRECISION NOT NULL,
	capacity_kw_est  DOUBLE PRECISION NOT NULL,
	qc_status        TEXT NOT NULL,
	qc_notes         JSONB NOT NULL,
	bbox_or_mask     TEXT NOT NULL,
	image_source     TEXT NOT NULL,
	capture_date     TEXT NOT NULL,
	PRIMARY KEY (batch_id, sample_id)
);`

const upsertDetection = `
INSERT INTO detections (sample_id, lat, lon, has_solar, confidence, panel_count_est, pv_area_sqm_est,
	capacity_kw_est, qc_status, qc_notes, bbox_or_mask, image_source, capture_date, zoom, radius, provider)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (sample_id) DO UPDATE
SET lat = EXCLUDED.lat,
    lon = EXCLUDED.lon,
    has_solar = EXCLUDED.has_solar,
    confidence = EXCLUDED.confidence,
    panel_count_est = EXCLUDED.panel_count_est,
    pv_area_sqm_est = EXCLUDED.pv_area_sqm_est,
    capacity_kw_est = EXCLUDED.capacity_kw_est,
    qc_status = EXCLUDED.qc_status,
    qc_notes = EXCLUDED.qc_notes,
    bbox_or_mask = EXCLUDED.bbox_or_mask,
    image_source = EXCLUDED.image_source,
    capture_date = EXCLUDED.capture_date,
    zoom = EXCLUDED.zoom,
    radius = EXCLUDED.radius,
    provider = EXCLUDED.provider,
    saved_at = now()`

// Rows of one batch never touch the single-analysis table
const upsertBatchDetection = `
INSERT INTO batch_detections (batch_id, sample_id, lat, lon, has_solar, confidence, panel_count_est,
	pv_area_sqm_est, capacity_kw_est, qc_status, qc_notes, bbox_or_mask, image_source, capture_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (batch_id, sample_id) DO UPDATE
SET lat = EXCLUDED.lat,
    lon = EXCLUDED.lon,
    has_solar = EXCLUDED.has_solar,
    confidence = EXCLUDED.confidence,
    panel_count_est = EXCLUDED.panel_count_est,
    pv_area_sqm_est = EXCLUDED.pv_area_sqm_est,
    capacity_kw_est = EXCLUDED.capacity_kw_est,
    qc_status = EXCLUDED.qc_status,
    qc_notes = EXCLUDED.qc_notes,
    bbox_or_mask = EXCLUDED.bbox_or_mask,
    image_source = EXCLUDED.image_source,
    capture_date = EXCLUDED.capture_date`

// PostgresStore keeps one row per sample in detections, and one row per
// sample per batch in batch_detections
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and creates the schema if needed
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) SaveResult(ctx context.Context, record common.ExportRecord) error {
	args, err := detectionArgs(record)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, upsertDetection, args...); err != nil {
		return fmt.Errorf("save detection %s: %w", record.SampleID, err)
	}
	return nil
}

// SaveBatch inserts the batch header and every row in one transaction
func (p *PostgresStore) SaveBatch(ctx context.Context, name string, results []common.BatchResult) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batchID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO batches (id, name, row_count) VALUES ($1, $2, $3)`,
		batchID, name, len(results)); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	batch := &pgx.Batch{}
	for _, result := range results {
		record := common.ExportRecord{
			SampleID:      result.SampleID,
			Latitude:      result.Latitude,
			Longitude:     result.Longitude,
			HasSolar:      result.HasSolar,
			Confidence:    result.Confidence,
			PanelCountEst: result.PanelCountEst,
			PVAreaSqmEst:  result.PVAreaSqmEst,
			CapacityKWEst: result.CapacityKWEst,
			QCStatus:      result.QCStatus,
			QCNotes:       result.QCNotes,
			BBoxOrMask:    result.BBoxOrMask,
			ImageMetadata: result.ImageMetadata,
		}
		args, err := batchDetectionArgs(batchID, record)
		if err != nil {
			return err
		}
		batch.Queue(upsertBatchDetection, args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert batch rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("[Store] Saved batch %q (%d rows) as %s", name, len(results), batchID)
	return nil
}

// detectionArgs orders a record's columns for upsertDetection
func detectionArgs(record common.ExportRecord) ([]any, error) {
	columns, err := resultColumns(record)
	if err != nil {
		return nil, err
	}
	return append(columns, record.Zoom, record.Radius, record.Provider), nil
}

// batchDetectionArgs orders a batch row's columns for upsertBatchDetection.
// Batch rows carry no zoom/radius/provider of their own.
func batchDetectionArgs(batchID uuid.UUID, record common.ExportRecord) ([]any, error) {
	columns, err := resultColumns(record)
	if err != nil {
		return nil, err
	}
	return append([]any{batchID}, columns...), nil
}

func resultColumns(record common.ExportRecord) ([]any, error) {
	notes := record.QCNotes
	if notes == nil {
		notes = []string{}
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("marshal qc notes: %w", err)
	}

	return []any{
		record.SampleID,
		record.Latitude,
		record.Longitude,
		record.HasSolar,
		record.Confidence,
		record.PanelCountEst,
		record.PVAreaSqmEst,
		record.CapacityKWEst,
		string(record.QCStatus),
		string(notesJSON),
		string(record.BBoxOrMask),
		record.ImageMetadata.Source,
		record.ImageMetadata.CaptureDate,
	}, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
