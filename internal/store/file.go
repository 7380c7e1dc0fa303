package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"helioscope/internal/common"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeName makes a user- or backend-supplied name usable as a file name
func safeName(name string) string {
	cleaned := unsafeName.ReplaceAllString(name, "_")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "unnamed"
	}
	return cleaned
}

// FileStore writes JSON documents under a base directory
type FileStore struct {
	baseDir string
	now     func() time.Time
}

// NewFileStore creates the results/ and batches/ directories under baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	for _, sub := range []string{"results", "batches"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{baseDir: baseDir, now: time.Now}, nil
}

// ResultPath returns where a result with the given sample id is written
func (s *FileStore) ResultPath(sampleID string) string {
	return filepath.Join(s.baseDir, "results", "helioscope_"+safeName(sampleID)+".json")
}

// SaveResult writes one analysis record, replacing any previous copy
func (s *FileStore) SaveResult(_ context.Context, record common.ExportRecord) error {
	if record.SampleID == "" {
		return fmt.Errorf("record has no sample id")
	}
	return writeJSON(s.ResultPath(record.SampleID), record)
}

// SaveBatch writes the aggregate as one document; each save gets its own file
func (s *FileStore) SaveBatch(_ context.Context, name string, results []common.BatchResult) error {
	now := s.now()
	fileName := fmt.Sprintf("%s_%s_%s.json", safeName(name), common.FormatFileStamp(now), uuid.NewString()[:8])
	path := filepath.Join(s.baseDir, "batches", fileName)

	if err := writeJSON(path, newBatchDocument(name, results, now)); err != nil {
		return err
	}
	log.Printf("[Store] Saved batch %q (%d results) to %s", name, len(results), path)
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// writeJSON writes through a temp file so readers never see a partial document
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize document: %w", err)
	}
	return nil
}
