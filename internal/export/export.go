// Package export writes analysis results and images to local files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"helioscope/internal/common"
)

// ErrNoImage is returned when there is no image payload to write
var ErrNoImage = errors.New("no image to export")

// WriteRecord writes the merged record as indented JSON to path
func WriteRecord(path string, record common.ExportRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// WriteImage writes the raw image bytes to path
func WriteImage(path string, image common.StitchedImage) error {
	if image.Empty() {
		return ErrNoImage
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, image.Data, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

var batchHeader = []string{
	"sample_id", "lat", "lon", "has_solar", "confidence", "panel_count_est",
	"pv_area_sqm_est", "capacity_kw_est", "qc_status", "qc_notes", "source", "capture_date",
}

// WriteBatchCSV writes batch results in their original order, one row per sample
func WriteBatchCSV(path string, results []common.BatchResult) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create batch export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(batchHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.SampleID,
			strconv.FormatFloat(r.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Longitude, 'f', -1, 64),
			strconv.FormatBool(r.HasSolar),
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			strconv.Itoa(r.PanelCountEst),
			strconv.FormatFloat(r.PVAreaSqmEst, 'f', -1, 64),
			strconv.FormatFloat(r.CapacityKWEst, 'f', -1, 64),
			string(r.QCStatus),
			strings.Join(r.QCNotes, "; "),
			r.ImageMetadata.Source,
			r.ImageMetadata.CaptureDate,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write batch export: %w", err)
	}
	return f.Close()
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	return nil
}
