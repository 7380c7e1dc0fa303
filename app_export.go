package main

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"helioscope/internal/common"
	"helioscope/internal/export"
	"helioscope/internal/store"
)

// Export Functions (Wails-exported)

var errNoResult = errors.New("no analysis result to export")

func (a *App) outputDir() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.OutputDir
}

// saveDialog asks for a destination; an empty path means the user cancelled
func (a *App) saveDialog(title, filename, pattern string) (string, error) {
	return wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:            title,
		DefaultDirectory: a.outputDir(),
		DefaultFilename:  filename,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: pattern, Pattern: pattern},
		},
	})
}

// SaveResultJSON writes the last analysis as JSON and mirrors it to the result store
func (a *App) SaveResultJSON() (string, error) {
	record, ok := a.session.LastRecord()
	if !ok {
		return "", errNoResult
	}

	path, err := a.saveDialog("Save Result", export.RecordFilename(record.Meta.SampleID), "*.json")
	if err != nil || path == "" {
		return "", err
	}

	exportRecord := common.NewExportRecord(record.Meta, record.Result)
	if err := export.WriteRecord(path, exportRecord); err != nil {
		a.notify("Export failed", err, fmt.Sprintf("sample=%s path=%s", record.Meta.SampleID, path))
		return "", err
	}

	if err := a.gateway.SaveResult(a.ctx, exportRecord); err != nil && !errors.Is(err, store.ErrNotConfigured) {
		a.warn("Result not saved to store", err)
	}

	log.Printf("Exported result %s to %s", record.Meta.SampleID, path)
	return path, nil
}

// SaveImage writes the raw stitched image of the last analysis
func (a *App) SaveImage() (string, error) {
	record, ok := a.session.LastRecord()
	if !ok || record.Image.Empty() {
		return "", errNoResult
	}

	filename := export.ImageFilename(record.Meta.SampleID, record.Image.MIMEType)
	path, err := a.saveDialog("Save Image", filename, "*"+filepath.Ext(filename))
	if err != nil || path == "" {
		return "", err
	}

	if err := export.WriteImage(path, record.Image); err != nil {
		a.notify("Export failed", err, fmt.Sprintf("sample=%s path=%s", record.Meta.SampleID, path))
		return "", err
	}
	log.Printf("Exported image %s to %s", record.Meta.SampleID, path)
	return path, nil
}

// ExportBatchCSV writes every result of the last batch
func (a *App) ExportBatchCSV() (string, error) {
	a.mu.Lock()
	report := a.lastBatch
	name := a.settings.BatchName
	a.mu.Unlock()
	if report == nil {
		return "", errors.New("no batch results to export")
	}

	path, err := a.saveDialog("Export Batch", export.BatchFilename(name, time.Now()), "*.csv")
	if err != nil || path == "" {
		return "", err
	}
	if err := export.WriteBatchCSV(path, report.Results); err != nil {
		a.notify("Export failed", err, fmt.Sprintf("run=%s path=%s", report.Run.ID, path))
		return "", err
	}
	return path, nil
}

// Cache Management Functions (Wails-exported)

// TileCacheStats represents tile cache statistics for frontend
type TileCacheStats struct {
	Entries  int `json:"entries"`
	Capacity int `json:"capacity"`
}

// GetTileCacheStats returns current tile cache statistics
func (a *App) GetTileCacheStats() TileCacheStats {
	a.mu.Lock()
	capacity := a.settings.TileCacheEntries
	a.mu.Unlock()
	return TileCacheStats{Entries: a.fetcher.Cache().Len(), Capacity: capacity}
}

// ClearTileCache drops every cached tile
func (a *App) ClearTileCache() {
	a.fetcher.Cache().Purge()
	log.Printf("Tile cache cleared")
}
