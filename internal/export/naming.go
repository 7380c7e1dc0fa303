package export

import (
	"fmt"
	"mime"
	"regexp"
	"time"

	"helioscope/internal/common"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// RecordFilename returns the JSON export name for a sample
// Format: helioscope_{sample_id}.json
func RecordFilename(sampleID string) string {
	return fmt.Sprintf("helioscope_%s.json", sanitize(sampleID))
}

// ImageFilename returns the image export name for a sample, with an
// extension matching the payload type (png when unknown)
func ImageFilename(sampleID string, mimeType string) string {
	return fmt.Sprintf("helioscope_%s%s", sanitize(sampleID), imageExtension(mimeType))
}

// BatchFilename returns the CSV export name for a batch
// Format: {name}_{stamp}.csv
func BatchFilename(name string, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", sanitize(name), common.FormatFileStamp(t))
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "", "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}
