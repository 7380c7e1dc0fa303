package common

import "time"

// Standard date format constants
const (
	// ISO8601Date is used for capture dates and report headers
	ISO8601Date = "2006-01-02"

	// FileStamp is embedded in generated file and object names
	FileStamp = "20060102T150405Z"
)

// FormatISO8601 formats a time.Time to ISO 8601 date string (YYYY-MM-DD)
func FormatISO8601(t time.Time) string {
	return t.Format(ISO8601Date)
}

// FormatFileStamp formats a time in UTC for use in file names
func FormatFileStamp(t time.Time) string {
	return t.UTC().Format(FileStamp)
}
