package gateway

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"helioscope/internal/common"
)

// Row is one parsed line of a batch file. Err is set for a line whose
// coordinate could not be read; the line still occupies its position.
type Row struct {
	SampleID   string
	Coordinate common.Coordinate
	Err        error
}

// ReadRows opens a batch CSV (header, then sample id, latitude, longitude)
func ReadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()
	return ParseRows(f)
}

// ParseRows reads rows from r. Columns past the third are ignored.
func ParseRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("batch file is empty")
		}
		return nil, fmt.Errorf("failed to read batch header: %w", err)
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file: %w", err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, parseRecord(line, record))
	}
	return rows, nil
}

func parseRecord(line int, record []string) Row {
	row := Row{SampleID: strings.TrimSpace(record[0])}
	if len(record) < 3 {
		row.Err = fmt.Errorf("line %d: expected 3 columns, got %d", line, len(record))
		return row
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		row.Err = fmt.Errorf("line %d: invalid latitude %q", line, record[1])
		return row
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		row.Err = fmt.Errorf("line %d: invalid longitude %q", line, record[2])
		return row
	}
	row.Coordinate = common.Coordinate{Latitude: lat, Longitude: lon}
	if err := row.Coordinate.Validate(); err != nil {
		row.Err = fmt.Errorf("line %d: %w", line, err)
	}
	return row
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
