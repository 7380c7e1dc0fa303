package common

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// QCStatus is the backend-assigned quality classification of a detection.
// Values other than the two constants are passed through untouched.
type QCStatus string

const (
	QCVerifiable    QCStatus = "verifiable"
	QCNotVerifiable QCStatus = "not_verifiable"
)

// SiteMeta describes one analysis invocation. It is built once and never mutated.
type SiteMeta struct {
	SampleID  string  `json:"sample_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Zoom      int     `json:"zoom"`
	Radius    int     `json:"radius"`
	Provider  string  `json:"provider"`
}

// NewSiteMeta builds the metadata for one invocation; provider is stored lower-cased
func NewSiteMeta(sampleID string, coord Coordinate, params QueryParameters) SiteMeta {
	return SiteMeta{
		SampleID:  sampleID,
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
		Zoom:      params.Zoom,
		Radius:    params.Radius,
		Provider:  strings.ToLower(string(params.Provider)),
	}
}

// ImageMetadata carries provenance of the analysed image
type ImageMetadata struct {
	Source      string `json:"source"`
	CaptureDate string `json:"capture_date"`
}

// Mask is the opaque bbox/mask payload. The model may send a string or structured
// JSON (polygon lists); structured values are kept as their compact JSON text.
type Mask string

// UnmarshalJSON accepts any JSON value
func (m *Mask) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*m = Mask(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return err
	}
	*m = Mask(buf.String())
	return nil
}

// AiResult is the merged detection record for one sample
type AiResult struct {
	SampleID      string        `json:"sample_id"`
	Latitude      float64       `json:"lat"`
	Longitude     float64       `json:"lon"`
	HasSolar      bool          `json:"has_solar"`
	Confidence    float64       `json:"confidence"`
	PanelCountEst int           `json:"panel_count_est"`
	PVAreaSqmEst  float64       `json:"pv_area_sqm_est"`
	CapacityKWEst float64       `json:"capacity_kw_est"`
	QCStatus      QCStatus      `json:"qc_status"`
	QCNotes       []string      `json:"qc_notes"`
	BBoxOrMask    Mask          `json:"bbox_or_mask"`
	ImageMetadata ImageMetadata `json:"image_metadata"`
}

// ParseInference decodes a raw inference payload. The sample id and coordinates
// it may carry are not authoritative; Merge replaces them.
func ParseInference(raw []byte) (AiResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return AiResult{}, fmt.Errorf("inference payload is not a JSON object")
	}
	var result AiResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return AiResult{}, fmt.Errorf("failed to parse inference payload: %w", err)
	}
	if result.QCNotes == nil {
		result.QCNotes = []string{}
	}
	return result, nil
}

// Merge combines an inference record with the session's metadata.
// The session's sample id and coordinates always win over the backend's copies.
func Merge(inference AiResult, meta SiteMeta) AiResult {
	merged := inference
	merged.QCNotes = append([]string{}, inference.QCNotes...)
	merged.SampleID = meta.SampleID
	merged.Latitude = meta.Latitude
	merged.Longitude = meta.Longitude
	return merged
}

// FormatConfidence renders a [0,1] confidence as a percentage with one decimal
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%.1f%%", confidence*100)
}

// StitchedImage is an encoded image payload kept for display and export
type StitchedImage struct {
	MIMEType string
	Data     []byte
}

// DataURL returns the payload as an embeddable data URL
func (s StitchedImage) DataURL() string {
	if len(s.Data) == 0 {
		return ""
	}
	return "data:" + s.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// Empty reports whether there is no payload
func (s StitchedImage) Empty() bool {
	return len(s.Data) == 0
}

// MarshalJSON encodes the image as its data URL so the frontend can display it directly
func (s StitchedImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.DataURL())
}

// ParseDataURL decodes a base64 data URL back into a StitchedImage
func ParseDataURL(url string) (StitchedImage, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return StitchedImage{}, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return StitchedImage{}, fmt.Errorf("malformed data URL")
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return StitchedImage{}, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return StitchedImage{}, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return StitchedImage{MIMEType: mimeType, Data: data}, nil
}

// BatchResult is one per-row record of a batch; it has the same shape as AiResult
type BatchResult struct {
	AiResult
}

// RowOutcome is the result-or-error of a single batch row.
// Exactly one of Result and Err is set.
type RowOutcome struct {
	Index    int          `json:"index"`
	SampleID string       `json:"sample_id"`
	Result   *BatchResult `json:"result,omitempty"`
	Err      error        `json:"-"`
}

// Failed reports whether the row produced an error
func (o RowOutcome) Failed() bool {
	return o.Err != nil || o.Result == nil
}
