package common

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOverwritesBackendIdentity(t *testing.T) {
	raw := []byte(`{
		"sample_id": "backend-id",
		"lat": 1.5,
		"lon": 2.5,
		"has_solar": true,
		"confidence": 0.87,
		"panel_count_est": 4,
		"qc_status": "verifiable",
		"qc_notes": ["distinct module grid"]
	}`)
	inference, err := ParseInference(raw)
	require.NoError(t, err)

	meta := SiteMeta{SampleID: "1700000000000", Latitude: 12.8604075, Longitude: 77.6625644}
	merged := Merge(inference, meta)

	assert.Equal(t, meta.SampleID, merged.SampleID)
	assert.Equal(t, meta.Latitude, merged.Latitude)
	assert.Equal(t, meta.Longitude, merged.Longitude)
	assert.True(t, merged.HasSolar)
	assert.Equal(t, QCVerifiable, merged.QCStatus)
	assert.Equal(t, []string{"distinct module grid"}, merged.QCNotes)

	// the merged notes must not alias the inference record
	merged.QCNotes[0] = "changed"
	assert.Equal(t, "distinct module grid", inference.QCNotes[0])
}

func TestParseInferenceRejectsMalformedPayload(t *testing.T) {
	for _, raw := range []string{"", "[]", "not json", `{"has_solar": "yes"}`} {
		_, err := ParseInference([]byte(raw))
		assert.Error(t, err, "payload %q", raw)
	}
}

func TestParseInferenceDefaultsNotes(t *testing.T) {
	result, err := ParseInference([]byte(`{"has_solar": false, "qc_status": "not_verifiable"}`))
	require.NoError(t, err)
	assert.NotNil(t, result.QCNotes)
	assert.Empty(t, result.QCNotes)
	assert.Equal(t, Mask(""), result.BBoxOrMask)
}

func TestMaskAcceptsStringAndStructuredValues(t *testing.T) {
	var withString struct {
		M Mask `json:"m"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"m":"POLYGON((0 0))"}`), &withString))
	assert.Equal(t, Mask("POLYGON((0 0))"), withString.M)

	var withPolygons struct {
		M Mask `json:"m"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"m": [[[1, 2], [3, 4]]]}`), &withPolygons))
	assert.Equal(t, Mask("[[[1,2],[3,4]]]"), withPolygons.M)
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "87.0%", FormatConfidence(0.87))
	assert.Equal(t, "0.0%", FormatConfidence(0))
	assert.Equal(t, "100.0%", FormatConfidence(1))
}

func TestDataURLRoundTrip(t *testing.T) {
	img := StitchedImage{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	url := img.DataURL()
	assert.Equal(t, "data:image/png;base64,iVBORw==", url)

	parsed, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, img, parsed)

	_, err = ParseDataURL("http://example.com/tile.png")
	assert.Error(t, err)
	assert.Equal(t, "", StitchedImage{}.DataURL())
}

func TestQueryParametersValidate(t *testing.T) {
	params, err := NewQueryParameters(18, 1, "ESRI")
	require.NoError(t, err)
	assert.Equal(t, ProviderEsri, params.Provider)

	cases := []struct {
		zoom, radius int
		provider     string
	}{
		{0, 1, "esri"},
		{23, 1, "esri"},
		{18, -1, "esri"},
		{18, 6, "esri"},
		{18, 1, "osm"},
	}
	for _, tc := range cases {
		_, err := NewQueryParameters(tc.zoom, tc.radius, tc.provider)
		assert.ErrorIs(t, err, ErrInvalidParameters, "%+v", tc)
	}
}

func TestCoordinateValidate(t *testing.T) {
	assert.NoError(t, Coordinate{Latitude: 95, Longitude: 200}.Validate())
	assert.Error(t, Coordinate{Latitude: math.NaN()}.Validate())
	assert.Error(t, Coordinate{Longitude: math.Inf(1)}.Validate())
}

func TestNewSiteMetaLowercasesProvider(t *testing.T) {
	meta := NewSiteMeta("42", Coordinate{Latitude: 1, Longitude: 2}, QueryParameters{Zoom: 18, Radius: 1, Provider: Provider("ESRI")})
	assert.Equal(t, "esri", meta.Provider)
	assert.Equal(t, 18, meta.Zoom)
}
