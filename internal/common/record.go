package common

// ExportRecord is the persisted form of one analysis: every AiResult field
// followed by the request parameters from SiteMeta
type ExportRecord struct {
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
	Zoom          int           `json:"zoom"`
	Radius        int           `json:"radius"`
	Provider      string        `json:"provider"`
}

// NewExportRecord flattens a SiteMeta and its AiResult.
// Identity and coordinates come from the metadata.
func NewExportRecord(meta SiteMeta, result AiResult) ExportRecord {
	return ExportRecord{
		SampleID:      meta.SampleID,
		Latitude:      meta.Latitude,
		Longitude:     meta.Longitude,
		HasSolar:      result.HasSolar,
		Confidence:    result.Confidence,
		PanelCountEst: result.PanelCountEst,
		PVAreaSqmEst:  result.PVAreaSqmEst,
		CapacityKWEst: result.CapacityKWEst,
		QCStatus:      result.QCStatus,
		QCNotes:       append([]string{}, result.QCNotes...),
		BBoxOrMask:    result.BBoxOrMask,
		ImageMetadata: result.ImageMetadata,
		Zoom:          meta.Zoom,
		Radius:        meta.Radius,
		Provider:      meta.Provider,
	}
}
