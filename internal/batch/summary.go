package batch

import (
	"gonum.org/v1/gonum/stat"

	"helioscope/internal/common"
)

// PreviewSize is how many results the UI shows inline
const PreviewSize = 5

// Summary is an order-independent reduction of a batch result sequence
type Summary struct {
	Total           int     `json:"total"`
	Detections      int     `json:"detections"`
	NoDetection     int     `json:"no_detection"`
	MeanConfidence  float64 `json:"mean_confidence"`
	TotalCapacityKW float64 `json:"total_capacity_kw"`
	TotalPanels     int     `json:"total_panels"`
}

// Summarize counts detections. An empty sequence yields the zero summary.
func Summarize(results []common.BatchResult) Summary {
	summary := Summary{Total: len(results)}
	if len(results) == 0 {
		return summary
	}

	confidences := make([]float64, len(results))
	for i, r := range results {
		if r.HasSolar {
			summary.Detections++
		}
		confidences[i] = r.Confidence
		summary.TotalCapacityKW += r.CapacityKWEst
		summary.TotalPanels += r.PanelCountEst
	}
	summary.NoDetection = summary.Total - summary.Detections
	summary.MeanConfidence = stat.Mean(confidences, nil)
	return summary
}

// Preview returns the first n results in their original order
func Preview(results []common.BatchResult, n int) []common.BatchResult {
	if n < 0 {
		n = 0
	}
	if len(results) < n {
		n = len(results)
	}
	preview := make([]common.BatchResult, n)
	copy(preview, results[:n])
	return preview
}
