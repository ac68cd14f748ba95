package domain

// Confidence labels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ConfidenceComponents are the signals reduced into a ConfidenceScore.
type ConfidenceComponents struct {
	AvgRetrievalScore float64 `json:"avg_retrieval_score"`
	ExtractionQuality float64 `json:"extraction_quality"`
	SupportDensity    float64 `json:"support_density"`
}

// ConfidenceScore is a single score in [0,1] with a label and explanation.
type ConfidenceScore struct {
	Score      float64              `json:"score"`
	Label      string               `json:"label"`
	Components ConfidenceComponents `json:"components"`
	Reason     string               `json:"reason"`
}
