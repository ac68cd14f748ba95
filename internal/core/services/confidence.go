package services

import (
	"fmt"
	"math"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// Ensure ConfidenceScorer implements the interface.
var _ driving.ConfidenceScorer = (*ConfidenceScorer)(nil)

// Confidence weights and label thresholds. These are fixed business
// constants and must not be tuned.
const (
	WeightRetrieval  = 0.6
	WeightExtraction = 0.3
	WeightSupport    = 0.1

	ThresholdHigh   = 0.7
	ThresholdMedium = 0.4
)

// Extraction quality contributions.
const (
	qualityBase       = 0.5
	qualityProvenance = 0.3
	qualityOffsets    = 0.2
)

// ConfidenceScorer reduces retrieval and extraction signals to one score.
type ConfidenceScorer struct{}

// NewConfidenceScorer creates a confidence scorer.
func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

// Score computes the confidence of an answer from the sentences shown to
// the model and the extractions it produced.
func (s *ConfidenceScorer) Score(
	candidates []domain.RetrievedSentence, extractions []domain.Extraction,
) domain.ConfidenceScore {
	return s.Combine(domain.ConfidenceComponents{
		AvgRetrievalScore: avgRetrievalScore(candidates),
		ExtractionQuality: extractionQuality(extractions),
		SupportDensity:    supportDensity(candidates, extractions),
	})
}

// Combine weights the components into a labelled score. Components and
// the score are clamped to [0,1].
func (s *ConfidenceScorer) Combine(c domain.ConfidenceComponents) domain.ConfidenceScore {
	c.AvgRetrievalScore = clamp01(c.AvgRetrievalScore)
	c.ExtractionQuality = clamp01(c.ExtractionQuality)
	c.SupportDensity = clamp01(c.SupportDensity)

	score := clamp01(WeightRetrieval*c.AvgRetrievalScore +
		WeightExtraction*c.ExtractionQuality +
		WeightSupport*c.SupportDensity)

	label := Label(score)
	return domain.ConfidenceScore{
		Score:      score,
		Label:      label,
		Components: c,
		Reason: fmt.Sprintf("%s confidence: retrieval %.2f, extraction quality %.2f, support density %.2f",
			label, c.AvgRetrievalScore, c.ExtractionQuality, c.SupportDensity),
	}
}

// Label maps a score to high, medium or low.
func Label(score float64) string {
	switch {
	case score >= ThresholdHigh:
		return domain.ConfidenceHigh
	case score >= ThresholdMedium:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func avgRetrievalScore(candidates []domain.RetrievedSentence) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candidates {
		sum += c.Score
	}
	return sum / float64(len(candidates))
}

func extractionQuality(extractions []domain.Extraction) float64 {
	if len(extractions) == 0 {
		return 0
	}
	var sum float64
	for _, e := range extractions {
		q := qualityBase
		if e.Provenance != nil {
			q += qualityProvenance
			if e.Provenance.Offsets != nil {
				q += qualityOffsets
			}
		}
		sum += q
	}
	return sum / float64(len(extractions))
}

func supportDensity(candidates []domain.RetrievedSentence, extractions []domain.Extraction) float64 {
	cited := make(map[string]struct{})
	for _, e := range extractions {
		if e.Provenance != nil && e.Provenance.ArtifactID != "" {
			cited[e.Provenance.ArtifactID] = struct{}{}
		}
	}
	return float64(len(cited)) / float64(max(1, len(candidates)))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
