package pipeline

import "sort"

// Confidence gate thresholds. Scores at or above GateContinue route the run
// forward; scores in [GateRetry, GateContinue) consume the retry budget and
// then proceed with a recorded warning; scores below GateRetry halt the run.
const (
	GateContinue = 0.7
	GateRetry    = 0.4
)

// GateOutcome maps a confidence score to the orchestrator's routing decision.
func GateOutcome(score float64) Outcome {
	switch {
	case score >= GateContinue:
		return OutcomeSuccess
	case score >= GateRetry:
		return OutcomeRetryable
	default:
		return OutcomeFatal
	}
}

// Signal is one weighted quality signal contributing to the overall
// confidence.
type Signal struct {
	Score  float64
	Weight float64
}

// signalWeights assigns each scoring step's contribution to the overall
// confidence. Weights follow the reference calibration: extraction carries
// the most, risk and compliance split the analytical share, document quality
// the remainder.
var signalWeights = map[Step]float64{
	StepValidateQuality:   0.2,
	StepExtractTerms:      0.3,
	StepAssessRisks:       0.25,
	StepAnalyzeCompliance: 0.25,
}

// ConfidenceScorer computes weighted-average confidence scores. The zero
// value is ready to use.
type ConfidenceScorer struct{}

// Compute returns sum(score*weight)/sum(weight) over the given signals.
// Signals are folded in sorted key order so identical inputs always produce
// the identical float, regardless of map iteration order.
func (ConfidenceScorer) Compute(signals map[string]Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var weightedSum, totalWeight float64
	for _, k := range keys {
		signal := signals[k]
		weightedSum += signal.Score * signal.Weight
		totalWeight += signal.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}
