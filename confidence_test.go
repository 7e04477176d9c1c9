package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateOutcome(t *testing.T) {
	require.Equal(t, OutcomeSuccess, GateOutcome(1.0))
	require.Equal(t, OutcomeSuccess, GateOutcome(0.7))
	require.Equal(t, OutcomeRetryable, GateOutcome(0.69))
	require.Equal(t, OutcomeRetryable, GateOutcome(0.4))
	require.Equal(t, OutcomeFatal, GateOutcome(0.39))
	require.Equal(t, OutcomeFatal, GateOutcome(0))
}

func TestComputeWeightedMean(t *testing.T) {
	var scorer ConfidenceScorer

	require.Equal(t, 0.0, scorer.Compute(nil))

	signals := map[string]Signal{
		"extraction": {Score: 0.9, Weight: 0.3},
		"quality":    {Score: 0.8, Weight: 0.2},
		"risks":      {Score: 0.6, Weight: 0.25},
		"compliance": {Score: 0.7, Weight: 0.25},
	}
	got := scorer.Compute(signals)
	want := (0.9*0.3 + 0.8*0.2 + 0.6*0.25 + 0.7*0.25) / 1.0
	require.InDelta(t, want, got, 1e-12)

	// Zero total weight yields zero, not a division panic.
	require.Equal(t, 0.0, scorer.Compute(map[string]Signal{"a": {Score: 1, Weight: 0}}))
}

func TestComputeDeterministic(t *testing.T) {
	var scorer ConfidenceScorer
	signals := map[string]Signal{
		"a": {Score: 0.31, Weight: 0.17},
		"b": {Score: 0.72, Weight: 0.29},
		"c": {Score: 0.55, Weight: 0.11},
		"d": {Score: 0.98, Weight: 0.43},
		"e": {Score: 0.12, Weight: 0.27},
	}
	// Identical inputs must produce the bit-identical float even though map
	// iteration order varies between runs.
	first := scorer.Compute(signals)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, scorer.Compute(signals))
	}
}

func TestRecomputeOverall(t *testing.T) {
	state := NewWorkflowState("", RunRequest{QualityValidation: true})

	require.NoError(t, state.Complete(StepExtractTerms, minimalTerms(), 0.9, true))
	require.NoError(t, state.Complete(StepAnalyzeCompliance, NewComplianceResult(JurisdictionNSW, 5), 0.8, true))
	state.RecomputeOverall(ConfidenceScorer{})

	want := (0.9*0.3 + 0.8*0.25) / (0.3 + 0.25)
	require.InDelta(t, want, state.OverallConfidence(), 1e-12)

	// Unscored steps contribute nothing.
	require.NoError(t, state.Complete(StepValidateCompleteness, NewCompletenessResult(), 0, false))
	state.RecomputeOverall(ConfidenceScorer{})
	require.InDelta(t, want, state.OverallConfidence(), 1e-12)
}
