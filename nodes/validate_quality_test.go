package nodes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearcontract-ai/pipeline"
	"github.com/clearcontract-ai/pipeline/nodes"
)

func TestValidateQuality(t *testing.T) {
	node := &nodes.ValidateQuality{}

	state := newState(t, pipeline.RunRequest{})
	withDocument(t, state, "clean readable contract text", 0.9)

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)
	require.True(t, result.Scored)

	quality := result.Output.(*pipeline.QualityResult)
	require.InDelta(t, 0.9, quality.Clarity, 1e-9)
	require.InDelta(t, 1.0, quality.Completeness, 1e-9)
	// No term extraction yet, so the OCR pass score is the extraction signal.
	require.InDelta(t, 0.9, quality.Extraction, 1e-9)
	require.InDelta(t, (0.9+1.0+0.9)/3, quality.Aggregate, 1e-9)
	require.Equal(t, pipeline.QualityExcellent, quality.Band)
	require.InDelta(t, quality.Aggregate, result.Confidence, 1e-9)
}

func TestValidateQualityFailedPagesLowerCompleteness(t *testing.T) {
	node := &nodes.ValidateQuality{}
	state := newState(t, pipeline.RunRequest{})

	doc := pipeline.NewDocumentResult()
	doc.Text = "page one\npage three"
	doc.Pages = append(doc.Pages,
		pipeline.PageResult{Number: 1, Text: "page one", Confidence: 0.8},
		pipeline.PageResult{Number: 3, Text: "page three", Confidence: 0.8},
		pipeline.PageResult{Number: 4, Text: "   ", Confidence: 0.1})
	doc.FailedPages = append(doc.FailedPages, 2)
	doc.Confidence = 0.6
	require.NoError(t, state.Complete(pipeline.StepProcessDocument, doc, 0.6, true))

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)

	quality := result.Output.(*pipeline.QualityResult)
	// 2 of 4 accounted pages produced text; the blank page counts against it.
	require.InDelta(t, 0.5, quality.Completeness, 1e-9)
	require.InDelta(t, (0.6+0.5+0.6)/3, quality.Aggregate, 1e-9)
	require.Equal(t, pipeline.QualityAcceptable, quality.Band)
}

func TestValidateQualityEmptyTextIsFatal(t *testing.T) {
	node := &nodes.ValidateQuality{}
	state := newState(t, pipeline.RunRequest{})
	withDocument(t, state, "   \n\t", 0.3)

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
	require.Equal(t, pipeline.ErrorKindValidation, result.Err.Kind)
}

func TestValidateQualityMissingDocumentIsFatal(t *testing.T) {
	node := &nodes.ValidateQuality{}
	state := newState(t, pipeline.RunRequest{})

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
	require.Equal(t, pipeline.ErrorKindMissingDependency, result.Err.Kind)
}

func TestBandForScore(t *testing.T) {
	cases := []struct {
		score float64
		band  pipeline.QualityBand
	}{
		{0.95, pipeline.QualityExcellent},
		{0.9, pipeline.QualityExcellent},
		{0.7, pipeline.QualityGood},
		{0.6, pipeline.QualityAcceptable},
		{0.45, pipeline.QualityPoor},
		{0.39, pipeline.QualityVeryPoor},
	}
	for _, tc := range cases {
		require.Equal(t, tc.band, pipeline.BandForScore(tc.score), "score %v", tc.score)
	}
}
