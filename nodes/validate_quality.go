package nodes

import (
	"context"
	"strings"

	"github.com/clearcontract-ai/pipeline"
)

// ValidateQuality scores the processed document across clarity, completeness
// and extraction-confidence dimensions, each in [0,1], and derives a banded
// aggregate. A document whose text came back empty is unanalyzable and
// fatal. The step is optional: runs created with QualityValidation disabled
// skip it entirely.
type ValidateQuality struct{}

func (n *ValidateQuality) Step() pipeline.Step {
	return pipeline.StepValidateQuality
}

func (n *ValidateQuality) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	doc, err := state.Document(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
	if len(strings.TrimSpace(doc.Text)) == 0 {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(), "document text is empty"))
	}

	clarity := doc.Confidence
	completeness := pageCompleteness(doc)
	extraction := extractionSignal(state)

	aggregate := (clarity + completeness + extraction) / 3
	result := &pipeline.QualityResult{
		Clarity:      clarity,
		Completeness: completeness,
		Extraction:   extraction,
		Aggregate:    aggregate,
		Band:         pipeline.BandForScore(aggregate),
	}
	return pipeline.SuccessWithConfidence(result, aggregate)
}

// pageCompleteness is the share of pages that produced text, with failed
// pages counted against the document.
func pageCompleteness(doc *pipeline.DocumentResult) float64 {
	total := len(doc.Pages) + len(doc.FailedPages)
	if total == 0 {
		// Single-shot extraction with no page accounting; text presence is
		// the only signal available.
		return 1
	}
	withText := 0
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) != "" {
			withText++
		}
	}
	return float64(withText) / float64(total)
}

// extractionSignal reuses the term extraction confidence when a score was
// recorded, falling back to the OCR pass score.
func extractionSignal(state *pipeline.WorkflowState) float64 {
	if score, ok := state.ConfidenceFor(pipeline.StepExtractTerms); ok {
		return score
	}
	if score, ok := state.ConfidenceFor(pipeline.StepProcessDocument); ok {
		return score
	}
	return 0.5
}
