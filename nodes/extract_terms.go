package nodes

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/clearcontract-ai/pipeline"
)

// termsSchema names the structured fields the model is asked to produce.
var termsSchema = pipeline.Schema{
	"parties":            "array",
	"amounts":            "array",
	"dates":              "array",
	"conditions":         "array",
	"legal_references":   "array",
	"property_address":   "string",
	"cooling_off_waived": "boolean",
}

// ExtractTerms turns raw document text into structured contract terms via
// the prompt composer and model invoker. The reported confidence blends the
// model's own estimate with how much of the expected structure actually came
// back, so a reply the parser half-understood gates lower than the model
// claimed.
//
// On a low-confidence retry this node deliberately reuses the existing OCR
// output and re-invokes only the model; re-running OCR is process_document's
// retry behavior, not this node's.
type ExtractTerms struct {
	Composer pipeline.PromptComposer
	Invoker  pipeline.ModelInvoker
}

func (n *ExtractTerms) Step() pipeline.Step {
	return pipeline.StepExtractTerms
}

func (n *ExtractTerms) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	doc, err := state.Document(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}

	prompt, err := n.Composer.Render(ctx, n.Step(), pipeline.PromptContext{
		Jurisdiction: state.Jurisdiction(),
		ContractType: state.ContractType(),
		Vars: map[string]any{
			"document_text": doc.Text,
		},
	})
	if err != nil {
		return pipeline.Fatal(pipeline.NewFatalError(n.Step(), err))
	}

	output, err := n.Invoker.Invoke(ctx, prompt, termsSchema)
	if err != nil {
		perr := pipeline.ClassifyError(n.Step(), err)
		if perr.Retryable() {
			return pipeline.Retryable(perr)
		}
		return pipeline.Fatal(perr)
	}

	terms, parsed, err := decodeTerms(output)
	if err != nil {
		return pipeline.Retryable(pipeline.NewTransientInvocationError(
			fmt.Errorf("model output could not be decoded: %w", err)))
	}
	return pipeline.SuccessWithConfidence(terms, agreementConfidence(output.Confidence, parsed))
}

// structuredTerms is the wire shape of the model's structured reply.
type structuredTerms struct {
	Parties          []pipeline.Party           `mapstructure:"parties"`
	Amounts          []pipeline.FinancialAmount `mapstructure:"amounts"`
	Dates            []pipeline.KeyDate         `mapstructure:"dates"`
	Conditions       []pipeline.Condition       `mapstructure:"conditions"`
	LegalReferences  []string                   `mapstructure:"legal_references"`
	PropertyAddress  string                     `mapstructure:"property_address"`
	CoolingOffWaived bool                       `mapstructure:"cooling_off_waived"`
}

// decodeTerms maps the structured model output into typed terms. It returns
// the number of expected term groups the model actually populated.
func decodeTerms(output *pipeline.ModelOutput) (*pipeline.ContractTerms, int, error) {
	if output.Structured == nil {
		return nil, 0, fmt.Errorf("model returned no structured output")
	}
	var decoded structuredTerms
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decoded,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, 0, err
	}
	if err := decoder.Decode(output.Structured); err != nil {
		return nil, 0, err
	}

	terms := pipeline.NewContractTerms()
	terms.Parties = append(terms.Parties, decoded.Parties...)
	terms.Amounts = append(terms.Amounts, decoded.Amounts...)
	terms.Dates = append(terms.Dates, decoded.Dates...)
	terms.Conditions = append(terms.Conditions, decoded.Conditions...)
	terms.LegalReferences = append(terms.LegalReferences, decoded.LegalReferences...)
	terms.PropertyAddress = decoded.PropertyAddress
	terms.CoolingOffWaived = decoded.CoolingOffWaived

	parsed := 0
	if len(terms.Parties) > 0 {
		parsed++
	}
	if len(terms.Amounts) > 0 {
		parsed++
	}
	if len(terms.Dates) > 0 {
		parsed++
	}
	if len(terms.Conditions) > 0 || len(terms.LegalReferences) > 0 {
		parsed++
	}
	return terms, parsed, nil
}

// agreementConfidence blends the model's self-reported confidence with the
// share of expected term groups the parser recovered.
func agreementConfidence(modelConfidence float64, parsedGroups int) float64 {
	agreement := float64(parsedGroups) / 4.0
	if modelConfidence <= 0 {
		return agreement
	}
	return 0.6*modelConfidence + 0.4*agreement
}
