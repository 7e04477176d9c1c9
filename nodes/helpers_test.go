package nodes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearcontract-ai/pipeline"
)

// newState returns a run state classified for NSW, as the validate_input
// step would have left it.
func newState(t *testing.T, req pipeline.RunRequest) *pipeline.WorkflowState {
	t.Helper()
	if req.DocumentRef == "" {
		req.DocumentRef = "contract.txt"
	}
	if req.Jurisdiction == "" {
		req.Jurisdiction = "NSW"
	}
	if req.ContractType == "" {
		req.ContractType = "purchase_agreement"
	}
	state := pipeline.NewWorkflowState("", req)
	jurisdiction, err := pipeline.ParseJurisdiction(req.Jurisdiction)
	require.NoError(t, err)
	contractType, err := pipeline.ParseContractType(req.ContractType)
	require.NoError(t, err)
	method := pipeline.PurchasePrivateTreaty
	if req.PurchaseMethod != "" {
		method = pipeline.PurchaseMethod(req.PurchaseMethod)
	}
	require.NoError(t, state.Complete(pipeline.StepValidateInput, &pipeline.InputValidation{
		DocumentRef:    req.DocumentRef,
		Jurisdiction:   jurisdiction,
		ContractType:   contractType,
		PurchaseMethod: method,
		UseCategory:    pipeline.UseResidential,
	}, 0, false))
	return state
}

func withDocument(t *testing.T, state *pipeline.WorkflowState, text string, confidence float64) {
	t.Helper()
	doc := pipeline.NewDocumentResult()
	doc.Text = text
	doc.Pages = append(doc.Pages, pipeline.PageResult{Number: 1, Text: text, Confidence: confidence})
	doc.Confidence = confidence
	require.NoError(t, state.Complete(pipeline.StepProcessDocument, doc, confidence, true))
}

func withTerms(t *testing.T, state *pipeline.WorkflowState, terms *pipeline.ContractTerms, confidence float64) {
	t.Helper()
	require.NoError(t, state.Complete(pipeline.StepExtractTerms, terms, confidence, true))
}

// fullTerms returns terms for a well-formed NSW purchase agreement.
func fullTerms() *pipeline.ContractTerms {
	terms := pipeline.NewContractTerms()
	terms.Parties = append(terms.Parties,
		pipeline.Party{Name: "Jane Vendor", Role: pipeline.PartyRoleSeller},
		pipeline.Party{Name: "Sam Buyer", Role: pipeline.PartyRoleBuyer})
	terms.Amounts = append(terms.Amounts,
		pipeline.FinancialAmount{Amount: 750000, Currency: "AUD", Type: pipeline.AmountTypePurchasePrice},
		pipeline.FinancialAmount{Amount: 75000, Currency: "AUD", Type: pipeline.AmountTypeDeposit})
	terms.Dates = append(terms.Dates,
		pipeline.KeyDate{Type: pipeline.DateTypeContract, Value: "2025-01-15"},
		pipeline.KeyDate{Type: pipeline.DateTypeSettlement, Value: "2025-03-01"})
	terms.Conditions = append(terms.Conditions,
		pipeline.Condition{Type: pipeline.ConditionFinance, Description: "subject to finance approval"})
	terms.PropertyAddress = "1 Example St, Sydney NSW 2000"
	return terms
}

// stubInvoker returns a canned model output, or a canned error.
type stubInvoker struct {
	output  *pipeline.ModelOutput
	err     error
	prompts []string
}

func (s *stubInvoker) Invoke(ctx context.Context, prompt string, schema pipeline.Schema) (*pipeline.ModelOutput, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

func defaultComposer() pipeline.PromptComposer {
	return pipeline.NewFragmentComposer(pipeline.DefaultPromptFragments())
}
