// Package nodes implements the analysis nodes of the contract pipeline.
// Each node is a pure function of the workflow state and its collaborators:
// it reads prior results, does its work, and hands a classified NodeResult
// back to the orchestrator. Nodes never write to state.
package nodes

import (
	"context"

	"github.com/clearcontract-ai/pipeline"
)

// ValidateInput checks that the document reference resolves and that the
// run's classification metadata names recognized enum values. Failures here
// are always fatal; there is nothing to retry.
type ValidateInput struct {
	// Resolver optionally verifies the document reference points at real
	// content. When nil, only a non-empty reference is required.
	Resolver pipeline.DocumentResolver
}

func (n *ValidateInput) Step() pipeline.Step {
	return pipeline.StepValidateInput
}

func (n *ValidateInput) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	req := state.Request()
	if req.DocumentRef == "" {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(), "document reference is required"))
	}
	if n.Resolver != nil {
		if err := n.Resolver.Resolve(ctx, req.DocumentRef); err != nil {
			return pipeline.Fatal(pipeline.NewValidationError(n.Step(),
				"document reference %q does not resolve: %v", req.DocumentRef, err))
		}
	}

	jurisdiction, err := pipeline.ParseJurisdiction(req.Jurisdiction)
	if err != nil {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(), "%v", err))
	}
	contractType, err := pipeline.ParseContractType(req.ContractType)
	if err != nil {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(), "%v", err))
	}

	validation := &pipeline.InputValidation{
		DocumentRef:    req.DocumentRef,
		Jurisdiction:   jurisdiction,
		ContractType:   contractType,
		PurchaseMethod: parsePurchaseMethod(req.PurchaseMethod),
		UseCategory:    parseUseCategory(req.UseCategory),
	}
	return pipeline.Success(validation)
}

// parsePurchaseMethod defaults unknown values to private treaty, the
// overwhelmingly common case; the method only affects cooling-off analysis.
func parsePurchaseMethod(s string) pipeline.PurchaseMethod {
	switch pipeline.PurchaseMethod(s) {
	case pipeline.PurchaseAuction:
		return pipeline.PurchaseAuction
	case pipeline.PurchaseTender:
		return pipeline.PurchaseTender
	default:
		return pipeline.PurchasePrivateTreaty
	}
}

func parseUseCategory(s string) pipeline.UseCategory {
	switch pipeline.UseCategory(s) {
	case pipeline.UseCommercial:
		return pipeline.UseCommercial
	case pipeline.UseRural:
		return pipeline.UseRural
	default:
		return pipeline.UseResidential
	}
}
