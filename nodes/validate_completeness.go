package nodes

import (
	"context"

	"github.com/clearcontract-ai/pipeline"
)

// ValidateCompleteness checks that the mandatory term fields for the run's
// jurisdiction are present in the extracted terms. A contract from which no
// terms at all were extracted cannot be analyzed and is fatal.
type ValidateCompleteness struct {
	Rules *pipeline.RuleSet
}

func (n *ValidateCompleteness) Step() pipeline.Step {
	return pipeline.StepValidateCompleteness
}

func (n *ValidateCompleteness) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	terms, err := state.Terms(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
	if terms.TermCount() == 0 {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(), "no terms were extracted"))
	}
	rules, ok := n.Rules.For(state.Jurisdiction())
	if !ok {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(),
			"no rules defined for jurisdiction %s", state.Jurisdiction()))
	}

	result := pipeline.NewCompletenessResult()
	for _, required := range rules.MandatoryTerms {
		switch termPresence(terms, required) {
		case presenceMissing:
			result.Missing = append(result.Missing, required)
		case presencePartial:
			result.Incomplete = append(result.Incomplete, required)
		}
	}
	found := len(rules.MandatoryTerms) - len(result.Missing)
	if len(rules.MandatoryTerms) > 0 {
		result.Score = float64(found) / float64(len(rules.MandatoryTerms))
	} else {
		result.Score = 1
	}
	return pipeline.Success(result)
}

type presence int

const (
	presenceFound presence = iota
	presencePartial
	presenceMissing
)

// termPresence maps a mandatory-term name from the rule file onto the typed
// term containers.
func termPresence(terms *pipeline.ContractTerms, required string) presence {
	switch required {
	case "parties":
		hasBuyer, hasSeller := false, false
		for _, party := range terms.Parties {
			switch party.Role {
			case pipeline.PartyRoleBuyer:
				hasBuyer = true
			case pipeline.PartyRoleSeller:
				hasSeller = true
			}
		}
		if hasBuyer && hasSeller {
			return presenceFound
		}
		if hasBuyer || hasSeller {
			return presencePartial
		}
		return presenceMissing
	case "purchase_price":
		if _, ok := terms.Amount(pipeline.AmountTypePurchasePrice); ok {
			return presenceFound
		}
		return presenceMissing
	case "deposit":
		if _, ok := terms.Amount(pipeline.AmountTypeDeposit); ok {
			return presenceFound
		}
		return presenceMissing
	case "settlement_date":
		if _, ok := terms.Date(pipeline.DateTypeSettlement); ok {
			return presenceFound
		}
		return presenceMissing
	case "property_address":
		if terms.PropertyAddress != "" {
			return presenceFound
		}
		return presenceMissing
	default:
		// Unknown rule entries are reported as missing rather than silently
		// accepted, so a typo in the rule file surfaces in results.
		return presenceMissing
	}
}
