package nodes

import (
	"context"
	"strings"

	"github.com/clearcontract-ai/pipeline"
)

// Requirement names used in compliance issues. Downstream risk assessment
// keys off these.
const (
	RequirementCoolingOff = "cooling_off_period"
	RequirementDisclosure = "vendor_disclosure"
	RequirementDeposit    = "deposit_limit"
)

// AnalyzeCompliance cross-references the extracted terms against the
// jurisdiction's legal requirements and flags gaps: an improperly waived or
// absent cooling-off period, missing vendor disclosure documents, and a
// deposit above the customary ceiling.
type AnalyzeCompliance struct {
	Rules *pipeline.RuleSet
}

func (n *AnalyzeCompliance) Step() pipeline.Step {
	return pipeline.StepAnalyzeCompliance
}

func (n *AnalyzeCompliance) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	terms, err := state.Terms(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
	doc, err := state.Document(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
	rules, ok := n.Rules.For(state.Jurisdiction())
	if !ok {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(),
			"no rules defined for jurisdiction %s", state.Jurisdiction()))
	}

	result := pipeline.NewComplianceResult(state.Jurisdiction(), rules.CoolingOffDays)
	n.checkCoolingOff(state, terms, rules, result)
	n.checkDisclosure(doc, terms, rules, result)
	n.checkDeposit(terms, rules, result)

	// Compliance confidence reflects how much of the contract the checks
	// could actually see, not how many issues were found.
	confidence := 0.9
	if _, ok := terms.Amount(pipeline.AmountTypePurchasePrice); !ok {
		confidence -= 0.2
	}
	if len(doc.FailedPages) > 0 {
		confidence -= 0.1
	}
	return pipeline.SuccessWithConfidence(result, confidence)
}

func (n *AnalyzeCompliance) checkCoolingOff(state *pipeline.WorkflowState, terms *pipeline.ContractTerms, rules pipeline.JurisdictionRules, result *pipeline.ComplianceResult) {
	if rules.CoolingOffDays == 0 {
		return // jurisdiction has no statutory cooling-off period
	}
	atAuction := state.PurchaseMethod() == pipeline.PurchaseAuction
	if atAuction && !rules.CoolingOffAtAuction {
		return
	}
	if terms.CoolingOffWaived {
		if !rules.CoolingOffWaivable {
			result.Issues = append(result.Issues, pipeline.ComplianceIssue{
				Requirement: RequirementCoolingOff,
				Severity:    pipeline.SeverityCritical,
				Description: "contract waives the cooling-off period, but it cannot be waived in " + string(result.Jurisdiction),
			})
		} else {
			result.Issues = append(result.Issues, pipeline.ComplianceIssue{
				Requirement: RequirementCoolingOff,
				Severity:    pipeline.SeverityHigh,
				Description: "cooling-off period has been waived; the buyer loses the statutory withdrawal right",
			})
		}
	}
	// No waiver: the statutory default applies and nothing is flagged.
}

func (n *AnalyzeCompliance) checkDisclosure(doc *pipeline.DocumentResult, terms *pipeline.ContractTerms, rules pipeline.JurisdictionRules, result *pipeline.ComplianceResult) {
	haystack := strings.ToLower(doc.Text + " " + strings.Join(terms.LegalReferences, " "))
	for _, required := range rules.DisclosureDocuments {
		// Rule entries may carry trailing commentary after a '#'.
		name := strings.TrimSpace(strings.SplitN(required, "#", 2)[0])
		if name == "" {
			continue
		}
		if !strings.Contains(haystack, strings.ToLower(name)) {
			result.Issues = append(result.Issues, pipeline.ComplianceIssue{
				Requirement: RequirementDisclosure,
				Severity:    pipeline.SeverityHigh,
				Description: "required disclosure document not referenced: " + name,
				Reference:   name,
			})
		}
	}
}

func (n *AnalyzeCompliance) checkDeposit(terms *pipeline.ContractTerms, rules pipeline.JurisdictionRules, result *pipeline.ComplianceResult) {
	if rules.MaxDepositPercent <= 0 {
		return
	}
	price, okPrice := terms.Amount(pipeline.AmountTypePurchasePrice)
	deposit, okDeposit := terms.Amount(pipeline.AmountTypeDeposit)
	if !okPrice || !okDeposit || price.Amount == 0 {
		return
	}
	percent := float64(deposit.Amount) / float64(price.Amount) * 100
	if percent > rules.MaxDepositPercent {
		result.Issues = append(result.Issues, pipeline.ComplianceIssue{
			Requirement: RequirementDeposit,
			Severity:    pipeline.SeverityMedium,
			Description: "deposit exceeds the customary ceiling for the jurisdiction",
		})
	}
}
