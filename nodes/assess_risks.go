package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/clearcontract-ai/pipeline"
)

// shortSettlementDays is the threshold below which a settlement window is
// flagged as a timing risk.
const shortSettlementDays = 30

// AssessRisks aggregates signals from every prior analysis step into
// categorized, severity-scored risk items. Every risk cites evidence
// references into the upstream results it was derived from; the Risk
// constructor rejects evidence-free items, so nothing in the assessment can
// be unsubstantiated.
type AssessRisks struct{}

func (n *AssessRisks) Step() pipeline.Step {
	return pipeline.StepAssessRisks
}

func (n *AssessRisks) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	terms, err := state.Terms(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
	completeness, err := state.Completeness(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
	compliance, err := state.Compliance(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}

	assessment := pipeline.NewRiskAssessment()
	var buildErrs []error
	add := func(risk pipeline.Risk, err error) {
		if err != nil {
			buildErrs = append(buildErrs, err)
			return
		}
		assessment.Risks = append(assessment.Risks, risk)
	}
	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("risk-%03d", seq)
	}

	// Compliance gaps carry over directly, one risk per issue.
	for _, issue := range compliance.Issues {
		add(pipeline.NewRisk(nextID(), pipeline.RiskCompliance, issue.Severity,
			"Compliance gap: "+issue.Requirement,
			issue.Description,
			pipeline.EvidenceRef{
				Step:   pipeline.StepAnalyzeCompliance,
				Field:  issue.Requirement,
				Detail: issue.Description,
			}))
	}

	// Missing mandatory terms are legal risks; incomplete ones rate lower.
	for _, missing := range completeness.Missing {
		add(pipeline.NewRisk(nextID(), pipeline.RiskLegal, pipeline.SeverityHigh,
			"Missing mandatory term: "+missing,
			fmt.Sprintf("the contract does not state %s, which is mandatory in %s", missing, state.Jurisdiction()),
			pipeline.EvidenceRef{
				Step:  pipeline.StepValidateCompleteness,
				Field: missing,
			}))
	}
	for _, incomplete := range completeness.Incomplete {
		add(pipeline.NewRisk(nextID(), pipeline.RiskLegal, pipeline.SeverityMedium,
			"Incomplete term: "+incomplete,
			fmt.Sprintf("the contract states %s only partially", incomplete),
			pipeline.EvidenceRef{
				Step:  pipeline.StepValidateCompleteness,
				Field: incomplete,
			}))
	}

	// An unconditional purchase with no finance clause puts the deposit at
	// stake if the buyer's lending falls through.
	if !terms.HasCondition(pipeline.ConditionFinance) {
		if _, hasDeposit := terms.Amount(pipeline.AmountTypeDeposit); hasDeposit {
			add(pipeline.NewRisk(nextID(), pipeline.RiskFinancial, pipeline.SeverityHigh,
				"No finance condition",
				"the purchase is not subject to finance; the deposit is at risk if lending is declined",
				pipeline.EvidenceRef{
					Step:   pipeline.StepExtractTerms,
					Field:  "conditions",
					Detail: "no finance condition found",
				}))
		}
	}

	// A short settlement window compresses conveyancing and finance work.
	if settlement, ok := terms.Date(pipeline.DateTypeSettlement); ok {
		if contract, okContract := terms.Date(pipeline.DateTypeContract); okContract {
			if days, err := daysBetween(contract.Value, settlement.Value); err == nil && days > 0 && days < shortSettlementDays {
				add(pipeline.NewRisk(nextID(), pipeline.RiskSettlement, pipeline.SeverityMedium,
					"Short settlement window",
					fmt.Sprintf("only %d days between contract and settlement", days),
					pipeline.EvidenceRef{
						Step:   pipeline.StepExtractTerms,
						Field:  "dates",
						Detail: settlement.Value,
					}))
			}
		}
	}

	// Degraded document reads are a property-understanding risk: clauses on
	// unreadable pages were never analyzed.
	if doc, err := state.Document(n.Step()); err == nil && len(doc.FailedPages) > 0 {
		add(pipeline.NewRisk(nextID(), pipeline.RiskProperty, pipeline.SeverityMedium,
			"Unreadable pages",
			fmt.Sprintf("%d pages could not be extracted and were not analyzed", len(doc.FailedPages)),
			pipeline.EvidenceRef{
				Step:  pipeline.StepProcessDocument,
				Field: "failed_pages",
			}))
	}

	if len(buildErrs) > 0 {
		return pipeline.Fatal(pipeline.NewFatalError(n.Step(),
			fmt.Errorf("constructed invalid risk items: %v", buildErrs)))
	}

	return pipeline.SuccessWithConfidence(assessment, riskConfidence(completeness.Score))
}

// riskConfidence is driven by how complete the underlying terms were; an
// assessment over thin terms is worth less however many risks it found.
func riskConfidence(completenessScore float64) float64 {
	confidence := 0.6 + 0.4*completenessScore
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func daysBetween(from, to string) (int, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return 0, err
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return 0, err
	}
	return int(end.Sub(start).Hours() / 24), nil
}
