package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearcontract-ai/pipeline"
)

// CompileReport assembles the final buyer-facing report from every upstream
// result. It is the one node that requires all of them; a missing dependency
// here means an earlier step was skipped illegally and the run must halt.
type CompileReport struct {
	// Now supplies report timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (n *CompileReport) Step() pipeline.Step {
	return pipeline.StepCompileReport
}

func (n *CompileReport) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	doc, err := state.Document(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
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
	risks, err := state.Risks(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}
	plan, err := state.Plan(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	report := &pipeline.Report{
		ID:               uuid.NewString(),
		RunID:            state.RunID(),
		Jurisdiction:     state.Jurisdiction(),
		ContractType:     state.ContractType(),
		ExecutiveSummary: executiveSummary(state, terms, risks),
		Sections: []pipeline.SectionSummary{
			documentSection(doc, state.Quality()),
			termsSection(terms, completeness),
			complianceSection(compliance),
			riskSection(risks),
		},
		KeyRisks:    risks.BySeverity(),
		ActionPlan:  plan.ByUrgency(),
		Confidence:  state.OverallConfidence(),
		GeneratedAt: now().UTC(),
	}
	return pipeline.Success(report)
}

func executiveSummary(state *pipeline.WorkflowState, terms *pipeline.ContractTerms, risks *pipeline.RiskAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review of a %s %s contract.", state.Jurisdiction(), state.ContractType())
	if price, ok := terms.Amount(pipeline.AmountTypePurchasePrice); ok {
		fmt.Fprintf(&b, " Purchase price %s.", formatAmount(price))
	}
	if settlement, ok := terms.Date(pipeline.DateTypeSettlement); ok {
		fmt.Fprintf(&b, " Settlement due %s.", settlement.Value)
	}
	critical, high := 0, 0
	for _, risk := range risks.Risks {
		switch risk.Severity {
		case pipeline.SeverityCritical:
			critical++
		case pipeline.SeverityHigh:
			high++
		}
	}
	switch {
	case critical > 0:
		fmt.Fprintf(&b, " %d critical and %d high risks require action before proceeding.", critical, high)
	case high > 0:
		fmt.Fprintf(&b, " %d high risks require attention before exchange.", high)
	case len(risks.Risks) > 0:
		fmt.Fprintf(&b, " %d lower-severity items noted; no blockers identified.", len(risks.Risks))
	default:
		b.WriteString(" No material risks identified.")
	}
	return b.String()
}

func documentSection(doc *pipeline.DocumentResult, quality *pipeline.QualityResult) pipeline.SectionSummary {
	summary := fmt.Sprintf("%d pages processed", len(doc.Pages))
	if len(doc.FailedPages) > 0 {
		summary += fmt.Sprintf(", %d unreadable", len(doc.FailedPages))
	}
	if quality != nil {
		summary += fmt.Sprintf("; extraction quality rated %s", quality.Band)
	}
	return pipeline.SectionSummary{Section: "document", Summary: summary + "."}
}

func termsSection(terms *pipeline.ContractTerms, completeness *pipeline.CompletenessResult) pipeline.SectionSummary {
	summary := fmt.Sprintf("%d terms extracted; completeness %.0f%%", terms.TermCount(), completeness.Score*100)
	if len(completeness.Missing) > 0 {
		summary += "; missing " + strings.Join(completeness.Missing, ", ")
	}
	return pipeline.SectionSummary{Section: "terms", Summary: summary + "."}
}

func complianceSection(compliance *pipeline.ComplianceResult) pipeline.SectionSummary {
	if len(compliance.Issues) == 0 {
		return pipeline.SectionSummary{Section: "compliance", Summary: "No statutory compliance issues identified."}
	}
	names := make([]string, 0, len(compliance.Issues))
	for _, issue := range compliance.Issues {
		names = append(names, issue.Requirement)
	}
	return pipeline.SectionSummary{
		Section: "compliance",
		Summary: fmt.Sprintf("%d issues: %s.", len(compliance.Issues), strings.Join(names, ", ")),
	}
}

func riskSection(risks *pipeline.RiskAssessment) pipeline.SectionSummary {
	if len(risks.Risks) == 0 {
		return pipeline.SectionSummary{Section: "risks", Summary: "No risks identified."}
	}
	counts := map[pipeline.Severity]int{}
	for _, risk := range risks.Risks {
		counts[risk.Severity]++
	}
	return pipeline.SectionSummary{
		Section: "risks",
		Summary: fmt.Sprintf("%d risks (%d critical, %d high, %d medium, %d low).",
			len(risks.Risks),
			counts[pipeline.SeverityCritical], counts[pipeline.SeverityHigh],
			counts[pipeline.SeverityMedium], counts[pipeline.SeverityLow]),
	}
}

func formatAmount(a pipeline.FinancialAmount) string {
	return fmt.Sprintf("%s %s", a.Currency, groupThousands(a.Amount))
}

func groupThousands(v int64) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}
