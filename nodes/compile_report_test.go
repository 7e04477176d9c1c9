package nodes_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clearcontract-ai/pipeline"
	"github.com/clearcontract-ai/pipeline/nodes"
)

func TestCompileReport(t *testing.T) {
	fixed := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
	node := &nodes.CompileReport{Now: func() time.Time { return fixed }}

	state := newState(t, pipeline.RunRequest{})
	withDocument(t, state, "contract text", 0.9)
	withTerms(t, state, fullTerms(), 0.85)
	withAnalysis(t, state, cleanCompleteness(), pipeline.NewComplianceResult(pipeline.JurisdictionNSW, 5))
	withRisks(t, state,
		mustRisk(t, "risk-001", pipeline.RiskFinancial, pipeline.SeverityHigh, "No finance condition"),
		mustRisk(t, "risk-002", pipeline.RiskProperty, pipeline.SeverityMedium, "Unreadable pages"),
	)
	plan := pipeline.NewActionPlan()
	plan.Recommendations = append(plan.Recommendations,
		pipeline.Recommendation{ID: "rec-001", Action: "Review", Owner: "buyer", Priority: pipeline.PriorityMedium},
		pipeline.Recommendation{ID: "rec-002", Action: "Confirm financing", Owner: "buyer", Priority: pipeline.PriorityHigh, RiskIDs: []string{"risk-001"}},
	)
	require.NoError(t, state.Complete(pipeline.StepGenerateRecommendations, plan, 0, false))

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)
	require.False(t, result.Scored)

	report := result.Output.(*pipeline.Report)
	require.NotEmpty(t, report.ID)
	require.Equal(t, state.RunID(), report.RunID)
	require.Equal(t, pipeline.JurisdictionNSW, report.Jurisdiction)
	require.Equal(t, fixed, report.GeneratedAt)

	require.Contains(t, report.ExecutiveSummary, "NSW")
	require.Contains(t, report.ExecutiveSummary, "AUD 750,000")
	require.Contains(t, report.ExecutiveSummary, "2025-03-01")
	require.Contains(t, report.ExecutiveSummary, "1 high risks")

	sections := map[string]string{}
	for _, section := range report.Sections {
		sections[section.Section] = section.Summary
	}
	require.Contains(t, sections, "document")
	require.Contains(t, sections, "terms")
	require.Contains(t, sections, "compliance")
	require.Contains(t, sections, "risks")
	require.Contains(t, sections["compliance"], "No statutory compliance issues")
	require.Contains(t, sections["risks"], "1 high")

	// Key risks come back most severe first.
	require.Len(t, report.KeyRisks, 2)
	require.Equal(t, "risk-001", report.KeyRisks[0].ID)

	// The action plan is sorted most urgent first.
	require.Len(t, report.ActionPlan, 2)
	require.Equal(t, "rec-002", report.ActionPlan[0].ID)

	require.InDelta(t, state.OverallConfidence(), report.Confidence, 1e-9)
}

func TestCompileReportMissingDependencyIsFatal(t *testing.T) {
	node := &nodes.CompileReport{}
	state := newState(t, pipeline.RunRequest{})
	withDocument(t, state, "contract text", 0.9)
	withTerms(t, state, fullTerms(), 0.85)
	// Completeness, compliance, risks and the plan are all absent.

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
	require.Equal(t, pipeline.ErrorKindMissingDependency, result.Err.Kind)
}

func TestCompileReportFormatsLargeAmounts(t *testing.T) {
	node := &nodes.CompileReport{}
	state := newState(t, pipeline.RunRequest{})
	withDocument(t, state, "contract text", 0.9)

	terms := fullTerms()
	for i, amount := range terms.Amounts {
		if amount.Type == pipeline.AmountTypePurchasePrice {
			terms.Amounts[i].Amount = 1250000
		}
	}
	withTerms(t, state, terms, 0.85)
	withAnalysis(t, state, cleanCompleteness(), pipeline.NewComplianceResult(pipeline.JurisdictionNSW, 5))
	withRisks(t, state)
	require.NoError(t, state.Complete(pipeline.StepGenerateRecommendations, pipeline.NewActionPlan(), 0, false))

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)
	report := result.Output.(*pipeline.Report)
	require.Contains(t, report.ExecutiveSummary, "AUD 1,250,000")
	require.Contains(t, report.ExecutiveSummary, "No material risks identified")
}
