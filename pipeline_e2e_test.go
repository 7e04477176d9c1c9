package pipeline_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/clearcontract-ai/pipeline"
	"github.com/clearcontract-ai/pipeline/extract"
	"github.com/clearcontract-ai/pipeline/nodes"
)

const nswContract = `Contract for the sale of land in New South Wales.
Dated 15 January 2025.
Vendor: Jane Citizen
Purchaser: Sam Buyer
Property: 1 Example St, Sydney NSW 2000
Purchase price: $750,000
Deposit: $75,000 payable on exchange
Settlement date: 2025-03-01
This contract is subject to finance approval.
Attached disclosure documents: title search, zoning certificate, sewer diagram.`

func newOfflinePipeline(t *testing.T, checkpointer pipeline.Checkpointer) *pipeline.Orchestrator {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/contract.txt", []byte(nswContract), 0o644))
	extractor := extract.NewFileExtractorFs(fs)
	composer := pipeline.NewFragmentComposer(pipeline.DefaultPromptFragments())
	rules := pipeline.DefaultRules()

	orchestrator, err := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Nodes: []pipeline.Node{
			&nodes.ValidateInput{Resolver: extractor},
			&nodes.ProcessDocument{Extractor: extractor},
			&nodes.ExtractTerms{Composer: composer, Invoker: &extract.OfflineInvoker{}},
			&nodes.ValidateQuality{},
			&nodes.ValidateCompleteness{Rules: rules},
			&nodes.AnalyzeCompliance{Rules: rules},
			&nodes.AssessRisks{},
			&nodes.GenerateRecommendations{},
			&nodes.CompileReport{},
		},
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	return orchestrator
}

func TestOfflinePipelineEndToEnd(t *testing.T) {
	checkpointer := pipeline.NewMemoryCheckpointer()
	orchestrator := newOfflinePipeline(t, checkpointer)

	state := pipeline.NewWorkflowState("", pipeline.RunRequest{
		DocumentRef:       "/docs/contract.txt",
		Jurisdiction:      "nsw",
		ContractType:      "purchase_agreement",
		QualityValidation: true,
	})

	final, err := orchestrator.Run(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, final.Status())
	require.Equal(t, 100, final.Progress())
	require.Empty(t, final.Warnings())

	terms, err := final.Terms(pipeline.StepCompileReport)
	require.NoError(t, err)
	price, ok := terms.Amount(pipeline.AmountTypePurchasePrice)
	require.True(t, ok)
	require.Equal(t, int64(750000), price.Amount)
	require.Equal(t, "AUD", price.Currency)
	settlement, ok := terms.Date(pipeline.DateTypeSettlement)
	require.True(t, ok)
	require.Equal(t, "2025-03-01", settlement.Value)
	require.True(t, terms.HasCondition(pipeline.ConditionFinance))
	require.False(t, terms.CoolingOffWaived)

	compliance, err := final.Compliance(pipeline.StepCompileReport)
	require.NoError(t, err)
	require.Empty(t, compliance.Issues)

	report, err := final.Report()
	require.NoError(t, err)
	require.Equal(t, pipeline.JurisdictionNSW, report.Jurisdiction)
	require.Contains(t, report.ExecutiveSummary, "AUD 750,000")
	require.Greater(t, report.Confidence, 0.7)

	// Every recommendation in the plan references risks that exist.
	risks, err := final.Risks(pipeline.StepCompileReport)
	require.NoError(t, err)
	known := map[string]bool{}
	for _, risk := range risks.Risks {
		known[risk.ID] = true
	}
	for _, rec := range report.ActionPlan {
		for _, id := range rec.RiskIDs {
			require.True(t, known[id], "recommendation %s cites unknown risk %s", rec.ID, id)
		}
	}

	// The terminal checkpoint is durable and marks the run complete.
	checkpoint, err := checkpointer.LoadLatest(context.Background(), final.RunID())
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, checkpoint.Status)
	require.Equal(t, 100, checkpoint.Progress)
}

func TestOfflinePipelineWaivedCoolingOff(t *testing.T) {
	fs := afero.NewMemMapFs()
	waived := nswContract + "\nThe cooling-off period is waived under a certificate given under section 66W."
	require.NoError(t, afero.WriteFile(fs, "/docs/contract.txt", []byte(waived), 0o644))
	extractor := extract.NewFileExtractorFs(fs)
	composer := pipeline.NewFragmentComposer(pipeline.DefaultPromptFragments())
	rules := pipeline.DefaultRules()

	orchestrator, err := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Nodes: []pipeline.Node{
			&nodes.ValidateInput{Resolver: extractor},
			&nodes.ProcessDocument{Extractor: extractor},
			&nodes.ExtractTerms{Composer: composer, Invoker: &extract.OfflineInvoker{}},
			&nodes.ValidateQuality{},
			&nodes.ValidateCompleteness{Rules: rules},
			&nodes.AnalyzeCompliance{Rules: rules},
			&nodes.AssessRisks{},
			&nodes.GenerateRecommendations{},
			&nodes.CompileReport{},
		},
	})
	require.NoError(t, err)

	state := pipeline.NewWorkflowState("", pipeline.RunRequest{
		DocumentRef:       "/docs/contract.txt",
		Jurisdiction:      "NSW",
		ContractType:      "purchase_agreement",
		QualityValidation: true,
	})

	final, err := orchestrator.Run(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, final.Status())

	compliance, err := final.Compliance(pipeline.StepCompileReport)
	require.NoError(t, err)
	require.True(t, compliance.HasIssue("cooling_off_period"))

	// The waiver surfaces as a high risk with a matching recommendation.
	risks, err := final.Risks(pipeline.StepCompileReport)
	require.NoError(t, err)
	var waiverRisk *pipeline.Risk
	for i, risk := range risks.Risks {
		if risk.Category == pipeline.RiskCompliance {
			waiverRisk = &risks.Risks[i]
		}
	}
	require.NotNil(t, waiverRisk)
	require.Equal(t, pipeline.SeverityHigh, waiverRisk.Severity)

	report, err := final.Report()
	require.NoError(t, err)
	require.NotEmpty(t, report.ActionPlan)
	covered := false
	for _, rec := range report.ActionPlan {
		for _, id := range rec.RiskIDs {
			if id == waiverRisk.ID {
				covered = true
			}
		}
	}
	require.True(t, covered, "waiver risk has no recommendation")
}

func TestOfflinePipelineResumeAfterInterrupt(t *testing.T) {
	checkpointer := pipeline.NewMemoryCheckpointer()
	orchestrator := newOfflinePipeline(t, checkpointer)

	state := pipeline.NewWorkflowState("", pipeline.RunRequest{
		DocumentRef:       "/docs/contract.txt",
		Jurisdiction:      "nsw",
		ContractType:      "purchase_agreement",
		QualityValidation: true,
	})
	runID := state.RunID()

	// Cancel mid-run, at the first step boundary after term extraction.
	ctx, cancel := context.WithCancel(context.Background())
	cancels := pipeline.NotifierFunc(func(_ context.Context, update pipeline.ProgressUpdate) {
		if update.Step == pipeline.StepExtractTerms {
			cancel()
		}
	})
	interrupted := newOfflinePipelineWithNotifier(t, checkpointer, cancels)
	mid, err := interrupted.Run(ctx, state)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCancelled, mid.Status())

	final, err := orchestrator.Resume(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, final.Status())
	require.Equal(t, runID, final.RunID())

	report, err := final.Report()
	require.NoError(t, err)
	require.Contains(t, report.ExecutiveSummary, "AUD 750,000")
}

func newOfflinePipelineWithNotifier(t *testing.T, checkpointer pipeline.Checkpointer, notifier pipeline.ProgressNotifier) *pipeline.Orchestrator {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/contract.txt", []byte(nswContract), 0o644))
	extractor := extract.NewFileExtractorFs(fs)
	composer := pipeline.NewFragmentComposer(pipeline.DefaultPromptFragments())
	rules := pipeline.DefaultRules()

	orchestrator, err := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Nodes: []pipeline.Node{
			&nodes.ValidateInput{Resolver: extractor},
			&nodes.ProcessDocument{Extractor: extractor},
			&nodes.ExtractTerms{Composer: composer, Invoker: &extract.OfflineInvoker{}},
			&nodes.ValidateQuality{},
			&nodes.ValidateCompleteness{Rules: rules},
			&nodes.AnalyzeCompliance{Rules: rules},
			&nodes.AssessRisks{},
			&nodes.GenerateRecommendations{},
			&nodes.CompileReport{},
		},
		Checkpointer: checkpointer,
		Notifier:     notifier,
	})
	require.NoError(t, err)
	return orchestrator
}
