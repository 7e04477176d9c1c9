package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/clearcontract-ai/pipeline"
)

// GenerateRecommendations turns the risk assessment into a prioritized
// action plan. Every critical or high risk yields at least one
// recommendation; lower severities are advisory and may be grouped.
type GenerateRecommendations struct{}

func (n *GenerateRecommendations) Step() pipeline.Step {
	return pipeline.StepGenerateRecommendations
}

func (n *GenerateRecommendations) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	risks, err := state.Risks(n.Step())
	if err != nil {
		return pipeline.Fatal(pipeline.ClassifyError(n.Step(), err))
	}

	plan := pipeline.NewActionPlan()
	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("rec-%03d", seq)
	}

	var advisory []string
	for _, risk := range risks.Risks {
		switch risk.Severity {
		case pipeline.SeverityCritical, pipeline.SeverityHigh:
			plan.Recommendations = append(plan.Recommendations, recommendFor(nextID(), risk))
		case pipeline.SeverityMedium:
			plan.Recommendations = append(plan.Recommendations, pipeline.Recommendation{
				ID:       nextID(),
				Action:   "Review and resolve: " + risk.Title,
				Owner:    ownerFor(risk.Category),
				Priority: pipeline.PriorityMedium,
				RiskIDs:  []string{risk.ID},
			})
		default:
			advisory = append(advisory, risk.Title)
		}
	}
	if len(advisory) > 0 {
		plan.Recommendations = append(plan.Recommendations, pipeline.Recommendation{
			ID:       nextID(),
			Action:   "Note low-severity items for the buyer's records: " + strings.Join(advisory, "; "),
			Owner:    "buyer",
			Priority: pipeline.PriorityLow,
		})
	}

	return pipeline.Success(plan)
}

func recommendFor(id string, risk pipeline.Risk) pipeline.Recommendation {
	priority := pipeline.PriorityHigh
	dueBy := "before exchange"
	if risk.Severity == pipeline.SeverityCritical {
		priority = pipeline.PriorityImmediate
		dueBy = "before signing"
	}
	return pipeline.Recommendation{
		ID:       id,
		Action:   actionFor(risk),
		Owner:    ownerFor(risk.Category),
		Priority: priority,
		DueBy:    dueBy,
		RiskIDs:  []string{risk.ID},
	}
}

func actionFor(risk pipeline.Risk) string {
	switch risk.Category {
	case pipeline.RiskCompliance:
		return "Seek legal advice on: " + risk.Title
	case pipeline.RiskLegal:
		return "Have the contract amended to address: " + risk.Title
	case pipeline.RiskFinancial:
		return "Confirm financing arrangements: " + risk.Title
	case pipeline.RiskSettlement:
		return "Negotiate the settlement timeline: " + risk.Title
	default:
		return "Investigate: " + risk.Title
	}
}

func ownerFor(category pipeline.RiskCategory) string {
	switch category {
	case pipeline.RiskCompliance, pipeline.RiskLegal, pipeline.RiskTitle:
		return "conveyancer"
	case pipeline.RiskFinancial:
		return "buyer"
	default:
		return "buyer"
	}
}
