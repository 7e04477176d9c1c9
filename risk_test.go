package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRiskRequiresEvidence(t *testing.T) {
	_, err := NewRisk("r1", RiskFinancial, SeverityHigh, "No finance condition", "deposit at risk")
	require.Error(t, err)

	_, err = NewRisk("r2", RiskLegal, SeverityMedium, "Bad evidence", "x",
		EvidenceRef{Step: Step("nonexistent"), Field: "terms"})
	require.Error(t, err)

	risk, err := NewRisk("r3", RiskCompliance, SeverityCritical, "Cooling-off waived", "statutory period waived",
		EvidenceRef{Step: StepAnalyzeCompliance, Field: "cooling_off", Detail: "waiver present, not waivable"},
		EvidenceRef{Step: StepExtractTerms, Field: "cooling_off_waived"})
	require.NoError(t, err)
	require.Len(t, risk.Evidence, 2)
	require.Equal(t, SeverityCritical, risk.Severity)
}

func TestRiskAssessmentOrdering(t *testing.T) {
	assessment := NewRiskAssessment()
	evidence := EvidenceRef{Step: StepExtractTerms, Field: "amounts"}
	for _, item := range []struct {
		id       string
		severity Severity
	}{
		{"low-1", SeverityLow},
		{"high-1", SeverityHigh},
		{"crit-1", SeverityCritical},
		{"med-1", SeverityMedium},
		{"high-2", SeverityHigh},
	} {
		risk, err := NewRisk(item.id, RiskOther, item.severity, item.id, "", evidence)
		require.NoError(t, err)
		assessment.Risks = append(assessment.Risks, risk)
	}

	sorted := assessment.BySeverity()
	ids := make([]string, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	// Stable within a severity band.
	require.Equal(t, []string{"crit-1", "high-1", "high-2", "med-1", "low-1"}, ids)

	actionable := assessment.Actionable()
	require.Len(t, actionable, 3)
	for _, risk := range actionable {
		require.Contains(t, []Severity{SeverityCritical, SeverityHigh}, risk.Severity)
	}
}
