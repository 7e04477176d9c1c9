package pipeline

import (
	"fmt"
	"sort"
)

// RiskCategory classifies a risk item.
type RiskCategory string

const (
	RiskFinancial  RiskCategory = "financial"
	RiskLegal      RiskCategory = "legal"
	RiskSettlement RiskCategory = "settlement"
	RiskTitle      RiskCategory = "title"
	RiskProperty   RiskCategory = "property"
	RiskCompliance RiskCategory = "compliance"
	RiskOther      RiskCategory = "other"
)

// Severity scores a risk or compliance issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank orders severities for sorting, most severe first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// EvidenceRef points from a derived finding back to the upstream data that
// justifies it.
type EvidenceRef struct {
	Step   Step   `json:"step"`
	Field  string `json:"field"`
	Detail string `json:"detail,omitempty"`
}

// Risk is one categorized, severity-scored finding. Construct with NewRisk:
// a risk with no evidence reference is invalid and rejected at construction.
type Risk struct {
	ID          string        `json:"id"`
	Category    RiskCategory  `json:"category"`
	Severity    Severity      `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Evidence    []EvidenceRef `json:"evidence"`
}

// NewRisk constructs a validated risk item. At least one evidence reference
// is mandatory.
func NewRisk(id string, category RiskCategory, severity Severity, title, description string, evidence ...EvidenceRef) (Risk, error) {
	if len(evidence) == 0 {
		return Risk{}, fmt.Errorf("risk %q: at least one evidence reference is required", id)
	}
	for _, ref := range evidence {
		if !ref.Step.Valid() {
			return Risk{}, fmt.Errorf("risk %q: evidence references unknown step %q", id, ref.Step)
		}
	}
	return Risk{
		ID:          id,
		Category:    category,
		Severity:    severity,
		Title:       title,
		Description: description,
		Evidence:    evidence,
	}, nil
}

// RiskAssessment is the output of assess_risks.
type RiskAssessment struct {
	Risks []Risk `json:"risks"`
}

// NewRiskAssessment returns an empty-but-typed assessment.
func NewRiskAssessment() *RiskAssessment {
	return &RiskAssessment{Risks: []Risk{}}
}

func (r *RiskAssessment) Empty() bool {
	return r == nil || r.Risks == nil
}

// BySeverity returns the risks sorted most severe first, preserving the
// original order within a severity.
func (r *RiskAssessment) BySeverity() []Risk {
	sorted := append([]Risk(nil), r.Risks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return severityRank[sorted[i].Severity] < severityRank[sorted[j].Severity]
	})
	return sorted
}

// Actionable returns risks of critical or high severity. Every one of these
// must be covered by at least one recommendation.
func (r *RiskAssessment) Actionable() []Risk {
	var out []Risk
	for _, risk := range r.Risks {
		if risk.Severity == SeverityCritical || risk.Severity == SeverityHigh {
			out = append(out, risk)
		}
	}
	return out
}
