package pipeline

import (
	"sort"
	"time"
)

// Priority orders recommended actions by urgency.
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

var priorityRank = map[Priority]int{
	PriorityImmediate: 0,
	PriorityHigh:      1,
	PriorityMedium:    2,
	PriorityLow:       3,
}

// Recommendation is one action derived from risks and compliance gaps.
type Recommendation struct {
	ID        string   `json:"id"`
	Action    string   `json:"action"`
	Owner     string   `json:"owner"`
	Priority  Priority `json:"priority"`
	DueBy     string   `json:"due_by,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`
	RiskIDs   []string `json:"risk_ids"`
}

// ActionPlan is the output of generate_recommendations.
type ActionPlan struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// NewActionPlan returns an empty-but-typed plan.
func NewActionPlan() *ActionPlan {
	return &ActionPlan{Recommendations: []Recommendation{}}
}

func (p *ActionPlan) Empty() bool {
	return p == nil || p.Recommendations == nil
}

// ByUrgency returns the recommendations sorted most urgent first.
func (p *ActionPlan) ByUrgency() []Recommendation {
	sorted := append([]Recommendation(nil), p.Recommendations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityRank[sorted[i].Priority] < priorityRank[sorted[j].Priority]
	})
	return sorted
}

// Covers reports whether at least one recommendation references the given
// risk ID.
func (p *ActionPlan) Covers(riskID string) bool {
	for _, rec := range p.Recommendations {
		for _, id := range rec.RiskIDs {
			if id == riskID {
				return true
			}
		}
	}
	return false
}

// SectionSummary is a per-section digest in the final report.
type SectionSummary struct {
	Section string `json:"section"`
	Summary string `json:"summary"`
}

// Report is the final buyer-facing output of compile_report.
type Report struct {
	ID               string           `json:"id"`
	RunID            string           `json:"run_id"`
	Jurisdiction     Jurisdiction     `json:"jurisdiction"`
	ContractType     ContractType     `json:"contract_type"`
	ExecutiveSummary string           `json:"executive_summary"`
	Sections         []SectionSummary `json:"sections"`
	KeyRisks         []Risk           `json:"key_risks"`
	ActionPlan       []Recommendation `json:"action_plan"`
	Confidence       float64          `json:"overall_confidence"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

func (r *Report) Empty() bool {
	return r == nil || r.ID == ""
}
