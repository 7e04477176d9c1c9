package pipeline

// StepResult is the structured output of one completed step. Empty reports
// whether the value is structurally absent: a typed container holding zero
// findings is not empty. The distinction matters for checkpoint validation,
// where an empty result disqualifies a step from being skipped on resume.
type StepResult interface {
	Empty() bool
}

// newStepResult returns a zero value of the concrete result type for step,
// used to decode checkpointed results back into typed form. The switch is
// exhaustive over the step enum.
func newStepResult(step Step) StepResult {
	switch step {
	case StepValidateInput:
		return &InputValidation{}
	case StepProcessDocument:
		return &DocumentResult{}
	case StepExtractTerms:
		return &ContractTerms{}
	case StepValidateQuality:
		return &QualityResult{}
	case StepValidateCompleteness:
		return &CompletenessResult{}
	case StepAnalyzeCompliance:
		return &ComplianceResult{}
	case StepAssessRisks:
		return &RiskAssessment{}
	case StepGenerateRecommendations:
		return &ActionPlan{}
	case StepCompileReport:
		return &Report{}
	}
	return nil
}

// InputValidation is the output of validate_input: the recognized
// classification metadata for the run.
type InputValidation struct {
	DocumentRef    string         `json:"document_ref"`
	Jurisdiction   Jurisdiction   `json:"jurisdiction"`
	ContractType   ContractType   `json:"contract_type"`
	PurchaseMethod PurchaseMethod `json:"purchase_method"`
	UseCategory    UseCategory    `json:"use_category"`
}

func (v *InputValidation) Empty() bool {
	return v == nil || v.DocumentRef == ""
}

// PageResult holds per-page output from document processing.
type PageResult struct {
	Number     int      `json:"number"`
	Text       string   `json:"text"`
	Diagrams   []string `json:"diagrams,omitempty"`
	Confidence float64  `json:"confidence"`
}

// DocumentResult is the output of process_document. Metadata is always a
// non-nil map so downstream lookups never hit an absent container.
type DocumentResult struct {
	Text        string            `json:"text"`
	Pages       []PageResult      `json:"pages"`
	Metadata    map[string]string `json:"document_metadata"`
	Confidence  float64           `json:"confidence"`
	FailedPages []int             `json:"failed_pages"`
}

// NewDocumentResult returns an empty-but-typed document result.
func NewDocumentResult() *DocumentResult {
	return &DocumentResult{
		Pages:       []PageResult{},
		Metadata:    map[string]string{},
		FailedPages: []int{},
	}
}

func (d *DocumentResult) Empty() bool {
	return d == nil || d.Metadata == nil
}

// QualityBand is the banded interpretation of an aggregate quality score.
type QualityBand string

const (
	QualityExcellent  QualityBand = "excellent"
	QualityGood       QualityBand = "good"
	QualityAcceptable QualityBand = "acceptable"
	QualityPoor       QualityBand = "poor"
	QualityVeryPoor   QualityBand = "very_poor"
)

// BandForScore maps an aggregate quality score to its band.
func BandForScore(score float64) QualityBand {
	switch {
	case score >= 0.9:
		return QualityExcellent
	case score >= 0.7:
		return QualityGood
	case score >= 0.55:
		return QualityAcceptable
	case score >= 0.4:
		return QualityPoor
	default:
		return QualityVeryPoor
	}
}

// QualityResult is the output of validate_document_quality. Each dimension
// is scored in [0,1].
type QualityResult struct {
	Clarity      float64     `json:"clarity"`
	Completeness float64     `json:"completeness"`
	Extraction   float64     `json:"extraction_confidence"`
	Aggregate    float64     `json:"aggregate"`
	Band         QualityBand `json:"band"`
}

func (q *QualityResult) Empty() bool {
	return q == nil || q.Band == ""
}

// CompletenessResult is the output of validate_terms_completeness.
type CompletenessResult struct {
	Score      float64  `json:"score"`
	Missing    []string `json:"missing"`
	Incomplete []string `json:"incomplete"`
}

// NewCompletenessResult returns an empty-but-typed completeness result.
func NewCompletenessResult() *CompletenessResult {
	return &CompletenessResult{Missing: []string{}, Incomplete: []string{}}
}

func (c *CompletenessResult) Empty() bool {
	return c == nil || c.Missing == nil || c.Incomplete == nil
}

// ComplianceIssue is one flagged gap between the contract and a
// jurisdiction-specific legal requirement.
type ComplianceIssue struct {
	Requirement string   `json:"requirement"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Reference   string   `json:"reference,omitempty"`
}

// ComplianceResult is the output of analyze_compliance.
type ComplianceResult struct {
	Jurisdiction   Jurisdiction      `json:"jurisdiction"`
	CoolingOffDays int               `json:"cooling_off_days"`
	Issues         []ComplianceIssue `json:"issues"`
}

// NewComplianceResult returns an empty-but-typed compliance result.
func NewComplianceResult(j Jurisdiction, coolingOffDays int) *ComplianceResult {
	return &ComplianceResult{
		Jurisdiction:   j,
		CoolingOffDays: coolingOffDays,
		Issues:         []ComplianceIssue{},
	}
}

func (c *ComplianceResult) Empty() bool {
	return c == nil || c.Issues == nil
}

// HasIssue reports whether an issue against the named requirement was found.
func (c *ComplianceResult) HasIssue(requirement string) bool {
	for _, issue := range c.Issues {
		if issue.Requirement == requirement {
			return true
		}
	}
	return false
}
