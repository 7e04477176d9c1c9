package pipeline

// Step identifies one node of the contract analysis pipeline. The set is
// closed: adding a node means adding its constant here, slotting it into
// stepOrder, and registering its result type in newStepResult. Switches over
// Step are written exhaustively so a missing case is caught in review.
type Step string

const (
	StepValidateInput           Step = "validate_input"
	StepProcessDocument         Step = "process_document"
	StepExtractTerms            Step = "extract_terms"
	StepValidateQuality         Step = "validate_document_quality"
	StepValidateCompleteness    Step = "validate_terms_completeness"
	StepAnalyzeCompliance       Step = "analyze_compliance"
	StepAssessRisks             Step = "assess_risks"
	StepGenerateRecommendations Step = "generate_recommendations"
	StepCompileReport           Step = "compile_report"
)

// stepOrder is the fixed execution order including the optional quality
// validation step.
var stepOrder = []Step{
	StepValidateInput,
	StepProcessDocument,
	StepExtractTerms,
	StepValidateQuality,
	StepValidateCompleteness,
	StepAnalyzeCompliance,
	StepAssessRisks,
	StepGenerateRecommendations,
	StepCompileReport,
}

// stepProgress maps each step to the progress percentage reported once that
// step completes. When quality validation is disabled its entry is simply
// never reported: the sequence jumps from extract_terms (35) straight to
// validate_terms_completeness (55). Later percentages do not shift.
var stepProgress = map[Step]int{
	StepValidateInput:           5,
	StepProcessDocument:         20,
	StepExtractTerms:            35,
	StepValidateQuality:         45,
	StepValidateCompleteness:    55,
	StepAnalyzeCompliance:       70,
	StepAssessRisks:             80,
	StepGenerateRecommendations: 90,
	StepCompileReport:           100,
}

var stepDescriptions = map[Step]string{
	StepValidateInput:           "Validating document and classification metadata",
	StepProcessDocument:         "Extracting text from document",
	StepExtractTerms:            "Extracting contract terms",
	StepValidateQuality:         "Scoring document quality",
	StepValidateCompleteness:    "Checking mandatory terms",
	StepAnalyzeCompliance:       "Analyzing legal compliance",
	StepAssessRisks:             "Assessing risks",
	StepGenerateRecommendations: "Generating recommendations",
	StepCompileReport:           "Compiling final report",
}

// StepOrder returns the execution order for a run. Quality validation is the
// only optional step; when disabled it is omitted entirely.
func StepOrder(qualityValidation bool) []Step {
	if qualityValidation {
		return append([]Step(nil), stepOrder...)
	}
	steps := make([]Step, 0, len(stepOrder)-1)
	for _, s := range stepOrder {
		if s == StepValidateQuality {
			continue
		}
		steps = append(steps, s)
	}
	return steps
}

// Progress returns the percentage reported when the given step completes.
func (s Step) Progress() int {
	return stepProgress[s]
}

// Description returns the human-readable description emitted with progress
// updates for this step.
func (s Step) Description() string {
	return stepDescriptions[s]
}

// Valid reports whether s names a known pipeline step.
func (s Step) Valid() bool {
	_, ok := stepProgress[s]
	return ok
}

// stepIndex returns the position of s within the given order, or -1.
func stepIndex(order []Step, s Step) int {
	for i, candidate := range order {
		if candidate == s {
			return i
		}
	}
	return -1
}
