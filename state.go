package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewRunID returns a new prefixed unique identifier for a run.
func NewRunID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// RunStatus is the lifecycle status of one analysis run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunError is one recorded failure. The errors list on a state is
// append-only and preserves chronological order.
type RunError struct {
	Step      Step      `json:"step"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunRequest is the caller-supplied input for one run. Classification fields
// are raw strings; validate_input parses them into the closed enums.
type RunRequest struct {
	DocumentRef       string `json:"document_ref"`
	Jurisdiction      string `json:"jurisdiction"`
	ContractType      string `json:"contract_type"`
	PurchaseMethod    string `json:"purchase_method"`
	UseCategory       string `json:"use_category"`
	QualityValidation bool   `json:"quality_validation"`
}

// WorkflowState is the canonical record for one analysis run. It is created
// once at run start, mutated only through the orchestrator's single write
// path, and snapshotted to a Checkpoint after each successful step. All
// methods are safe for concurrent readers.
type WorkflowState struct {
	mutex sync.RWMutex

	runID   string
	request RunRequest

	// Classification metadata, set once by the validate_input result and
	// read-only afterward.
	jurisdiction   Jurisdiction
	contractType   ContractType
	purchaseMethod PurchaseMethod
	useCategory    UseCategory

	status      RunStatus
	currentStep Step
	progress    int

	results     map[Step]StepResult
	confidence  map[Step]float64
	errs        []RunError
	warnings    []string
	retryCounts map[Step]int
	overall     float64

	checkpointVersion int
	cancelRequested   bool

	startTime time.Time
	endTime   time.Time
}

// NewWorkflowState creates the state record for a new run.
func NewWorkflowState(runID string, req RunRequest) *WorkflowState {
	if runID == "" {
		runID = NewRunID()
	}
	return &WorkflowState{
		runID:       runID,
		request:     req,
		status:      RunStatusPending,
		results:     map[Step]StepResult{},
		confidence:  map[Step]float64{},
		retryCounts: map[Step]int{},
	}
}

// RunID returns the run's immutable identifier.
func (s *WorkflowState) RunID() string {
	return s.runID
}

// Request returns the raw run request.
func (s *WorkflowState) Request() RunRequest {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.request
}

// DocumentRef returns the pointer to the source document content.
func (s *WorkflowState) DocumentRef() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.request.DocumentRef
}

// Jurisdiction returns the recognized jurisdiction, empty until
// validate_input completes.
func (s *WorkflowState) Jurisdiction() Jurisdiction {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.jurisdiction
}

// ContractType returns the recognized contract type.
func (s *WorkflowState) ContractType() ContractType {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.contractType
}

// PurchaseMethod returns the recognized purchase method.
func (s *WorkflowState) PurchaseMethod() PurchaseMethod {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.purchaseMethod
}

// UseCategory returns the recognized use category.
func (s *WorkflowState) UseCategory() UseCategory {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.useCategory
}

// QualityValidation reports whether the optional quality validation step is
// enabled for this run.
func (s *WorkflowState) QualityValidation() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.request.QualityValidation
}

// Order returns the step order for this run.
func (s *WorkflowState) Order() []Step {
	return StepOrder(s.QualityValidation())
}

// Status returns the run status.
func (s *WorkflowState) Status() RunStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

// CurrentStep returns the step currently executing or last completed.
func (s *WorkflowState) CurrentStep() Step {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.currentStep
}

// Progress returns the current progress percentage.
func (s *WorkflowState) Progress() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.progress
}

// StartTime returns when the run began executing.
func (s *WorkflowState) StartTime() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.startTime
}

// EndTime returns when the run reached a terminal status.
func (s *WorkflowState) EndTime() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.endTime
}

// markRunning transitions the run into the running status.
func (s *WorkflowState) markRunning(step Step) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.status = RunStatusRunning
	s.currentStep = step
	if s.startTime.IsZero() {
		s.startTime = time.Now()
	}
}

// setCurrentStep records the step about to execute without touching results.
func (s *WorkflowState) setCurrentStep(step Step) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.currentStep = step
}

// finish transitions the run into a terminal status.
func (s *WorkflowState) finish(status RunStatus) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.status = status
	s.endTime = time.Now()
}

// Complete records a successful step execution: the typed output, its
// confidence when scored, the advanced current step, and the compressed
// progress percentage. Progress is monotonically non-decreasing; a step may
// never push it backward. Output must be a non-nil, initialized container;
// an Empty output is rejected so a checkpoint can never claim a result that
// is not actually there.
func (s *WorkflowState) Complete(step Step, output StepResult, confidence float64, scored bool) error {
	if !step.Valid() {
		return fmt.Errorf("unknown step %q", step)
	}
	if output == nil || output.Empty() {
		return fmt.Errorf("step %q returned an uninitialized result", step)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if v, ok := output.(*InputValidation); ok && step == StepValidateInput {
		s.jurisdiction = v.Jurisdiction
		s.contractType = v.ContractType
		s.purchaseMethod = v.PurchaseMethod
		s.useCategory = v.UseCategory
	}

	s.results[step] = output
	if scored {
		s.confidence[step] = confidence
	}
	s.currentStep = step
	if p := step.Progress(); p > s.progress {
		s.progress = p
	}
	return nil
}

// HasResult reports whether step has a non-empty recorded result.
func (s *WorkflowState) HasResult(step Step) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	result, ok := s.results[step]
	return ok && result != nil && !result.Empty()
}

// Result returns the recorded output of dep for a node implementing forStep.
// A missing or empty result is a MissingDependency error: readers must never
// treat absent upstream state as empty.
func (s *WorkflowState) Result(forStep, dep Step) (StepResult, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	result, ok := s.results[dep]
	if !ok || result == nil || result.Empty() {
		return nil, NewMissingDependency(forStep, dep)
	}
	return result, nil
}

// Document returns the process_document result.
func (s *WorkflowState) Document(forStep Step) (*DocumentResult, error) {
	result, err := s.Result(forStep, StepProcessDocument)
	if err != nil {
		return nil, err
	}
	return result.(*DocumentResult), nil
}

// Terms returns the extract_terms result.
func (s *WorkflowState) Terms(forStep Step) (*ContractTerms, error) {
	result, err := s.Result(forStep, StepExtractTerms)
	if err != nil {
		return nil, err
	}
	return result.(*ContractTerms), nil
}

// Completeness returns the validate_terms_completeness result.
func (s *WorkflowState) Completeness(forStep Step) (*CompletenessResult, error) {
	result, err := s.Result(forStep, StepValidateCompleteness)
	if err != nil {
		return nil, err
	}
	return result.(*CompletenessResult), nil
}

// Compliance returns the analyze_compliance result.
func (s *WorkflowState) Compliance(forStep Step) (*ComplianceResult, error) {
	result, err := s.Result(forStep, StepAnalyzeCompliance)
	if err != nil {
		return nil, err
	}
	return result.(*ComplianceResult), nil
}

// Risks returns the assess_risks result.
func (s *WorkflowState) Risks(forStep Step) (*RiskAssessment, error) {
	result, err := s.Result(forStep, StepAssessRisks)
	if err != nil {
		return nil, err
	}
	return result.(*RiskAssessment), nil
}

// Plan returns the generate_recommendations result.
func (s *WorkflowState) Plan(forStep Step) (*ActionPlan, error) {
	result, err := s.Result(forStep, StepGenerateRecommendations)
	if err != nil {
		return nil, err
	}
	return result.(*ActionPlan), nil
}

// Report returns the final compile_report result.
func (s *WorkflowState) Report() (*Report, error) {
	result, err := s.Result(StepCompileReport, StepCompileReport)
	if err != nil {
		return nil, err
	}
	return result.(*Report), nil
}

// Quality returns the optional validate_document_quality result, or nil when
// the step did not run.
func (s *WorkflowState) Quality() *QualityResult {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if result, ok := s.results[StepValidateQuality]; ok {
		if q, ok := result.(*QualityResult); ok && !q.Empty() {
			return q
		}
	}
	return nil
}

// ConfidenceFor returns the recorded confidence for a step.
func (s *WorkflowState) ConfidenceFor(step Step) (float64, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	score, ok := s.confidence[step]
	return score, ok
}

// ConfidenceScores returns a copy of the per-step confidence map.
func (s *WorkflowState) ConfidenceScores() map[Step]float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make(map[Step]float64, len(s.confidence))
	for k, v := range s.confidence {
		out[k] = v
	}
	return out
}

// OverallConfidence returns the derived weighted-average confidence. It is
// never set directly; RecomputeOverall derives it from constituent scores.
func (s *WorkflowState) OverallConfidence() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.overall
}

// RecomputeOverall re-derives the overall confidence from the current
// constituent scores using the given scorer.
func (s *WorkflowState) RecomputeOverall(scorer ConfidenceScorer) {
	signals := map[string]Signal{}
	for step, score := range s.ConfidenceScores() {
		weight, ok := signalWeights[step]
		if !ok {
			continue
		}
		signals[string(step)] = Signal{Score: score, Weight: weight}
	}
	overall := scorer.Compute(signals)
	s.mutex.Lock()
	s.overall = overall
	s.mutex.Unlock()
}

// AppendError records a failure. The list is append-only.
func (s *WorkflowState) AppendError(step Step, kind ErrorKind, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.errs = append(s.errs, RunError{Step: step, Kind: kind, Message: message, Timestamp: time.Now()})
}

// Errors returns a copy of the recorded errors in chronological order.
func (s *WorkflowState) Errors() []RunError {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]RunError(nil), s.errs...)
}

// AppendWarning records a non-fatal advisory, e.g. proceeding past an
// exhausted low-confidence retry.
func (s *WorkflowState) AppendWarning(message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.warnings = append(s.warnings, message)
}

// Warnings returns a copy of the recorded warnings.
func (s *WorkflowState) Warnings() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]string(nil), s.warnings...)
}

// RetryCount returns the attempts consumed by step's retry budget.
func (s *WorkflowState) RetryCount(step Step) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.retryCounts[step]
}

// IncrementRetry consumes one unit of step's retry budget and returns the
// new count.
func (s *WorkflowState) IncrementRetry(step Step) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.retryCounts[step]++
	return s.retryCounts[step]
}

// CheckpointVersion returns the version of the last durably written
// checkpoint.
func (s *WorkflowState) CheckpointVersion() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.checkpointVersion
}

// bumpCheckpointVersion advances the version counter; called only from the
// orchestrator's checkpoint write path.
func (s *WorkflowState) bumpCheckpointVersion() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.checkpointVersion++
	return s.checkpointVersion
}

// RequestCancel flags the run for cancellation. The orchestrator honors the
// flag at the next step boundary; an executing step is never interrupted
// mid-flight by this flag.
func (s *WorkflowState) RequestCancel() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cancelRequested = true
}

// CancelRequested reports whether cancellation has been requested.
func (s *WorkflowState) CancelRequested() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.cancelRequested
}

// ToCheckpoint snapshots the state into a serializable checkpoint.
func (s *WorkflowState) ToCheckpoint() (*Checkpoint, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	results := make(map[Step]json.RawMessage, len(s.results))
	for step, result := range s.results {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s result: %w", step, err)
		}
		results[step] = data
	}
	confidence := make(map[Step]float64, len(s.confidence))
	for k, v := range s.confidence {
		confidence[k] = v
	}
	retries := make(map[Step]int, len(s.retryCounts))
	for k, v := range s.retryCounts {
		retries[k] = v
	}
	return &Checkpoint{
		RunID:          s.runID,
		Status:         s.status,
		Version:        s.checkpointVersion,
		Request:        s.request,
		Jurisdiction:   s.jurisdiction,
		ContractType:   s.contractType,
		PurchaseMethod: s.purchaseMethod,
		UseCategory:    s.useCategory,
		CurrentStep:    s.currentStep,
		Progress:       s.progress,
		Results:        results,
		Confidence:     confidence,
		RetryCounts:    retries,
		Errors:         append([]RunError(nil), s.errs...),
		Warnings:       append([]string(nil), s.warnings...),
		Overall:        s.overall,
		StartTime:      s.startTime,
		CheckpointAt:   time.Now(),
	}, nil
}

// stateFromCheckpoint rebuilds a WorkflowState from a checkpoint. Results
// that fail to decode into their registered types are skipped and reported
// through onCorrupt; the step is then treated as never completed, forcing
// re-execution.
func stateFromCheckpoint(cp *Checkpoint, onCorrupt func(step Step, err error)) *WorkflowState {
	state := NewWorkflowState(cp.RunID, cp.Request)
	state.status = cp.Status
	state.jurisdiction = cp.Jurisdiction
	state.contractType = cp.ContractType
	state.purchaseMethod = cp.PurchaseMethod
	state.useCategory = cp.UseCategory
	state.currentStep = cp.CurrentStep
	state.progress = cp.Progress
	state.overall = cp.Overall
	state.checkpointVersion = cp.Version
	state.errs = append([]RunError(nil), cp.Errors...)
	state.warnings = append([]string(nil), cp.Warnings...)
	state.startTime = cp.StartTime

	for step, score := range cp.Confidence {
		state.confidence[step] = score
	}
	for step, count := range cp.RetryCounts {
		state.retryCounts[step] = count
	}
	for step, raw := range cp.Results {
		target := newStepResult(step)
		if target == nil {
			if onCorrupt != nil {
				onCorrupt(step, fmt.Errorf("checkpoint references unknown step %q", step))
			}
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			if onCorrupt != nil {
				onCorrupt(step, err)
			}
			continue
		}
		if target.Empty() {
			if onCorrupt != nil {
				onCorrupt(step, fmt.Errorf("checkpointed %s result is empty", step))
			}
			continue
		}
		state.results[step] = target
	}
	return state
}
