package pipeline

import (
	"encoding/json"
	"time"
)

// Checkpoint is a durable snapshot of one run's state. A step key present in
// Results asserts that the step fully completed: checkpoints are written only
// after a node returns success, never before. A resume still verifies that
// each recorded result exists and is non-empty before skipping its step.
type Checkpoint struct {
	RunID          string                  `json:"run_id"`
	Status         RunStatus               `json:"status"`
	Version        int                     `json:"checkpoint_version"`
	Request        RunRequest              `json:"request"`
	Jurisdiction   Jurisdiction            `json:"jurisdiction,omitempty"`
	ContractType   ContractType            `json:"contract_type,omitempty"`
	PurchaseMethod PurchaseMethod          `json:"purchase_method,omitempty"`
	UseCategory    UseCategory             `json:"use_category,omitempty"`
	CurrentStep    Step                    `json:"current_step,omitempty"`
	Progress       int                     `json:"progress_percent"`
	Results        map[Step]json.RawMessage `json:"per_step_results"`
	Confidence     map[Step]float64        `json:"per_step_confidence"`
	RetryCounts    map[Step]int            `json:"retry_counts"`
	Errors         []RunError              `json:"errors"`
	Warnings       []string                `json:"warnings,omitempty"`
	Overall        float64                 `json:"overall_confidence"`
	StartTime      time.Time               `json:"start_time,omitzero"`
	CheckpointAt   time.Time               `json:"checkpoint_at"`
}

// RunSummary is a digest of a run's latest checkpoint, for listings.
type RunSummary struct {
	RunID        string       `json:"run_id"`
	Status       RunStatus    `json:"status"`
	Jurisdiction Jurisdiction `json:"jurisdiction,omitempty"`
	ContractType ContractType `json:"contract_type,omitempty"`
	CurrentStep  Step         `json:"current_step,omitempty"`
	Progress     int          `json:"progress_percent"`
	StartTime    time.Time    `json:"start_time,omitzero"`
	CheckpointAt time.Time    `json:"checkpoint_at"`
}

// Summary derives a RunSummary from a checkpoint.
func (cp *Checkpoint) Summary() RunSummary {
	return RunSummary{
		RunID:        cp.RunID,
		Status:       cp.Status,
		Jurisdiction: cp.Jurisdiction,
		ContractType: cp.ContractType,
		CurrentStep:  cp.CurrentStep,
		Progress:     cp.Progress,
		StartTime:    cp.StartTime,
		CheckpointAt: cp.CheckpointAt,
	}
}
