package models

import "fmt"

// WizardStep indexes the wizard's pages.
type WizardStep int

const (
	StepStudent WizardStep = iota
	StepGuardians
	StepAddress
	StepMedical
	StepBilling
	StepReview
)

// StepCount is the number of wizard steps.
const StepCount = int(StepReview) + 1

var stepNames = [StepCount]string{"student", "guardians", "address", "medical", "billing", "review"}

// Valid reports whether s names an existing step.
func (s WizardStep) Valid() bool {
	return s >= StepStudent && s <= StepReview
}

// String returns the step's stable name.
func (s WizardStep) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// StepStatus is the per-step navigation status.
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusSuccess  StepStatus = "success"
	StepStatusError    StepStatus = "error"
	StepStatusDisabled StepStatus = "disabled"
)

// FieldIssue is a field-level validation failure.
type FieldIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// StepResult is the outcome of validating one step.
type StepResult struct {
	Step        WizardStep   `json:"step"`
	Valid       bool         `json:"valid"`
	RootError   string       `json:"rootError,omitempty"`
	FieldIssues []FieldIssue `json:"fieldIssues,omitempty"`
}
