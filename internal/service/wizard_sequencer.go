package service

import (
	"fmt"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

// StepStatusView describes one step in a sequencer view.
type StepStatusView struct {
	Step   models.WizardStep `json:"step"`
	Name   string            `json:"name"`
	Status models.StepStatus `json:"status"`
}

// SequencerView is a read-only snapshot of navigation state.
type SequencerView struct {
	CurrentStep    models.WizardStep   `json:"currentStep"`
	MaxVisitedStep models.WizardStep   `json:"maxVisitedStep"`
	Steps          []StepStatusView    `json:"steps"`
	RootError      string              `json:"rootError,omitempty"`
	FieldIssues    []models.FieldIssue `json:"fieldIssues,omitempty"`
}

// WizardSequencer owns the current step, per-step statuses and the highest
// step visited so far.
type WizardSequencer struct {
	form        *WizardForm
	validator   *StepValidator
	current     models.WizardStep
	maxVisited  models.WizardStep
	status      [models.StepCount]models.StepStatus
	rootError   string
	fieldIssues []models.FieldIssue
}

// NewWizardSequencer starts at the first step and subscribes to form edits.
func NewWizardSequencer(form *WizardForm, validator *StepValidator) *WizardSequencer {
	s := &WizardSequencer{form: form, validator: validator}
	for i := range s.status {
		s.status[i] = models.StepStatusPending
	}
	form.Subscribe(s.onFieldChange)
	return s
}

// onFieldChange returns an errored step to pending as soon as anything is edited.
func (s *WizardSequencer) onFieldChange(_ *WizardForm, _ FieldChange) {
	if s.status[s.current] == models.StepStatusError {
		s.status[s.current] = models.StepStatusPending
		s.rootError = ""
		s.fieldIssues = nil
	}
}

// Current returns the visible step.
func (s *WizardSequencer) Current() models.WizardStep { return s.current }

// MaxVisited returns the navigation high-water mark.
func (s *WizardSequencer) MaxVisited() models.WizardStep { return s.maxVisited }

// RootError returns the message shown at form level, if any.
func (s *WizardSequencer) RootError() string { return s.rootError }

// StatusOf returns the effective status of step. The guardians step is
// disabled while the student is self-responsible, whatever was stored.
func (s *WizardSequencer) StatusOf(step models.WizardStep) models.StepStatus {
	if !step.Valid() {
		return models.StepStatusDisabled
	}
	if step == models.StepGuardians && s.form.SelfResponsible() {
		return models.StepStatusDisabled
	}
	return s.status[step]
}

// GoNext validates the current step and advances on success. From the review
// step it only marks the step valid; submission is explicit.
func (s *WizardSequencer) GoNext() models.StepResult {
	res := s.validator.ValidateStep(s.current, *s.form.view())
	if !res.Valid {
		s.status[s.current] = models.StepStatusError
		s.rootError = res.RootError
		s.fieldIssues = res.FieldIssues
		return res
	}

	s.status[s.current] = models.StepStatusSuccess
	s.rootError = ""
	s.fieldIssues = nil
	if s.current == models.StepReview {
		return res
	}

	next := s.current + 1
	if next == models.StepGuardians && s.form.SelfResponsible() {
		next = models.StepAddress
	}
	s.moveTo(next)
	return res
}

// GoPrevious steps back once, skipping the guardians step when it is disabled.
// It reports whether the step changed.
func (s *WizardSequencer) GoPrevious() bool {
	if s.current == models.StepStudent {
		return false
	}
	prev := s.current - 1
	if prev == models.StepGuardians && s.form.SelfResponsible() {
		prev = models.StepStudent
	}
	s.moveTo(prev)
	return true
}

// JumpTo moves to step when it was visited before or already validated, and
// is not disabled.
func (s *WizardSequencer) JumpTo(step models.WizardStep) error {
	if !step.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown step %d", int(step)))
	}
	status := s.StatusOf(step)
	if status == models.StepStatusDisabled {
		return appErrors.Clone(appErrors.ErrStepLocked, fmt.Sprintf("step %s is disabled", step))
	}
	if step > s.maxVisited && status != models.StepStatusSuccess {
		return appErrors.Clone(appErrors.ErrStepLocked, fmt.Sprintf("step %s has not been reached yet", step))
	}
	s.moveTo(step)
	return nil
}

// Redirect forces the wizard onto step with message after a rejected
// submission.
func (s *WizardSequencer) Redirect(step models.WizardStep, message string) {
	if !step.Valid() {
		return
	}
	s.moveTo(step)
	s.status[step] = models.StepStatusError
	s.rootError = message
	s.fieldIssues = nil
}

// Fail records a failure on the current step without moving.
func (s *WizardSequencer) Fail(res models.StepResult) {
	if !res.Step.Valid() {
		return
	}
	s.moveTo(res.Step)
	s.status[res.Step] = models.StepStatusError
	s.rootError = res.RootError
	s.fieldIssues = res.FieldIssues
}

// SetRootError shows message at form level without changing statuses.
func (s *WizardSequencer) SetRootError(message string) {
	s.rootError = message
}

// UnlockAll allows free navigation, used when editing an existing enrollment.
func (s *WizardSequencer) UnlockAll() {
	s.maxVisited = models.StepReview
}

// View returns a snapshot of the navigation state.
func (s *WizardSequencer) View() SequencerView {
	steps := make([]StepStatusView, 0, models.StepCount)
	for step := models.StepStudent; step <= models.StepReview; step++ {
		steps = append(steps, StepStatusView{Step: step, Name: step.String(), Status: s.StatusOf(step)})
	}
	return SequencerView{
		CurrentStep:    s.current,
		MaxVisitedStep: s.maxVisited,
		Steps:          steps,
		RootError:      s.rootError,
		FieldIssues:    append([]models.FieldIssue(nil), s.fieldIssues...),
	}
}

func (s *WizardSequencer) moveTo(step models.WizardStep) {
	s.current = step
	if step > s.maxVisited {
		s.maxVisited = step
	}
}
