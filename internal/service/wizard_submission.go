package service

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

// Submission lifecycle states.
const (
	SubmissionIdle       = "idle"
	SubmissionSubmitting = "submitting"
	SubmissionSubmitted  = "submitted"
	SubmissionFailed     = "failed"
)

const (
	eventSubmit  = "submit"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

var submissionEvents = loopfsm.Events{
	{Name: eventSubmit, Src: []string{SubmissionIdle, SubmissionFailed}, Dst: SubmissionSubmitting},
	{Name: eventSucceed, Src: []string{SubmissionSubmitting}, Dst: SubmissionSubmitted},
	{Name: eventFail, Src: []string{SubmissionSubmitting}, Dst: SubmissionFailed},
}

// SubmissionGate admits one submission at a time per wizard. The underlying
// machine serialises events, so two concurrent Begin calls cannot both pass.
type SubmissionGate struct {
	machine *loopfsm.FSM
}

// NewSubmissionGate returns a gate in the idle state.
func NewSubmissionGate() *SubmissionGate {
	return &SubmissionGate{machine: loopfsm.NewFSM(SubmissionIdle, submissionEvents, nil)}
}

// Begin claims the gate before dispatching a submission.
func (g *SubmissionGate) Begin(ctx context.Context) error {
	if err := g.machine.Event(ctx, eventSubmit); err != nil {
		return g.translate(err)
	}
	return nil
}

// Succeed closes the gate for good.
func (g *SubmissionGate) Succeed(ctx context.Context) error {
	return g.translate(g.machine.Event(ctx, eventSucceed))
}

// Fail reopens the gate for an explicit retry.
func (g *SubmissionGate) Fail(ctx context.Context) error {
	return g.translate(g.machine.Event(ctx, eventFail))
}

// State returns the current lifecycle state.
func (g *SubmissionGate) State() string {
	return g.machine.Current()
}

// InFlight reports whether a submission is being dispatched.
func (g *SubmissionGate) InFlight() bool {
	return g.machine.Is(SubmissionSubmitting)
}

func (g *SubmissionGate) translate(err error) error {
	if err == nil {
		return nil
	}
	var invalid loopfsm.InvalidEventError
	if errors.As(err, &invalid) {
		if g.machine.Is(SubmissionSubmitted) {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment already submitted")
		}
		return appErrors.Clone(appErrors.ErrSubmissionInFlight, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "submission state transition failed")
}
