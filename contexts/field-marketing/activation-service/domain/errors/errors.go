package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every specific error below wraps exactly one of them so callers
// can classify with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

var (
	ErrCampaignNotFound   = fmt.Errorf("%w: campaign not found", ErrNotFound)
	ErrActivationNotFound = fmt.Errorf("%w: activation not found", ErrNotFound)
	ErrAgentNotFound      = fmt.Errorf("%w: agent not found", ErrNotFound)

	ErrInvalidCampaignInput      = fmt.Errorf("%w: invalid campaign input", ErrValidation)
	ErrInvalidActivationInput    = fmt.Errorf("%w: invalid activation input", ErrValidation)
	ErrInvalidTransition         = fmt.Errorf("%w: invalid activation status transition", ErrValidation)
	ErrMissingAgentsForStart     = fmt.Errorf("%w: activation cannot start without assigned agents", ErrValidation)
	ErrWrongDateForStart         = fmt.Errorf("%w: activation can only start on its scheduled date", ErrValidation)
	ErrMissingSuspensionReason   = fmt.Errorf("%w: suspension reason is required", ErrValidation)
	ErrDateOutsideCampaignWindow = fmt.Errorf("%w: activation date is outside the campaign window", ErrValidation)
	ErrResponsibleNotAssigned    = fmt.Errorf("%w: responsible agent must be one of the assigned agents", ErrValidation)
	ErrAgentNotAssigned          = fmt.Errorf("%w: agent is not assigned to this activation", ErrValidation)
	ErrActivationNotEditable     = fmt.Errorf("%w: completed activations cannot be edited", ErrValidation)
	ErrCampaignCancelled         = fmt.Errorf("%w: campaign is cancelled", ErrValidation)
	ErrCampaignNotCancellable    = fmt.Errorf("%w: completed campaigns cannot be cancelled", ErrValidation)
	ErrProofsNotValidatable      = fmt.Errorf("%w: proofs can only be validated on completed activations", ErrValidation)
	ErrInvalidPosition           = fmt.Errorf("%w: invalid gps position", ErrValidation)
	ErrInvalidIncidentInput      = fmt.Errorf("%w: invalid incident input", ErrValidation)
	ErrInvalidAgentInput         = fmt.Errorf("%w: invalid agent input", ErrValidation)

	ErrAgentSchedulingConflict = fmt.Errorf("%w: agent scheduling conflict", ErrConflict)
	ErrVersionConflict         = fmt.Errorf("%w: concurrent modification detected", ErrConflict)
	ErrCampaignHasFeedback     = fmt.Errorf("%w: campaign has issued feedback", ErrConflict)
	ErrDuplicateRecord         = fmt.Errorf("%w: record already exists", ErrConflict)
)

// TransitionError names the illegal (from, to) pair. When a caller pinned the
// source status, Expected holds it and Action names what was asked for.
type TransitionError struct {
	From     string
	To       string
	Action   string
	Expected string
}

func (e *TransitionError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition.Error(), e.From, e.To)
	}
	action := e.Action
	if action == "" {
		action = "move to " + e.To
	}
	return fmt.Sprintf("%s: cannot %s a %s activation, it must be %s", ErrInvalidTransition.Error(), action, e.From, e.Expected)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CommittedActivation is an activation an agent is already booked on.
type CommittedActivation struct {
	ActivationID string
	Name         string
}

// AgentConflict lists where one agent is already committed.
type AgentConflict struct {
	AgentID     string
	AgentName   string
	Activations []CommittedActivation
}

// SchedulingConflictError rejects a whole mutation when any requested agent is
// already committed elsewhere on the same date.
type SchedulingConflictError struct {
	Conflicts []AgentConflict
}

func (e *SchedulingConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, conflict := range e.Conflicts {
		label := conflict.AgentName
		if label == "" {
			label = conflict.AgentID
		}
		names := make([]string, 0, len(conflict.Activations))
		for _, item := range conflict.Activations {
			names = append(names, item.Name)
		}
		parts = append(parts, fmt.Sprintf("%s (already assigned to: %s)", label, strings.Join(names, ", ")))
	}
	return fmt.Sprintf("%s: %s", ErrAgentSchedulingConflict.Error(), strings.Join(parts, "; "))
}

func (e *SchedulingConflictError) Unwrap() error {
	return ErrAgentSchedulingConflict
}
