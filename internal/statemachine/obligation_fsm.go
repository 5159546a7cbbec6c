package statemachine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/covenantops-api/internal/models"
)

const (
	EventComplete = "complete"
	EventReopen   = "reopen"
)

var allStates = []string{
	string(models.StatusOnTrack),
	string(models.StatusDueSoon),
	string(models.StatusOverdue),
	string(models.StatusCompleted),
}

// ObligationFSM wraps an obligation with its lifecycle state machine
type ObligationFSM struct {
	obligation *models.Obligation
	fsm        *fsm.FSM
}

// NewObligationFSM creates a new obligation state machine
func NewObligationFSM(obligation *models.Obligation) *ObligationFSM {
	ofsm := &ObligationFSM{
		obligation: obligation,
	}

	ofsm.fsm = fsm.NewFSM(
		string(obligation.Status),
		fsm.Events{
			// any → completed, without consulting the due date
			{Name: EventComplete, Src: allStates, Dst: string(models.StatusCompleted)},

			// any → on_track, then re-derived from the due date
			{Name: EventReopen, Src: allStates, Dst: string(models.StatusOnTrack)},
		},
		fsm.Callbacks{},
	)

	return ofsm
}

// Complete marks the obligation completed
func (o *ObligationFSM) Complete(ctx context.Context) error {
	if err := o.event(ctx, EventComplete); err != nil {
		return fmt.Errorf("failed to complete obligation: %w", err)
	}
	o.obligation.Status = models.ObligationStatus(o.fsm.Current())
	return nil
}

// Reopen clears the terminal state and recomputes the status at now
func (o *ObligationFSM) Reopen(ctx context.Context, now time.Time) error {
	if err := o.event(ctx, EventReopen); err != nil {
		return fmt.Errorf("failed to reopen obligation: %w", err)
	}
	o.obligation.Status = models.ObligationStatus(o.fsm.Current())
	Refresh(o.obligation, now)
	o.fsm.SetState(string(o.obligation.Status))
	return nil
}

// event fires name, treating a transition onto the current state as success
func (o *ObligationFSM) event(ctx context.Context, name string) error {
	err := o.fsm.Event(ctx, name)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return err
	}
	return nil
}

// Current returns the current state
func (o *ObligationFSM) Current() models.ObligationStatus {
	return models.ObligationStatus(o.fsm.Current())
}

// Can checks if a transition is possible
func (o *ObligationFSM) Can(event string) bool {
	return o.fsm.Can(event)
}
